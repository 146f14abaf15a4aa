package models

import "fmt"

// OwnerKind is the closed enum of entity kinds that can own clinical data.
// The stored document keeps the kind under the legacy "django_model" field
// name for compatibility with existing data.
type OwnerKind string

const (
	OwnerKindPatient        OwnerKind = "Patient"
	OwnerKindParentGuardian OwnerKind = "ParentGuardian"
)

func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerKindPatient, OwnerKindParentGuardian:
		return true
	}
	return false
}

// OwnerRef identifies one clinical-data-bearing entity.
type OwnerRef struct {
	Kind OwnerKind `bson:"django_model" json:"django_model"`
	ID   int64     `bson:"django_id" json:"django_id"`
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s/%d", o.Kind, o.ID)
}
