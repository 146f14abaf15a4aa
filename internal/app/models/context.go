package models

import "time"

// ClinicalContext scopes a clinical document to one visit, encounter or
// follow-up. The data-model components only consume context ids; lifecycle
// belongs to the context service.
type ClinicalContext struct {
	ID                 int64     `bson:"_id" json:"id"`
	RegistryCode       string    `bson:"registry_code" json:"registry_code"`
	Owner              OwnerRef  `bson:"owner" json:"owner"`
	DisplayName        string    `bson:"display_name" json:"display_name"`
	ContextFormGroupID int64     `bson:"context_form_group_id" json:"context_form_group_id"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
}
