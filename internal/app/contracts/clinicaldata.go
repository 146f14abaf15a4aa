package contracts

import (
	"context"

	"clinreg-service/internal/app/models"
)

// ClinicalRepository is the generic document store underneath the dynamic
// data wrapper: schemaless documents keyed by (registry, collection kind,
// owner, context).
type ClinicalRepository interface {
	// Collection returns every document of a kind for a registry in stable
	// primary-key order.
	Collection(ctx context.Context, registryCode, kind string) ([]map[string]interface{}, error)
	// Find filters by owner, context and arbitrary dot-path field predicates.
	// A nil owner or zero contextID leaves that part of the key unconstrained.
	Find(ctx context.Context, registryCode, kind string, owner *models.OwnerRef, contextID int64, filters map[string]interface{}) ([]map[string]interface{}, error)
	// FindOne fetches the single live document for the full key tuple;
	// not-found is (nil, nil).
	FindOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (map[string]interface{}, error)
	// Upsert creates or replaces the single document for the key tuple.
	Upsert(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64, document map[string]interface{}) error
	// Insert appends a document without key-tuple semantics (history).
	Insert(ctx context.Context, registryCode, kind string, document map[string]interface{}) (string, error)
	// DeleteOne removes the single document for the key tuple.
	DeleteOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) error
	// Exists reports whether a document exists without loading it.
	Exists(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (bool, error)
}

// ContextRef selects which clinical context a dynamic-data session is bound
// to. The zero value resolves the registry's default context lazily;
// CreateOnSave defers creation until the first successful save (the "add"
// sentinel).
type ContextRef struct {
	ID           int64
	CreateOnSave bool
	FormGroupID  int64
}

func FixedContext(id int64) ContextRef {
	return ContextRef{ID: id}
}

func DefaultContext() ContextRef {
	return ContextRef{}
}

func AddContext(formGroupID int64) ContextRef {
	return ContextRef{CreateOnSave: true, FormGroupID: formGroupID}
}

// SaveOptions tunes one SaveDynamicData call. FormName is threaded explicitly
// so per-form timestamps never depend on session-mutable state.
type SaveOptions struct {
	FormName       string
	Multisection   bool
	SectionCode    string
	ParseAllForms  bool
	IndexMap       map[int]int
	AdditionalData map[string]interface{}
}

// DynamicDataSession is the per-request façade over one owner's clinical
// documents. Implementations are not safe for concurrent use; create one per
// request.
type DynamicDataSession interface {
	LoadDynamicData(ctx context.Context, registryCode, kind string, flattened bool) (map[string]interface{}, error)
	SaveDynamicData(ctx context.Context, registryCode, kind string, formData map[string]interface{}, opts SaveOptions) error
	SaveSnapshot(ctx context.Context, registryCode, kind string)
	GetCdeVal(ctx context.Context, registryCode, formName, sectionCode, cdeCode string) (interface{}, error)
	GetCdeHistory(ctx context.Context, registryCode, formName, sectionCode, cdeCode string) ([]models.HistoryEntry, error)
	UpdateDynamicData(ctx context.Context, registryCode string, document *models.ClinicalDocument) error
	HasData(ctx context.Context, registryCode string) (bool, error)
	DeletePatientRecord(ctx context.Context, registryCode string, contextID int64) error
	ContextID() int64
}

type DynamicDataService interface {
	Session(owner models.OwnerRef, contextRef ContextRef) DynamicDataSession
}
