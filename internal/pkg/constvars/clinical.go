package constvars

// FormDataDelimiter separates the form, section and CDE segments of a
// flattened form key, e.g. "simple____sectionA____CDEName".
const FormDataDelimiter = "____"

// Document-store collection kinds. A registry's documents live in mongo
// collections named "<registry_code>_<kind>".
const (
	CollectionCDEs                 = "cdes"
	CollectionHistory              = "history"
	CollectionProgress             = "progress"
	CollectionRegistrySpecificData = "registry_specific_patient_data"
)

// Schema-definition mongo collections.
const (
	MongoCollectionRegistries        = "registries"
	MongoCollectionForms             = "forms"
	MongoCollectionSections          = "sections"
	MongoCollectionCDEs              = "cde_definitions"
	MongoCollectionPatients          = "patients"
	MongoCollectionContexts          = "contexts"
	MongoCollectionConsents          = "consents"
	MongoCollectionContextFormGroups = "context_form_groups"
	MongoCollectionCounters          = "counters"
)

// Top-level document fields preserved verbatim for compatibility with
// previously stored data.
const (
	DocumentFieldForms         = "forms"
	DocumentFieldSections      = "sections"
	DocumentFieldCDEs          = "cdes"
	DocumentFieldCode          = "code"
	DocumentFieldName          = "name"
	DocumentFieldValue         = "value"
	DocumentFieldAllowMultiple = "allow_multiple"
	DocumentFieldDjangoID      = "django_id"
	DocumentFieldDjangoModel   = "django_model"
	DocumentFieldContextID     = "context_id"
	DocumentFieldTimestamp     = "timestamp"
	DocumentFieldRecordType    = "record_type"
	DocumentFieldRecord        = "record"
)

// Flattened-data keys extracted to top-level fields instead of being
// resolved as CDEs.
const (
	SpecialKeyTimestamp         = "timestamp"
	SpecialKeyCustomConsentData = "custom_consent_data"
	SpecialKeyAddressSection    = "PatientDataAddressSection"
	FormTimestampSuffix         = "_timestamp"
)

// RecordTypeSnapshot marks an immutable history copy of a clinical document.
const RecordTypeSnapshot = "snapshot"

// ContextAddSentinel defers context creation until the first successful save.
const ContextAddSentinel = "add"

// ExpressionErrorSentinel is returned by resilient read paths in place of a
// value the resolver could not produce.
const ExpressionErrorSentinel = "??ERROR??"

// Registry feature flags carried in the registry metadata blob.
const (
	RegistryFeatureContexts      = "contexts"
	RegistryFeatureFamilyLinkage = "family_linkage"
)

// Event routing keys published on clinical-data writes.
const (
	EventClinicalSaved    = "clinical.saved"
	EventClinicalSnapshot = "clinical.snapshot"
)
