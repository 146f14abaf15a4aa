package constvars

const (
	LoggingRequestIDKey    = "request_id"
	LoggingRegistryCodeKey = "registry_code"
	LoggingCollectionKey   = "collection"
	LoggingOwnerIDKey      = "owner_id"
	LoggingOwnerKindKey    = "owner_kind"
	LoggingContextIDKey    = "context_id"
	LoggingFormNameKey     = "form_name"
	LoggingSectionCodeKey  = "section_code"
	LoggingCdeCodeKey      = "cde_code"
	LoggingExpressionKey   = "expression"
	LoggingOperationKey    = "operation"
	LoggingDurationKey     = "duration"
	LoggingSuccessKey      = "success"
	LoggingErrorCodeKey    = "error_code"
	LoggingErrorMessageKey = "error_message"
	LoggingFileRefKey      = "file_reference"
	LoggingEventKey        = "event"
)
