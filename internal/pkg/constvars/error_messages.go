package constvars

// Client-facing messages.
const (
	ErrClientCannotProcessRequest          = "Cannot process your request"
	ErrClientSomethingWrongWithApplication = "Something is wrong with the application"
	ErrClientNotAuthorized                 = "You are not authorized to perform this action"
	ErrClientRegistryNotFound              = "Registry not found"
	ErrClientFormNotFound                  = "Form not found"
	ErrClientPatientNotFound               = "Patient not found"
	ErrClientContextNotFound               = "Clinical context not found"
	ErrClientStaleFormSubmission           = "The submitted form references a field that no longer exists"
	ErrClientInvalidFieldExpression        = "The field expression could not be applied"
	ErrClientInvalidSectionCode            = "Section code must not contain spaces or '&'"
	ErrClientServerLongRespond             = "Server took too long to respond"
)

// Developer-facing messages.
const (
	ErrDevValidationFailed          = "request validation failed"
	ErrDevInvalidInput              = "invalid input"
	ErrDevCannotParseJSON           = "cannot parse request body as JSON"
	ErrDevCannotMarshalJSON         = "cannot marshal value to JSON"
	ErrDevCannotParseMultipartForm  = "cannot parse multipart form"
	ErrDevServerDeadlineExceeded    = "server deadline exceeded"
	ErrDevURLParamValidationFailed  = "url parameter %s failed validation"
	ErrDevRegistryNotFound          = "registry definition not found"
	ErrDevFormNotFound              = "registry form not found"
	ErrDevPatientNotFound           = "patient record not found"
	ErrDevContextNotFound           = "clinical context not found"
	ErrDevInvalidAPIKey             = "invalid admin api key"
	ErrDevAuthTokenMissing          = "authorization token missing"
	ErrDevAuthTokenInvalidOrExpired = "authorization token invalid or expired"

	ErrDevMongoDBInsertDocument = "mongodb failed to insert document"
	ErrDevMongoDBFindDocument   = "mongodb failed to find document"
	ErrDevMongoDBUpdateDocument = "mongodb failed to update document"
	ErrDevMongoDBDeleteDocument = "mongodb failed to delete document"
	ErrDevMongoDBCursor         = "mongodb cursor iteration failed"
	ErrDevMongoDBCountDocuments = "mongodb failed to count documents"

	ErrDevRedisSet    = "redis failed to set key"
	ErrDevRedisGet    = "redis failed to get key %s"
	ErrDevRedisDelete = "redis failed to delete key"

	ErrDevMinioCreateObject = "minio failed to store object in bucket %s"
	ErrDevMinioRemoveObject = "minio failed to remove object from bucket %s"
	ErrDevMinioFetchObject  = "minio failed to fetch object from bucket %s"

	ErrDevRabbitMQPublish = "rabbitmq failed to publish message"
)
