package constvars

const (
	RegistryCreatedMessage   = "Registry created successfully"
	RegistryUpdatedMessage   = "Registry updated successfully"
	RegistryFetchedMessage   = "Registry fetched successfully"
	FormDataSavedMessage     = "Clinical form data saved successfully"
	FormDataFetchedMessage   = "Clinical form data fetched successfully"
	CdeHistoryFetchedMessage = "Field history fetched successfully"
	FieldExpressionsApplied  = "Field expressions applied"
	PatientCreatedMessage    = "Patient created successfully"
	PatientFetchedMessage    = "Patient fetched successfully"
	ContextCreatedMessage    = "Clinical context created successfully"
	FileFetchedMessage       = "File fetched successfully"
)
