package responses

import "clinreg-service/internal/app/models"

type FormData struct {
	RegistryCode string                 `json:"registry_code"`
	ContextID    int64                  `json:"context_id"`
	Data         map[string]interface{} `json:"data"`
}

type CdeHistory struct {
	FormName    string                `json:"form_name"`
	SectionCode string                `json:"section_code"`
	CdeCode     string                `json:"cde_code"`
	Entries     []models.HistoryEntry `json:"entries"`
}

type FieldExpressionResult struct {
	Applied int      `json:"applied"`
	Errors  []string `json:"errors"`
}
