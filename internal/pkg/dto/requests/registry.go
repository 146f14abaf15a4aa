package requests

type CreateRegistry struct {
	Code     string                 `json:"code" validate:"required,alphanum,max=10"`
	Name     string                 `json:"name" validate:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

type UpsertForm struct {
	Name               string   `json:"name" validate:"required"`
	Sections           string   `json:"sections" validate:"required"`
	IsQuestionnaire    bool     `json:"is_questionnaire"`
	CompletionCdeCodes []string `json:"complete_form_cdes"`
}

type UpsertSection struct {
	Code          string `json:"code" validate:"required,section_code"`
	DisplayName   string `json:"display_name"`
	Elements      string `json:"elements" validate:"required"`
	AllowMultiple bool   `json:"allow_multiple"`
}

type UpsertCde struct {
	Code                 string   `json:"code" validate:"required"`
	Name                 string   `json:"name"`
	DataType             string   `json:"datatype" validate:"required,oneof=string integer float date boolean range calculated file"`
	PermittedValueGroup  string   `json:"pv_group"`
	AllowMultiple        bool     `json:"allow_multiple"`
	MaxLength            int      `json:"max_length"`
	MinValue             *float64 `json:"min_value"`
	MaxValue             *float64 `json:"max_value"`
	Pattern              string   `json:"pattern"`
	AbnormalityCondition string   `json:"abnormality_condition"`
}
