package requests

// SaveFormData carries one flattened form submission. Keys follow the
// "form____section____cde" shape; a multisection submission instead posts the
// item list under the section code.
type SaveFormData struct {
	FormData       map[string]interface{} `json:"form_data" validate:"required"`
	Multisection   bool                   `json:"multisection"`
	SectionCode    string                 `json:"section_code"`
	ParseAllForms  bool                   `json:"parse_all_forms"`
	AdditionalData map[string]interface{} `json:"additional_data"`
}

type FieldExpressionPair struct {
	Expression string      `json:"expression" validate:"required"`
	Value      interface{} `json:"value"`
}

type UpdateFieldExpressions struct {
	Pairs []FieldExpressionPair `json:"pairs" validate:"required,min=1,dive"`
}
