package expressions

import (
	"strings"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/exceptions"
)

// expressionKind tags the closed set of shapes a field expression can take.
type expressionKind int

const (
	kindPlainField expressionKind = iota
	kindClinical
	kindConsent
	kindAddress
	kindReport
)

// parsedExpression is the normalized form of one field expression. Exactly
// the fields for its kind are set.
type parsedExpression struct {
	Kind expressionKind

	// kindPlainField
	FieldName string

	// kindClinical
	FormName    string
	SectionCode string
	CdeCode     string

	// kindConsent
	ConsentSection  string
	ConsentQuestion string
	ConsentField    string

	// kindAddress
	AddressType  models.AddressType
	AddressField string

	// kindReport
	ReportName string
}

const (
	prefixConsents     = "Consents"
	prefixDemographics = "Demographics"
	segmentAddress     = "Address"
	reportMarker       = "@"
)

// parseExpression classifies one expression string. The grammar is closed:
//
//	plain_field
//	Form/Section/CDE
//	Consents/Section/Question/{answer|last_update|first_save}
//	Demographics/Address/{Home|Postal}/{Address|Suburb|State|Country|Postcode}
//	@reportFunction
func parseExpression(expression string) (*parsedExpression, error) {
	if expression == "" {
		return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "empty expression"}
	}

	if strings.HasPrefix(expression, reportMarker) {
		name := strings.TrimPrefix(expression, reportMarker)
		if name == "" {
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "missing report function name"}
		}
		return &parsedExpression{Kind: kindReport, ReportName: name}, nil
	}

	if !strings.Contains(expression, "/") {
		return &parsedExpression{Kind: kindPlainField, FieldName: expression}, nil
	}

	parts := strings.Split(expression, "/")
	switch {
	case parts[0] == prefixConsents:
		if len(parts) != 4 {
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "consent expressions take Consents/Section/Question/field"}
		}
		field := parts[3]
		switch field {
		case models.ConsentFieldAnswer, models.ConsentFieldLastUpdate, models.ConsentFieldFirstSave:
		default:
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "unknown consent field " + field}
		}
		return &parsedExpression{
			Kind:            kindConsent,
			ConsentSection:  parts[1],
			ConsentQuestion: parts[2],
			ConsentField:    field,
		}, nil

	case parts[0] == prefixDemographics:
		if len(parts) != 4 || parts[1] != segmentAddress {
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "demographics expressions take Demographics/Address/type/field"}
		}
		addressType := models.AddressType(parts[2])
		if !addressType.Valid() {
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "unknown address type " + parts[2]}
		}
		switch parts[3] {
		case "Address", "Suburb", "State", "Country", "Postcode":
		default:
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "unknown address field " + parts[3]}
		}
		return &parsedExpression{
			Kind:         kindAddress,
			AddressType:  addressType,
			AddressField: parts[3],
		}, nil

	case len(parts) == 3:
		return &parsedExpression{
			Kind:        kindClinical,
			FormName:    parts[0],
			SectionCode: parts[1],
			CdeCode:     parts[2],
		}, nil
	}
	return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "unrecognized expression shape"}
}

func addressFieldValue(address *models.PatientAddress, field string) interface{} {
	switch field {
	case "Address":
		return address.Address
	case "Suburb":
		return address.Suburb
	case "State":
		return address.State
	case "Country":
		return address.Country
	case "Postcode":
		return address.Postcode
	}
	return nil
}

func setAddressField(address *models.PatientAddress, field string, value interface{}) bool {
	text, ok := value.(string)
	if !ok {
		return false
	}
	switch field {
	case "Address":
		address.Address = text
	case "Suburb":
		address.Suburb = text
	case "State":
		address.State = text
	case "Country":
		address.Country = text
	case "Postcode":
		address.Postcode = text
	default:
		return false
	}
	return true
}
