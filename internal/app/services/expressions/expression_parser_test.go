package expressions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/exceptions"
)

func TestParseExpression(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		expected   parsedExpression
	}{
		{
			"plain field",
			"family_name",
			parsedExpression{Kind: kindPlainField, FieldName: "family_name"},
		},
		{
			"clinical triple",
			"simple/sectionA/CDEName",
			parsedExpression{Kind: kindClinical, FormName: "simple", SectionCode: "sectionA", CdeCode: "CDEName"},
		},
		{
			"consent answer",
			"Consents/main/q1/answer",
			parsedExpression{Kind: kindConsent, ConsentSection: "main", ConsentQuestion: "q1", ConsentField: "answer"},
		},
		{
			"consent last update",
			"Consents/main/q1/last_update",
			parsedExpression{Kind: kindConsent, ConsentSection: "main", ConsentQuestion: "q1", ConsentField: "last_update"},
		},
		{
			"home address",
			"Demographics/Address/Home/Suburb",
			parsedExpression{Kind: kindAddress, AddressType: models.AddressTypeHome, AddressField: "Suburb"},
		},
		{
			"postal address",
			"Demographics/Address/Postal/Postcode",
			parsedExpression{Kind: kindAddress, AddressType: models.AddressTypePostal, AddressField: "Postcode"},
		},
		{
			"report function",
			"@age",
			parsedExpression{Kind: kindReport, ReportName: "age"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := parseExpression(tc.expression)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, *parsed)
		})
	}
}

func TestParseExpressionRejectsMalformed(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
	}{
		{"empty", ""},
		{"bare report marker", "@"},
		{"two segments", "form/section"},
		{"four plain segments", "a/b/c/d"},
		{"consent wrong arity", "Consents/main/q1"},
		{"consent unknown field", "Consents/main/q1/comment"},
		{"address unknown type", "Demographics/Address/Work/Suburb"},
		{"address unknown field", "Demographics/Address/Home/Latitude"},
		{"demographics wrong shape", "Demographics/Name/Home/Suburb"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseExpression(tc.expression)
			require.Error(t, err)
			var exprErr *exceptions.FieldExpressionError
			assert.True(t, errors.As(err, &exprErr))
		})
	}
}
