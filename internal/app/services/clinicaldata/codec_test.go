package clinicaldata

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/exceptions"
)

func testRegistry() *models.Registry {
	cde := func(code string, dataType models.CdeDataType) models.CommonDataElement {
		return models.CommonDataElement{Code: code, Name: code, DataType: dataType}
	}
	return &models.Registry{
		Code: "fh",
		Forms: []models.RegistryForm{
			{
				Name:         "simple",
				SectionCodes: "sectionA,sectionB",
				SectionModels: []models.Section{
					{
						Code:         "sectionA",
						ElementCodes: "CDEName,CDEAge",
						CdeModels: []models.CommonDataElement{
							cde("CDEName", models.DataTypeString),
							cde("CDEAge", models.DataTypeInteger),
						},
					},
					{
						Code:         "sectionB",
						ElementCodes: "CDEHeight,CDEWeight,CDEScan",
						CdeModels: []models.CommonDataElement{
							cde("CDEHeight", models.DataTypeFloat),
							cde("CDEWeight", models.DataTypeFloat),
							cde("CDEScan", models.DataTypeFile),
						},
					},
				},
			},
			{
				Name:         "medications",
				SectionCodes: "sectionM",
				SectionModels: []models.Section{
					{
						Code:          "sectionM",
						ElementCodes:  "CDEDrug,CDEDose",
						AllowMultiple: true,
						CdeModels: []models.CommonDataElement{
							cde("CDEDrug", models.DataTypeString),
							cde("CDEDose", models.DataTypeInteger),
						},
					},
				},
			},
		},
	}
}

func TestNestAndFlattenRoundTrip(t *testing.T) {
	registry := testRegistry()
	flat := map[string]interface{}{
		"simple____sectionA____CDEName":   "Fred",
		"simple____sectionA____CDEAge":    40,
		"simple____sectionB____CDEHeight": 1.82,
	}

	doc, err := Nest(registry, "simple", flat, nil, NestOptions{})
	require.NoError(t, err)

	value, found := doc.GetCdeValue("simple", "sectionA", "CDEName")
	require.True(t, found)
	assert.Equal(t, "Fred", value.Interface())

	out := Flatten(doc)
	assert.Equal(t, "Fred", out["simple____sectionA____CDEName"])
	assert.Equal(t, int64(40), out["simple____sectionA____CDEAge"])
	assert.Equal(t, 1.82, out["simple____sectionB____CDEHeight"])
}

func TestNestMergesByCodeNotAppend(t *testing.T) {
	registry := testRegistry()
	first, err := Nest(registry, "simple", map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, nil, NestOptions{})
	require.NoError(t, err)

	second, err := Nest(registry, "simple", map[string]interface{}{
		"simple____sectionA____CDEName": "Wilma",
	}, first, NestOptions{})
	require.NoError(t, err)

	section := second.FindForm("simple").FindSection("sectionA")
	require.Len(t, section.Entries, 1)
	assert.Equal(t, "Wilma", section.Entries[0].Value.Interface())
}

func TestNestBadKeyLeavesExistingUntouched(t *testing.T) {
	registry := testRegistry()
	existing, err := Nest(registry, "simple", map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, nil, NestOptions{})
	require.NoError(t, err)

	_, err = Nest(registry, "simple", map[string]interface{}{
		"simple____sectionA____CDEName":    "Barney",
		"simple____sectionA____CDEUnknown": "x",
	}, existing, NestOptions{})
	require.Error(t, err)

	var badKey *exceptions.BadKeyError
	require.True(t, errors.As(err, &badKey))
	assert.Equal(t, "simple____sectionA____CDEUnknown", badKey.Key)

	// The merge happened on a copy; the caller's document is intact.
	value, found := existing.GetCdeValue("simple", "sectionA", "CDEName")
	require.True(t, found)
	assert.Equal(t, "Fred", value.Interface())
}

func TestNestRejectsForeignFormKey(t *testing.T) {
	registry := testRegistry()
	_, err := Nest(registry, "simple", map[string]interface{}{
		"medications____sectionM____CDEDrug": "aspirin",
	}, nil, NestOptions{})

	var badKey *exceptions.BadKeyError
	require.True(t, errors.As(err, &badKey))

	// The same key is accepted when all forms are in scope, but it targets a
	// multisection and so must come as an item list.
	_, err = Nest(registry, "simple", map[string]interface{}{
		"medications____sectionM____CDEDrug": "aspirin",
	}, nil, NestOptions{ParseAllForms: true})
	var parsing *exceptions.FormParsingError
	require.True(t, errors.As(err, &parsing))
}

func TestNestMultisectionReplacesItems(t *testing.T) {
	registry := testRegistry()
	items := func(drugs ...string) []interface{} {
		out := make([]interface{}, len(drugs))
		for i, drug := range drugs {
			out[i] = map[string]interface{}{"medications____sectionM____CDEDrug": drug}
		}
		return out
	}

	doc, err := Nest(registry, "medications", map[string]interface{}{
		"sectionM": items("aspirin", "statin"),
	}, nil, NestOptions{Multisection: true, SectionCode: "sectionM"})
	require.NoError(t, err)
	require.Len(t, doc.FindForm("medications").FindSection("sectionM").Items, 2)

	// A later submission replaces the item list wholesale.
	doc, err = Nest(registry, "medications", map[string]interface{}{
		"sectionM": items("ibuprofen", "aspirin", "metformin"),
	}, doc, NestOptions{Multisection: true, SectionCode: "sectionM"})
	require.NoError(t, err)

	section := doc.FindForm("medications").FindSection("sectionM")
	require.Len(t, section.Items, 3)
	assert.Equal(t, "ibuprofen", section.Items[0][0].Value.Interface())

	value, found := doc.GetCdeValue("medications", "sectionM", "CDEDrug")
	require.True(t, found)
	assert.Equal(t, []interface{}{"ibuprofen", "aspirin", "metformin"}, value.Interface())
}

func TestNestSpecialKeys(t *testing.T) {
	registry := testRegistry()
	when := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	doc, err := Nest(registry, "simple", map[string]interface{}{
		"timestamp":           when,
		"simple_timestamp":    when,
		"custom_consent_data": map[string]interface{}{"q1": true},
		"questionnaire_id":    int64(12),
		"django_id":           int64(999),
	}, nil, NestOptions{})
	require.NoError(t, err)

	assert.Equal(t, when, doc.Timestamp)
	assert.Equal(t, when, doc.FormTimestamps["simple"])
	assert.Contains(t, doc.Extra, "custom_consent_data")
	assert.Equal(t, int64(12), doc.Extra["questionnaire_id"])
	// Identity fields are owned by the wrapper, never merged from input.
	assert.Equal(t, int64(0), doc.Owner.ID)
}

func TestStripDeletedItems(t *testing.T) {
	items := []map[string]interface{}{
		{"medications____sectionM____CDEDrug": "aspirin"},
		{"medications____sectionM____CDEDrug": "statin", "DELETE": true},
		{"medications____sectionM____CDEDrug": "metformin"},
	}

	kept, indexMap := StripDeletedItems(items)
	require.Len(t, kept, 2)
	assert.Equal(t, "aspirin", kept[0]["medications____sectionM____CDEDrug"])
	assert.Equal(t, "metformin", kept[1]["medications____sectionM____CDEDrug"])
	assert.Equal(t, map[int]int{0: 0, 1: 2}, indexMap)
	assert.NotContains(t, kept[1], "DELETE")
}
