package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentRoundTrip(t *testing.T) {
	doc := NewClinicalDocument(OwnerRef{Kind: OwnerKindPatient, ID: 7}, 3)
	doc.Timestamp = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc.FormTimestamps["simple"] = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc.Extra["custom_consent_data"] = map[string]interface{}{"q1": true}
	doc.SetCdeValue("simple", "sectionA", "CDEName", NewValue("Fred"))
	doc.SetCdeValue("simple", "sectionA", "CDEAge", NewValue(40))

	multi := doc.FindOrCreateForm("multi").FindOrCreateSection("sectionM", true)
	multi.AllowMultiple = true
	multi.Items = [][]CdeEntry{
		{{Code: "CDEDrug", Value: NewValue("aspirin")}, {Code: "CDEDose", Value: NewValue(100)}},
		{{Code: "CDEDrug", Value: NewValue("statin")}},
	}

	raw := doc.ToMap()
	assert.Equal(t, int64(7), raw["django_id"])
	assert.Equal(t, "Patient", raw["django_model"])
	assert.Equal(t, int64(3), raw["context_id"])

	parsed, err := ParseClinicalDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, doc.Owner, parsed.Owner)
	assert.Equal(t, doc.ContextID, parsed.ContextID)
	assert.Equal(t, doc.Timestamp, parsed.Timestamp)
	assert.Equal(t, doc.FormTimestamps["simple"], parsed.FormTimestamps["simple"])

	name, found := parsed.GetCdeValue("simple", "sectionA", "CDEName")
	require.True(t, found)
	assert.Equal(t, "Fred", name.Interface())

	drugs, found := parsed.GetCdeValue("multi", "sectionM", "CDEDrug")
	require.True(t, found)
	assert.Equal(t, []interface{}{"aspirin", "statin"}, drugs.Interface())
}

func TestParseClinicalDocumentBsonShapes(t *testing.T) {
	raw := map[string]interface{}{
		"django_id":    int32(9),
		"django_model": "Patient",
		"context_id":   int32(2),
		"timestamp":    primitive.NewDateTimeFromTime(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		"forms": primitive.A{
			primitive.M{
				"name": "simple",
				"sections": primitive.A{
					primitive.M{
						"code":           "sectionA",
						"allow_multiple": false,
						"cdes": primitive.A{
							primitive.M{"code": "CDEName", "value": "Wilma"},
						},
					},
				},
			},
		},
	}

	parsed, err := ParseClinicalDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(9), parsed.Owner.ID)
	assert.Equal(t, int64(2), parsed.ContextID)

	value, found := parsed.GetCdeValue("simple", "sectionA", "CDEName")
	require.True(t, found)
	assert.Equal(t, "Wilma", value.Interface())
}

func TestParseClinicalDocumentRejectsBadShapes(t *testing.T) {
	_, err := ParseClinicalDocument(map[string]interface{}{"forms": "not-a-list"})
	assert.Error(t, err)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, NewValue(int32(5)).Equal(NewValue(int64(5))))
	assert.True(t, NewValue([]interface{}{"a", "b"}).Equal(NewValue(primitive.A{"a", "b"})))
	assert.False(t, NewValue("a").Equal(NewValue("b")))
	assert.False(t, NewValue([]interface{}{"a"}).Equal(NewValue("a")))
}

func TestSectionValidateCode(t *testing.T) {
	assert.True(t, (&Section{Code: "sectionA"}).ValidateCode())
	assert.False(t, (&Section{Code: "bad code"}).ValidateCode())
	assert.False(t, (&Section{Code: "bad&code"}).ValidateCode())
}
