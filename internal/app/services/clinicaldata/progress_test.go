package clinicaldata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
)

func TestComputeFormProgress(t *testing.T) {
	registry := testRegistry()
	form := registry.FindForm("simple")
	form.CompletionCdeCodes = []string{"CDEName", "CDEAge", "CDEHeight"}

	document := models.NewClinicalDocument(testOwner, 1)
	document.SetCdeValue("simple", "sectionA", "CDEName", models.NewValue("Fred"))
	document.SetCdeValue("simple", "sectionA", "CDEAge", models.NewValue(""))

	percentage, filled := computeFormProgress(form, document)
	assert.Equal(t, 1, filled)
	assert.InDelta(t, 33.33, percentage, 0.01)

	document.SetCdeValue("simple", "sectionA", "CDEAge", models.NewValue(40))
	document.SetCdeValue("simple", "sectionB", "CDEHeight", models.NewValue(1.82))
	percentage, filled = computeFormProgress(form, document)
	assert.Equal(t, 3, filled)
	assert.Equal(t, float64(100), percentage)
}

func TestSaveRecomputesProgress(t *testing.T) {
	fixture := newWrapperFixture()
	registry := fixture.service.SchemaProvider.(*fakeSchemaProvider).registry
	registry.FindForm("simple").CompletionCdeCodes = []string{"CDEName", "CDEAge"}

	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, contracts.SaveOptions{FormName: "simple"}))

	progress, err := fixture.repo.FindOne(ctx, "fh", constvars.CollectionProgress, testOwner, session.ContextID())
	require.NoError(t, err)
	require.NotNil(t, progress)

	block, ok := progress["simple"+FormProgressSuffix].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(50), block["percentage"])
	assert.Equal(t, 1, block["filled"])
	assert.Equal(t, 2, block["required"])
}
