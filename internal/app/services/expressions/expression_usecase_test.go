package expressions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/dto/requests"
	"clinreg-service/internal/pkg/exceptions"
)

func expressionTestRegistry() *models.Registry {
	return &models.Registry{
		Code: "fh",
		Forms: []models.RegistryForm{
			{
				Name:         "simple",
				SectionCodes: "sectionA",
				SectionModels: []models.Section{
					{
						Code:         "sectionA",
						ElementCodes: "CDEName",
						CdeModels: []models.CommonDataElement{
							{Code: "CDEName", Name: "CDEName", DataType: models.DataTypeString},
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
						ElementCodes:  "CDEDrug",
						AllowMultiple: true,
						CdeModels: []models.CommonDataElement{
							{Code: "CDEDrug", Name: "CDEDrug", DataType: models.DataTypeString},
						},
					},
				},
			},
		},
	}
}

type fakeSchema struct {
	registry *models.Registry
}

func (s *fakeSchema) GetRegistryDefinition(ctx context.Context, registryCode string) (*models.Registry, error) {
	return s.registry, nil
}

type fakeRepo struct {
	documents map[string]map[string]interface{}
}

func repoKey(registryCode, kind string, owner models.OwnerRef, contextID int64) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", registryCode, kind, owner.Kind, owner.ID, contextID)
}

func (r *fakeRepo) Collection(ctx context.Context, registryCode, kind string) ([]map[string]interface{}, error) {
	return nil, nil
}

func (r *fakeRepo) Find(ctx context.Context, registryCode, kind string, owner *models.OwnerRef, contextID int64, filters map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}

func (r *fakeRepo) FindOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (map[string]interface{}, error) {
	return r.documents[repoKey(registryCode, kind, owner, contextID)], nil
}

func (r *fakeRepo) Upsert(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64, document map[string]interface{}) error {
	r.documents[repoKey(registryCode, kind, owner, contextID)] = document
	return nil
}

func (r *fakeRepo) Insert(ctx context.Context, registryCode, kind string, document map[string]interface{}) (string, error) {
	return "", nil
}

func (r *fakeRepo) DeleteOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) error {
	return nil
}

func (r *fakeRepo) Exists(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (bool, error) {
	return false, nil
}

type fakeContexts struct {
	defaultID int64
}

func (s *fakeContexts) GetOrCreateDefaultContext(ctx context.Context, owner models.OwnerRef, registryCode string) (int64, error) {
	return s.defaultID, nil
}

func (s *fakeContexts) GetContext(ctx context.Context, contextID int64, owner models.OwnerRef) (*models.ClinicalContext, error) {
	return &models.ClinicalContext{ID: contextID, Owner: owner}, nil
}

func (s *fakeContexts) CreateContext(ctx context.Context, owner models.OwnerRef, registryCode string, formGroupID int64) (*models.ClinicalContext, error) {
	return &models.ClinicalContext{ID: s.defaultID, Owner: owner}, nil
}

type fakeConsents struct {
	answers map[string]*models.ConsentAnswer
}

func consentKey(owner models.OwnerRef, sectionCode, questionCode string) string {
	return fmt.Sprintf("%d|%s|%s", owner.ID, sectionCode, questionCode)
}

func (s *fakeConsents) GetAnswer(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string) (*models.ConsentAnswer, error) {
	return s.answers[consentKey(owner, sectionCode, questionCode)], nil
}

func (s *fakeConsents) SetAnswer(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string, answer bool) error {
	s.answers[consentKey(owner, sectionCode, questionCode)] = &models.ConsentAnswer{
		Owner:        owner,
		RegistryCode: registryCode,
		SectionCode:  sectionCode,
		QuestionCode: questionCode,
		Answer:       answer,
		LastUpdate:   time.Now(),
	}
	return nil
}

type fakeOwners struct {
	owners map[models.OwnerRef]contracts.FieldOwner
}

func (r *fakeOwners) Register(kind models.OwnerKind, loader contracts.OwnerLoader) {}

func (r *fakeOwners) Load(ctx context.Context, ref models.OwnerRef) (contracts.FieldOwner, error) {
	owner, ok := r.owners[ref]
	if !ok {
		return nil, &exceptions.FieldExpressionError{Reason: "no owner"}
	}
	return owner, nil
}

type fakePatients struct {
	saved []*models.Patient
}

func (s *fakePatients) CreatePatient(ctx context.Context, request *requests.CreatePatient) (*models.Patient, error) {
	return nil, nil
}

func (s *fakePatients) GetPatient(ctx context.Context, patientID int64) (*models.Patient, error) {
	return nil, nil
}

func (s *fakePatients) SavePatient(ctx context.Context, patient *models.Patient) error {
	s.saved = append(s.saved, patient)
	return nil
}

type expressionFixture struct {
	repo     *fakeRepo
	consents *fakeConsents
	patients *fakePatients
	patient  *models.Patient
	usecase  *expressionUsecase
}

func newExpressionFixture() *expressionFixture {
	patient := &models.Patient{
		ID:         1,
		FamilyName: "Smith",
		GivenNames: "Fred",
		Addresses: []models.PatientAddress{
			{Type: models.AddressTypeHome, Suburb: "Perth", Postcode: "6000"},
		},
	}
	fixture := &expressionFixture{
		repo:     &fakeRepo{documents: map[string]map[string]interface{}{}},
		consents: &fakeConsents{answers: map[string]*models.ConsentAnswer{}},
		patients: &fakePatients{},
		patient:  patient,
	}
	fixture.usecase = &expressionUsecase{
		SchemaProvider:     &fakeSchema{registry: expressionTestRegistry()},
		ClinicalRepository: fixture.repo,
		ContextService:     &fakeContexts{defaultID: 1},
		ConsentService:     fixture.consents,
		OwnerRegistry:      &fakeOwners{owners: map[models.OwnerRef]contracts.FieldOwner{patient.Ref(): patient}},
		PatientUsecase:     fixture.patients,
		ReportFunctions: map[string]contracts.ReportFunction{
			"full_name": func(ctx context.Context, owner contracts.FieldOwner) (interface{}, error) {
				patient := owner.(*models.Patient)
				return patient.GivenNames + " " + patient.FamilyName, nil
			},
		},
		Log: zap.NewNop(),
	}
	return fixture
}

func (f *expressionFixture) storeDocument(t *testing.T, value interface{}) {
	t.Helper()
	document := models.NewClinicalDocument(f.patient.Ref(), 1)
	document.SetCdeValue("simple", "sectionA", "CDEName", models.NewValue(value))
	require.NoError(t, f.repo.Upsert(context.Background(), "fh", constvars.CollectionCDEs, f.patient.Ref(), 1, document.ToMap()))
}

func TestEvaluate(t *testing.T) {
	fixture := newExpressionFixture()
	fixture.storeDocument(t, "Fred")
	require.NoError(t, fixture.consents.SetAnswer(context.Background(), fixture.patient.Ref(), "fh", "main", "q1", true))

	testCases := []struct {
		name       string
		expression string
		expected   interface{}
	}{
		{"plain field", "family_name", "Smith"},
		{"clinical value", "simple/sectionA/CDEName", "Fred"},
		{"consent answer", "Consents/main/q1/answer", true},
		{"address field", "Demographics/Address/Home/Suburb", "Perth"},
		{"report function", "@full_name", "Fred Smith"},
		{"unknown plain field", "shoe_size", constvars.ExpressionErrorSentinel},
		{"unknown report function", "@bogus", constvars.ExpressionErrorSentinel},
		{"malformed", "a/b", constvars.ExpressionErrorSentinel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := fixture.usecase.Evaluate(context.Background(), "fh", tc.expression, fixture.patient.Ref(), 0)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, value)
		})
	}
}

func TestEvaluateMissingDataIsNil(t *testing.T) {
	fixture := newExpressionFixture()

	value, err := fixture.usecase.Evaluate(context.Background(), "fh", "simple/sectionA/CDEName", fixture.patient.Ref(), 0)
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = fixture.usecase.Evaluate(context.Background(), "fh", "Consents/main/q1/answer", fixture.patient.Ref(), 0)
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = fixture.usecase.Evaluate(context.Background(), "fh", "Demographics/Address/Postal/Suburb", fixture.patient.Ref(), 0)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSetValueDoesNotPersist(t *testing.T) {
	fixture := newExpressionFixture()

	_, document, err := fixture.usecase.SetValue(context.Background(), "fh", "simple/sectionA/CDEName", fixture.patient, nil, "Wilma", 1)
	require.NoError(t, err)
	require.NotNil(t, document)

	value, found := document.GetCdeValue("simple", "sectionA", "CDEName")
	require.True(t, found)
	assert.Equal(t, "Wilma", value.Interface())

	// The write stayed in memory only.
	assert.Empty(t, fixture.repo.documents)
	assert.Empty(t, fixture.patients.saved)
}

func TestSetValueRejections(t *testing.T) {
	fixture := newExpressionFixture()

	testCases := []struct {
		name       string
		expression string
		value      interface{}
	}{
		{"report functions are read only", "@full_name", "x"},
		{"multisection target", "medications/sectionM/CDEDrug", "aspirin"},
		{"consent non-answer field", "Consents/main/q1/last_update", time.Now()},
		{"consent non-boolean", "Consents/main/q1/answer", "yes"},
		{"address non-string", "Demographics/Address/Home/Postcode", 6000},
		{"mistyped plain field", "active", "yes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := fixture.usecase.SetValue(context.Background(), "fh", tc.expression, fixture.patient, nil, tc.value, 1)
			require.Error(t, err)
			var exprErr *exceptions.FieldExpressionError
			assert.ErrorAs(t, err, &exprErr)
		})
	}
}

func TestUpdateFieldExpressions(t *testing.T) {
	fixture := newExpressionFixture()

	errorMessages, err := fixture.usecase.UpdateFieldExpressions(context.Background(), "fh", fixture.patient.Ref(), []contracts.ExpressionValue{
		{Expression: "family_name", Value: "Jones"},
		{Expression: "simple/sectionA/CDEName", Value: "Wilma"},
		{Expression: "Demographics/Address/Home/State", Value: "WA"},
		{Expression: "no_such_field", Value: "x"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, errorMessages, 1)

	// The owner and the document were each persisted once, after the batch.
	require.Len(t, fixture.patients.saved, 1)
	assert.Equal(t, "Jones", fixture.patients.saved[0].FamilyName)
	assert.Equal(t, "WA", fixture.patient.FindAddress(models.AddressTypeHome).State)

	value, err := fixture.usecase.Evaluate(context.Background(), "fh", "simple/sectionA/CDEName", fixture.patient.Ref(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Wilma", value)
}
