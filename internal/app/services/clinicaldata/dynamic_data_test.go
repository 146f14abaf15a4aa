package clinicaldata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type fakeClinicalRepository struct {
	documents map[string]map[string]interface{}
	inserted  []map[string]interface{}
	insertSeq int
}

func newFakeClinicalRepository() *fakeClinicalRepository {
	return &fakeClinicalRepository{documents: map[string]map[string]interface{}{}}
}

func docKey(registryCode, kind string, owner models.OwnerRef, contextID int64) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", registryCode, kind, owner.Kind, owner.ID, contextID)
}

func (r *fakeClinicalRepository) Collection(ctx context.Context, registryCode, kind string) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	for key, doc := range r.documents {
		if strings.HasPrefix(key, registryCode+"|"+kind+"|") {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeClinicalRepository) Find(ctx context.Context, registryCode, kind string, owner *models.OwnerRef, contextID int64, filters map[string]interface{}) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	for _, doc := range r.inserted {
		if owner != nil && (doc[constvars.DocumentFieldDjangoID] != owner.ID || doc[constvars.DocumentFieldDjangoModel] != string(owner.Kind)) {
			continue
		}
		match := true
		for path, expected := range filters {
			if doc[path] != expected {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeClinicalRepository) FindOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (map[string]interface{}, error) {
	doc, ok := r.documents[docKey(registryCode, kind, owner, contextID)]
	if !ok {
		return nil, nil
	}
	return doc, nil
}

func (r *fakeClinicalRepository) Upsert(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64, document map[string]interface{}) error {
	r.documents[docKey(registryCode, kind, owner, contextID)] = document
	return nil
}

func (r *fakeClinicalRepository) Insert(ctx context.Context, registryCode, kind string, document map[string]interface{}) (string, error) {
	r.insertSeq++
	id := fmt.Sprintf("hist-%d", r.insertSeq)
	document["_id"] = id
	r.inserted = append(r.inserted, document)
	return id, nil
}

func (r *fakeClinicalRepository) DeleteOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) error {
	delete(r.documents, docKey(registryCode, kind, owner, contextID))
	return nil
}

func (r *fakeClinicalRepository) Exists(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (bool, error) {
	_, ok := r.documents[docKey(registryCode, kind, owner, contextID)]
	return ok, nil
}

type fakeSchemaProvider struct {
	registry *models.Registry
}

func (p *fakeSchemaProvider) GetRegistryDefinition(ctx context.Context, registryCode string) (*models.Registry, error) {
	return p.registry, nil
}

type fakeContextService struct {
	nextID   int64
	contexts map[int64]*models.ClinicalContext
}

func newFakeContextService() *fakeContextService {
	return &fakeContextService{contexts: map[int64]*models.ClinicalContext{}}
}

func (s *fakeContextService) GetOrCreateDefaultContext(ctx context.Context, owner models.OwnerRef, registryCode string) (int64, error) {
	for _, clinicalContext := range s.contexts {
		if clinicalContext.Owner == owner && clinicalContext.RegistryCode == registryCode && clinicalContext.ContextFormGroupID == 0 {
			return clinicalContext.ID, nil
		}
	}
	created, err := s.CreateContext(ctx, owner, registryCode, 0)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (s *fakeContextService) GetContext(ctx context.Context, contextID int64, owner models.OwnerRef) (*models.ClinicalContext, error) {
	clinicalContext, ok := s.contexts[contextID]
	if !ok || clinicalContext.Owner != owner {
		return nil, exceptions.ErrContextNotFound(nil)
	}
	return clinicalContext, nil
}

func (s *fakeContextService) CreateContext(ctx context.Context, owner models.OwnerRef, registryCode string, formGroupID int64) (*models.ClinicalContext, error) {
	s.nextID++
	clinicalContext := &models.ClinicalContext{
		ID:                 s.nextID,
		RegistryCode:       registryCode,
		Owner:              owner,
		ContextFormGroupID: formGroupID,
		CreatedAt:          time.Now(),
	}
	s.contexts[clinicalContext.ID] = clinicalContext
	return clinicalContext, nil
}

type fakeFileStorage struct {
	stored  map[string]string
	deleted []string
	seq     int
}

func newFakeFileStorage() *fakeFileStorage {
	return &fakeFileStorage{stored: map[string]string{}}
}

func (s *fakeFileStorage) Store(ctx context.Context, registryCode, cdeCode string, upload *models.FileUpload) (models.FileReference, error) {
	s.seq++
	ref := models.FileReference{
		ReferenceID: fmt.Sprintf("%s/%s/file-%d", registryCode, cdeCode, s.seq),
		Filename:    upload.Filename,
	}
	s.stored[ref.ReferenceID] = upload.Filename
	return ref, nil
}

func (s *fakeFileStorage) Delete(ctx context.Context, ref models.FileReference) bool {
	s.deleted = append(s.deleted, ref.ReferenceID)
	delete(s.stored, ref.ReferenceID)
	return true
}

func (s *fakeFileStorage) Fetch(ctx context.Context, referenceID string) (io.ReadCloser, string, error) {
	return nil, "", errors.New("not implemented")
}

type fakeEventPublisher struct {
	events []string
}

func (p *fakeEventPublisher) Publish(ctx context.Context, routingKey string, event contracts.ClinicalEvent) error {
	p.events = append(p.events, routingKey)
	return nil
}

type wrapperFixture struct {
	repo     *fakeClinicalRepository
	contexts *fakeContextService
	files    *fakeFileStorage
	events   *fakeEventPublisher
	service  *dynamicDataService
}

func newWrapperFixture() *wrapperFixture {
	fixture := &wrapperFixture{
		repo:     newFakeClinicalRepository(),
		contexts: newFakeContextService(),
		files:    newFakeFileStorage(),
		events:   &fakeEventPublisher{},
	}
	fixture.service = &dynamicDataService{
		ClinicalRepository: fixture.repo,
		SchemaProvider:     &fakeSchemaProvider{registry: testRegistry()},
		ContextService:     fixture.contexts,
		FileStorage:        fixture.files,
		EventPublisher:     fixture.events,
		Log:                zap.NewNop(),
	}
	return fixture
}

var testOwner = models.OwnerRef{Kind: models.OwnerKindPatient, ID: 1}

func TestSaveAndLoadFormData(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	err := session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
		"simple____sectionA____CDEAge":  40,
	}, contracts.SaveOptions{FormName: "simple"})
	require.NoError(t, err)

	flat, err := session.LoadDynamicData(ctx, "fh", constvars.CollectionCDEs, true)
	require.NoError(t, err)
	require.NotNil(t, flat)
	assert.Equal(t, "Fred", flat["simple____sectionA____CDEName"])
	assert.Contains(t, flat, "timestamp")
	assert.Contains(t, flat, "simple_timestamp")
	assert.Equal(t, []string{constvars.EventClinicalSaved}, fixture.events.events)
}

func TestSaveIsCreateOrUpdate(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	for _, name := range []string{"Fred", "Wilma"} {
		err := session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
			"simple____sectionA____CDEName": name,
		}, contracts.SaveOptions{FormName: "simple"})
		require.NoError(t, err)
	}

	// Repeated saves update the single document for the key tuple.
	assert.Len(t, fixture.repo.documents, 1)
	value, err := session.GetCdeVal(ctx, "fh", "simple", "sectionA", "CDEName")
	require.NoError(t, err)
	assert.Equal(t, "Wilma", value)
}

func TestSavePreservesOtherForms(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, contracts.SaveOptions{FormName: "simple"}))

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"sectionM": []interface{}{
			map[string]interface{}{"medications____sectionM____CDEDrug": "aspirin"},
		},
	}, contracts.SaveOptions{FormName: "medications", Multisection: true, SectionCode: "sectionM"}))

	value, err := session.GetCdeVal(ctx, "fh", "simple", "sectionA", "CDEName")
	require.NoError(t, err)
	assert.Equal(t, "Fred", value)
}

func TestSaveBadKeyPropagatesAndKeepsStoredDocument(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, contracts.SaveOptions{FormName: "simple"}))

	err := session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEBogus": "x",
	}, contracts.SaveOptions{FormName: "simple"})
	var badKey *exceptions.BadKeyError
	require.True(t, errors.As(err, &badKey))

	value, err := session.GetCdeVal(ctx, "fh", "simple", "sectionA", "CDEName")
	require.NoError(t, err)
	assert.Equal(t, "Fred", value)
}

func TestCreateOnSaveContext(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.AddContext(0))
	ctx := context.Background()

	// Nothing exists before the first save and no context is created by reads.
	flat, err := session.LoadDynamicData(ctx, "fh", constvars.CollectionCDEs, true)
	require.NoError(t, err)
	assert.Nil(t, flat)
	assert.Empty(t, fixture.contexts.contexts)

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, contracts.SaveOptions{FormName: "simple"}))

	assert.NotZero(t, session.ContextID())
	assert.Len(t, fixture.contexts.contexts, 1)

	flat, err = session.LoadDynamicData(ctx, "fh", constvars.CollectionCDEs, true)
	require.NoError(t, err)
	assert.Equal(t, "Fred", flat["simple____sectionA____CDEName"])
}

func TestSnapshotAndHistoryCollapse(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	for _, value := range []string{"A", "A", "B", "B", "B", "A", "C"} {
		require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
			"simple____sectionA____CDEName": value,
		}, contracts.SaveOptions{FormName: "simple"}))
		session.SaveSnapshot(ctx, "fh", constvars.CollectionCDEs)
	}
	require.Len(t, fixture.repo.inserted, 7)

	entries, err := session.GetCdeHistory(ctx, "fh", "simple", "sectionA", "CDEName")
	require.NoError(t, err)

	values := make([]interface{}, len(entries))
	for i, entry := range entries {
		values[i] = entry.Value
	}
	assert.Equal(t, []interface{}{"A", "B", "A", "C"}, values)
}

func TestFileValueLifecycle(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	upload := &models.FileUpload{Filename: "scan.pdf", Content: strings.NewReader("pdf"), Size: 3}
	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionB____CDEScan": upload,
	}, contracts.SaveOptions{FormName: "simple"}))

	stored, err := session.GetCdeVal(ctx, "fh", "simple", "sectionB", "CDEScan")
	require.NoError(t, err)
	ref, ok := stored.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "scan.pdf", ref["filename"])

	// A nil value keeps the stored reference.
	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionB____CDEScan": nil,
	}, contracts.SaveOptions{FormName: "simple"}))
	kept, err := session.GetCdeVal(ctx, "fh", "simple", "sectionB", "CDEScan")
	require.NoError(t, err)
	assert.Equal(t, ref["reference_id"], kept.(map[string]interface{})["reference_id"])
	assert.Empty(t, fixture.files.deleted)

	// An explicit false clears the value and deletes the blob.
	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionB____CDEScan": false,
	}, contracts.SaveOptions{FormName: "simple"}))
	cleared, err := session.GetCdeVal(ctx, "fh", "simple", "sectionB", "CDEScan")
	require.NoError(t, err)
	assert.Nil(t, cleared)
	assert.Len(t, fixture.files.deleted, 1)
}

func TestUpdateDynamicDataRequiresContext(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())

	doc := models.NewClinicalDocument(testOwner, 0)
	err := session.UpdateDynamicData(context.Background(), "fh", doc)
	var missing *exceptions.KeyValueMissing
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "context_id", missing.Key)
}

func TestHasDataAndDelete(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	hasData, err := session.HasData(ctx, "fh")
	require.NoError(t, err)
	assert.False(t, hasData)

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"simple____sectionA____CDEName": "Fred",
	}, contracts.SaveOptions{FormName: "simple"}))

	hasData, err = session.HasData(ctx, "fh")
	require.NoError(t, err)
	assert.True(t, hasData)

	require.NoError(t, session.DeletePatientRecord(ctx, "fh", session.ContextID()))
	hasData, err = session.HasData(ctx, "fh")
	require.NoError(t, err)
	assert.False(t, hasData)

	guardianSession := fixture.service.Session(models.OwnerRef{Kind: models.OwnerKindParentGuardian, ID: 2}, contracts.DefaultContext())
	assert.Error(t, guardianSession.DeletePatientRecord(ctx, "fh", 1))
}

func TestMultisectionDeleteReindex(t *testing.T) {
	fixture := newWrapperFixture()
	session := fixture.service.Session(testOwner, contracts.DefaultContext())
	ctx := context.Background()

	items := []interface{}{
		map[string]interface{}{"medications____sectionM____CDEDrug": "aspirin"},
		map[string]interface{}{"medications____sectionM____CDEDrug": "statin"},
		map[string]interface{}{"medications____sectionM____CDEDrug": "metformin"},
	}
	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"sectionM": items,
	}, contracts.SaveOptions{FormName: "medications", Multisection: true, SectionCode: "sectionM"}))

	submitted := []map[string]interface{}{
		{"medications____sectionM____CDEDrug": "aspirin"},
		{"medications____sectionM____CDEDrug": "statin", "DELETE": true},
		{"medications____sectionM____CDEDrug": "metformin"},
	}
	kept, indexMap := StripDeletedItems(submitted)
	keptList := make([]interface{}, len(kept))
	for i, item := range kept {
		keptList[i] = item
	}

	require.NoError(t, session.SaveDynamicData(ctx, "fh", constvars.CollectionCDEs, map[string]interface{}{
		"sectionM": keptList,
	}, contracts.SaveOptions{FormName: "medications", Multisection: true, SectionCode: "sectionM", IndexMap: indexMap}))

	value, err := session.GetCdeVal(ctx, "fh", "medications", "sectionM", "CDEDrug")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"aspirin", "metformin"}, value)
}
