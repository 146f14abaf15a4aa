package clinicaldata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

type dynamicDataService struct {
	ClinicalRepository contracts.ClinicalRepository
	SchemaProvider     contracts.SchemaProvider
	ContextService     contracts.ContextService
	FileStorage        contracts.FileStorage
	EventPublisher     contracts.EventPublisher
	Log                *zap.Logger
}

var (
	dynamicDataServiceInstance contracts.DynamicDataService
	onceDynamicDataService     sync.Once
)

func NewDynamicDataService(
	clinicalRepository contracts.ClinicalRepository,
	schemaProvider contracts.SchemaProvider,
	contextService contracts.ContextService,
	fileStorage contracts.FileStorage,
	eventPublisher contracts.EventPublisher,
	logger *zap.Logger,
) contracts.DynamicDataService {
	onceDynamicDataService.Do(func() {
		dynamicDataServiceInstance = &dynamicDataService{
			ClinicalRepository: clinicalRepository,
			SchemaProvider:     schemaProvider,
			ContextService:     contextService,
			FileStorage:        fileStorage,
			EventPublisher:     eventPublisher,
			Log:                logger,
		}
	})
	return dynamicDataServiceInstance
}

func (s *dynamicDataService) Session(owner models.OwnerRef, contextRef contracts.ContextRef) contracts.DynamicDataSession {
	return &dynamicDataSession{service: s, owner: owner, contextRef: contextRef}
}

// dynamicDataSession binds one owner and one context selection for the
// duration of a request. The resolved context id is cached on the session so
// a deferred-creation context keeps its id across calls after the first save.
type dynamicDataSession struct {
	service    *dynamicDataService
	owner      models.OwnerRef
	contextRef contracts.ContextRef

	contextID int64
	resolved  bool
}

func (s *dynamicDataSession) ContextID() int64 {
	return s.contextID
}

// resolveContext turns the session's context selection into a concrete id.
// A create-on-save context that has not been created yet resolves to 0; read
// paths treat that as "no data", and SaveDynamicData creates the context.
func (s *dynamicDataSession) resolveContext(ctx context.Context, registryCode string) (int64, error) {
	if s.resolved {
		return s.contextID, nil
	}
	if s.contextRef.ID != 0 {
		clinicalContext, err := s.service.ContextService.GetContext(ctx, s.contextRef.ID, s.owner)
		if err != nil {
			return 0, err
		}
		if clinicalContext == nil {
			return 0, exceptions.ErrContextNotFound(nil)
		}
		s.contextID = clinicalContext.ID
		s.resolved = true
		return s.contextID, nil
	}
	if s.contextRef.CreateOnSave {
		return 0, nil
	}
	contextID, err := s.service.ContextService.GetOrCreateDefaultContext(ctx, s.owner, registryCode)
	if err != nil {
		return 0, err
	}
	s.contextID = contextID
	s.resolved = true
	return s.contextID, nil
}

func (s *dynamicDataSession) LoadDynamicData(ctx context.Context, registryCode, kind string, flattened bool) (map[string]interface{}, error) {
	contextID, err := s.resolveContext(ctx, registryCode)
	if err != nil {
		return nil, err
	}
	if contextID == 0 && s.contextRef.CreateOnSave {
		return nil, nil
	}
	raw, err := s.service.ClinicalRepository.FindOne(ctx, registryCode, kind, s.owner, contextID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	if !flattened {
		return raw, nil
	}
	document, err := models.ParseClinicalDocument(raw)
	if err != nil {
		return nil, err
	}
	return Flatten(document), nil
}

// SaveDynamicData runs the full write pipeline: normalize dates, resolve
// file uploads against the stored document, nest the submission, merge
// additional data, create a deferred context if needed, persist, recompute
// form progress and publish the save event.
func (s *dynamicDataSession) SaveDynamicData(ctx context.Context, registryCode, kind string, formData map[string]interface{}, opts contracts.SaveOptions) error {
	registry, err := s.service.SchemaProvider.GetRegistryDefinition(ctx, registryCode)
	if err != nil {
		return err
	}

	utils.NormalizeDates(formData)

	contextID, err := s.resolveContext(ctx, registryCode)
	if err != nil {
		return err
	}

	var existing *models.ClinicalDocument
	if contextID != 0 {
		raw, err := s.service.ClinicalRepository.FindOne(ctx, registryCode, kind, s.owner, contextID)
		if err != nil {
			return err
		}
		if raw != nil {
			if existing, err = models.ParseClinicalDocument(raw); err != nil {
				return err
			}
		}
	}

	if err := s.resolveFileUploads(ctx, registry, formData, existing, opts); err != nil {
		return err
	}

	document, err := Nest(registry, opts.FormName, formData, existing, NestOptions{
		Multisection:  opts.Multisection,
		SectionCode:   opts.SectionCode,
		ParseAllForms: opts.ParseAllForms,
	})
	if err != nil {
		return err
	}

	for key, value := range opts.AdditionalData {
		document.Extra[key] = value
	}

	if contextID == 0 && s.contextRef.CreateOnSave {
		clinicalContext, err := s.service.ContextService.CreateContext(ctx, s.owner, registryCode, s.contextRef.FormGroupID)
		if err != nil {
			return err
		}
		contextID = clinicalContext.ID
		s.contextID = contextID
		s.resolved = true
	}

	now := time.Now().UTC()
	document.Owner = s.owner
	document.ContextID = contextID
	document.Timestamp = now
	if opts.FormName != "" {
		document.FormTimestamps[opts.FormName] = now
	}

	if err := s.service.ClinicalRepository.Upsert(ctx, registryCode, kind, s.owner, contextID, document.ToMap()); err != nil {
		return err
	}

	if kind == constvars.CollectionCDEs && opts.FormName != "" {
		if err := s.updateFormProgress(ctx, registry, opts.FormName, document); err != nil {
			return err
		}
	}

	s.publish(ctx, constvars.EventClinicalSaved, registryCode, opts.FormName, now)
	return nil
}

// resolveFileUploads replaces upload sentinels in the submission with stored
// file references before nesting. A nil value keeps the previously stored
// reference, false clears it. Superseded blobs are deleted best effort.
func (s *dynamicDataSession) resolveFileUploads(ctx context.Context, registry *models.Registry, formData map[string]interface{}, existing *models.ClinicalDocument, opts contracts.SaveOptions) error {
	for key, value := range formData {
		if strings.Contains(key, constvars.FormDataDelimiter) {
			form, section, cde, err := ResolveKey(registry, key)
			if err != nil {
				// Nest reports bad keys with full context; skip here.
				continue
			}
			if cde.DataType != models.DataTypeFile {
				continue
			}
			var stored models.Value
			storedFound := false
			if existing != nil {
				stored, storedFound = existing.GetCdeValue(form.Name, section.Code, cde.Code)
			}
			resolved, err := s.resolveFileValue(ctx, registry.Code, cde.Code, value, stored, storedFound)
			if err != nil {
				return err
			}
			formData[key] = resolved
			continue
		}

		// Multisection items: line each surviving item up with its original
		// stored position through the delete index map.
		section, form := findMultisection(registry, key)
		if section == nil {
			continue
		}
		items, ok := toItemList(formData[key])
		if !ok {
			continue
		}
		var storedItems [][]models.CdeEntry
		if existing != nil {
			if formRecord := existing.FindForm(form.Name); formRecord != nil {
				if sectionRecord := formRecord.FindSection(section.Code); sectionRecord != nil {
					storedItems = sectionRecord.Items
				}
			}
		}
		for index, item := range items {
			original := index
			if mapped, ok := opts.IndexMap[index]; ok {
				original = mapped
			}
			for itemKey, itemValue := range item {
				_, _, cde, err := ResolveKey(registry, itemKey)
				if err != nil || cde.DataType != models.DataTypeFile {
					continue
				}
				var stored models.Value
				storedFound := false
				if original < len(storedItems) {
					for _, entry := range storedItems[original] {
						if entry.Code == cde.Code {
							stored = entry.Value
							storedFound = true
							break
						}
					}
				}
				resolved, err := s.resolveFileValue(ctx, registry.Code, cde.Code, itemValue, stored, storedFound)
				if err != nil {
					return err
				}
				item[itemKey] = resolved
			}
		}
	}
	return nil
}

func (s *dynamicDataSession) resolveFileValue(ctx context.Context, registryCode, cdeCode string, submitted interface{}, stored models.Value, storedFound bool) (interface{}, error) {
	switch v := submitted.(type) {
	case *models.FileUpload:
		ref, err := s.service.FileStorage.Store(ctx, registryCode, cdeCode, v)
		if err != nil {
			return nil, err
		}
		s.deleteStoredFile(ctx, stored, storedFound)
		return ref.ToMap(), nil
	case nil:
		if storedFound {
			return stored.Interface(), nil
		}
		return nil, nil
	case bool:
		if v {
			if storedFound {
				return stored.Interface(), nil
			}
			return nil, nil
		}
		// An explicit false clears the field.
		s.deleteStoredFile(ctx, stored, storedFound)
		return nil, nil
	default:
		return submitted, nil
	}
}

func (s *dynamicDataSession) deleteStoredFile(ctx context.Context, stored models.Value, storedFound bool) {
	if !storedFound {
		return
	}
	ref, ok := models.ParseFileReference(stored)
	if !ok {
		return
	}
	if !s.service.FileStorage.Delete(ctx, ref) {
		s.service.Log.Warn("Failed to delete superseded file",
			zap.String(constvars.LoggingFileRefKey, ref.ReferenceID),
		)
	}
}

// SaveSnapshot appends an immutable copy of the live document to the history
// collection. Snapshot failures are logged and swallowed; the primary save
// must never be rolled back by history bookkeeping.
func (s *dynamicDataSession) SaveSnapshot(ctx context.Context, registryCode, kind string) {
	contextID, err := s.resolveContext(ctx, registryCode)
	if err != nil {
		s.service.Log.Warn("Failed to resolve context for snapshot",
			zap.String(constvars.LoggingRegistryCodeKey, registryCode),
			zap.Error(err),
		)
		return
	}
	if contextID == 0 {
		return
	}
	raw, err := s.service.ClinicalRepository.FindOne(ctx, registryCode, kind, s.owner, contextID)
	if err != nil || raw == nil {
		if err != nil {
			s.service.Log.Warn("Failed to load document for snapshot",
				zap.String(constvars.LoggingRegistryCodeKey, registryCode),
				zap.Error(err),
			)
		}
		return
	}

	now := time.Now().UTC()
	snapshot := map[string]interface{}{
		constvars.DocumentFieldRecordType:  constvars.RecordTypeSnapshot,
		constvars.DocumentFieldTimestamp:   now,
		constvars.DocumentFieldRecord:      raw,
		constvars.DocumentFieldDjangoID:    s.owner.ID,
		constvars.DocumentFieldDjangoModel: string(s.owner.Kind),
		constvars.DocumentFieldContextID:   contextID,
	}
	if _, err := s.service.ClinicalRepository.Insert(ctx, registryCode, constvars.CollectionHistory, snapshot); err != nil {
		s.service.Log.Warn("Failed to insert history snapshot",
			zap.String(constvars.LoggingRegistryCodeKey, registryCode),
			zap.Error(err),
		)
		return
	}
	s.publish(ctx, constvars.EventClinicalSnapshot, registryCode, "", now)
}

func (s *dynamicDataSession) GetCdeVal(ctx context.Context, registryCode, formName, sectionCode, cdeCode string) (interface{}, error) {
	registry, err := s.service.SchemaProvider.GetRegistryDefinition(ctx, registryCode)
	if err != nil {
		return nil, err
	}
	if err := validateTriple(registry, formName, sectionCode, cdeCode); err != nil {
		return nil, err
	}
	contextID, err := s.resolveContext(ctx, registryCode)
	if err != nil {
		return nil, err
	}
	if contextID == 0 {
		return nil, nil
	}
	raw, err := s.service.ClinicalRepository.FindOne(ctx, registryCode, constvars.CollectionCDEs, s.owner, contextID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	document, err := models.ParseClinicalDocument(raw)
	if err != nil {
		return nil, err
	}
	value, found := document.GetCdeValue(formName, sectionCode, cdeCode)
	if !found {
		return nil, nil
	}
	return value.Interface(), nil
}

// GetCdeHistory returns the distinct timeline of one CDE across all stored
// snapshots for the owner: sorted by snapshot timestamp with insertion order
// breaking ties, then collapsed so each run of identical consecutive values
// keeps only its first snapshot.
func (s *dynamicDataSession) GetCdeHistory(ctx context.Context, registryCode, formName, sectionCode, cdeCode string) ([]models.HistoryEntry, error) {
	registry, err := s.service.SchemaProvider.GetRegistryDefinition(ctx, registryCode)
	if err != nil {
		return nil, err
	}
	if err := validateTriple(registry, formName, sectionCode, cdeCode); err != nil {
		return nil, err
	}

	snapshots, err := s.service.ClinicalRepository.Find(ctx, registryCode, constvars.CollectionHistory, &s.owner, 0, map[string]interface{}{
		constvars.DocumentFieldRecordType: constvars.RecordTypeSnapshot,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.HistoryEntry, 0, len(snapshots))
	for _, snapshot := range snapshots {
		record, ok := asDocumentMap(snapshot[constvars.DocumentFieldRecord])
		if !ok {
			continue
		}
		document, err := models.ParseClinicalDocument(record)
		if err != nil {
			continue
		}
		value, found := document.GetCdeValue(formName, sectionCode, cdeCode)
		if !found {
			continue
		}
		ts, _ := asTime(snapshot[constvars.DocumentFieldTimestamp])
		entries = append(entries, models.HistoryEntry{
			ID:        documentID(snapshot),
			Timestamp: ts,
			Value:     value.Interface(),
		})
	}

	// The repository returns snapshots in insertion order; the stable sort
	// keeps that order for equal timestamps.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return collapseRuns(entries), nil
}

// collapseRuns keeps the first entry of each run of consecutive identical
// values, e.g. [A, A, B, B, B, A, C] reduces to [A, B, A, C].
func collapseRuns(entries []models.HistoryEntry) []models.HistoryEntry {
	collapsed := make([]models.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if len(collapsed) > 0 {
			previous := models.NewValue(collapsed[len(collapsed)-1].Value)
			if models.NewValue(entry.Value).Equal(previous) {
				continue
			}
		}
		collapsed = append(collapsed, entry)
	}
	return collapsed
}

func (s *dynamicDataSession) UpdateDynamicData(ctx context.Context, registryCode string, document *models.ClinicalDocument) error {
	if document.ContextID == 0 {
		return &exceptions.KeyValueMissing{Key: constvars.DocumentFieldContextID}
	}
	return s.service.ClinicalRepository.Upsert(ctx, registryCode, constvars.CollectionCDEs, document.Owner, document.ContextID, document.ToMap())
}

func (s *dynamicDataSession) HasData(ctx context.Context, registryCode string) (bool, error) {
	contextID, err := s.resolveContext(ctx, registryCode)
	if err != nil {
		return false, err
	}
	if contextID == 0 {
		return false, nil
	}
	return s.service.ClinicalRepository.Exists(ctx, registryCode, constvars.CollectionCDEs, s.owner, contextID)
}

// DeletePatientRecord hard-deletes one context's document. Only patient-owned
// records may be removed this way.
func (s *dynamicDataSession) DeletePatientRecord(ctx context.Context, registryCode string, contextID int64) error {
	if s.owner.Kind != models.OwnerKindPatient {
		return exceptions.WrapWithoutError(constvars.StatusBadRequest, constvars.ErrClientCannotProcessRequest, fmt.Sprintf("record deletion is limited to patient owners, got %s", s.owner.Kind))
	}
	return s.service.ClinicalRepository.DeleteOne(ctx, registryCode, constvars.CollectionCDEs, s.owner, contextID)
}

func (s *dynamicDataSession) publish(ctx context.Context, routingKey, registryCode, formName string, timestamp time.Time) {
	if s.service.EventPublisher == nil {
		return
	}
	event := contracts.ClinicalEvent{
		EventID:      uuid.NewString(),
		RegistryCode: registryCode,
		OwnerKind:    string(s.owner.Kind),
		OwnerID:      s.owner.ID,
		ContextID:    s.contextID,
		FormName:     formName,
		Timestamp:    timestamp,
	}
	if err := s.service.EventPublisher.Publish(ctx, routingKey, event); err != nil {
		s.service.Log.Warn("Failed to publish clinical event",
			zap.String(constvars.LoggingEventKey, routingKey),
			zap.Error(err),
		)
	}
}

func validateTriple(registry *models.Registry, formName, sectionCode, cdeCode string) error {
	form := registry.FindForm(formName)
	if form == nil {
		return exceptions.ErrFormNotFound(nil, formName)
	}
	section := form.FindSection(sectionCode)
	if section == nil {
		return &exceptions.KeyValueMissing{Key: sectionCode}
	}
	if section.FindCde(cdeCode) == nil {
		return &exceptions.KeyValueMissing{Key: cdeCode}
	}
	return nil
}

func asDocumentMap(raw interface{}) (map[string]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, true
	case primitive.M:
		return map[string]interface{}(v), true
	}
	return nil, false
}

func documentID(document map[string]interface{}) string {
	switch id := document["_id"].(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}
