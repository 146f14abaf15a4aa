package clinicaldata

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

// The document codec converts between the flattened key/value shape posted
// by HTML forms ("form____section____cde" -> value) and the nested
// forms/sections/cdes document persisted in the clinical store.

// NestOptions tunes one Nest call.
type NestOptions struct {
	// Multisection restricts the submission to a single repeating section;
	// SectionCode names it. The stored item list is replaced wholesale.
	Multisection bool
	SectionCode  string
	// ParseAllForms accepts keys addressed to any form of the registry, not
	// just the current one.
	ParseAllForms bool
}

// Flatten emits the form representation of a document: one delimited key per
// plain CDE, one item-dict list per multisection, and every non-form
// top-level field passed through unchanged.
func Flatten(document *models.ClinicalDocument) map[string]interface{} {
	flat := map[string]interface{}{
		constvars.DocumentFieldDjangoID:    document.Owner.ID,
		constvars.DocumentFieldDjangoModel: string(document.Owner.Kind),
		constvars.DocumentFieldContextID:   document.ContextID,
	}
	if !document.Timestamp.IsZero() {
		flat[constvars.SpecialKeyTimestamp] = document.Timestamp
	}
	for formName, ts := range document.FormTimestamps {
		flat[formName+constvars.FormTimestampSuffix] = ts
	}
	for key, value := range document.Extra {
		flat[key] = value
	}

	for _, form := range document.Forms {
		for _, section := range form.Sections {
			if section.AllowMultiple {
				items := make([]interface{}, len(section.Items))
				for i, item := range section.Items {
					itemFlat := map[string]interface{}{}
					for _, entry := range item {
						itemFlat[delimitedKey(form.Name, section.Code, entry.Code)] = entry.Value.Interface()
					}
					items[i] = itemFlat
				}
				flat[section.Code] = items
				continue
			}
			for _, entry := range section.Entries {
				flat[delimitedKey(form.Name, section.Code, entry.Code)] = entry.Value.Interface()
			}
		}
	}
	return flat
}

// Nest merges a flattened submission into existing (or a fresh skeleton when
// existing is nil) and returns the merged document. The input document is
// never mutated: merging happens on a deep copy, so a failed resolution
// leaves the caller's document intact.
func Nest(registry *models.Registry, formName string, flat map[string]interface{}, existing *models.ClinicalDocument, opts NestOptions) (*models.ClinicalDocument, error) {
	var working *models.ClinicalDocument
	if existing != nil {
		working = existing.Clone()
	} else {
		working = models.NewClinicalDocument(models.OwnerRef{}, 0)
	}

	if opts.Multisection {
		if err := nestMultisection(registry, formName, opts.SectionCode, flat, working); err != nil {
			return nil, err
		}
		return working, nil
	}

	for key, value := range flat {
		if handled, err := applySpecialKey(registry, working, key, value); err != nil {
			return nil, err
		} else if handled {
			continue
		}

		if strings.Contains(key, constvars.FormDataDelimiter) {
			if err := applyDelimitedKey(registry, formName, working, key, value, opts.ParseAllForms); err != nil {
				return nil, err
			}
			continue
		}

		if section, owningForm := findMultisection(registry, key); section != nil {
			items, ok := toItemList(value)
			if !ok {
				return nil, &exceptions.FormParsingError{Form: owningForm.Name, Reason: "multisection " + key + " must be submitted as an item list"}
			}
			if err := replaceItems(registry, owningForm.Name, section.Code, items, working); err != nil {
				return nil, err
			}
			continue
		}

		// Any other bare key is a top-level passthrough field.
		working.Extra[key] = value
	}
	return working, nil
}

func delimitedKey(formName, sectionCode, cdeCode string) string {
	return formName + constvars.FormDataDelimiter + sectionCode + constvars.FormDataDelimiter + cdeCode
}

// applySpecialKey extracts timestamps, consent data, the address section and
// owner identity fields to their top-level homes. Identity fields are owned
// by the wrapper and never merged from submissions.
func applySpecialKey(registry *models.Registry, working *models.ClinicalDocument, key string, value interface{}) (bool, error) {
	switch key {
	case "_id", constvars.DocumentFieldDjangoID, constvars.DocumentFieldDjangoModel, constvars.DocumentFieldContextID:
		return true, nil
	case constvars.SpecialKeyTimestamp:
		if ts, ok := asTime(value); ok {
			working.Timestamp = ts
		}
		return true, nil
	case constvars.SpecialKeyCustomConsentData, constvars.SpecialKeyAddressSection:
		working.Extra[key] = value
		return true, nil
	}

	if strings.HasSuffix(key, constvars.FormTimestampSuffix) {
		formName := strings.TrimSuffix(key, constvars.FormTimestampSuffix)
		if registry.FindForm(formName) != nil {
			if ts, ok := asTime(value); ok {
				working.FormTimestamps[formName] = ts
			}
			return true, nil
		}
	}
	return false, nil
}

// applyDelimitedKey resolves one "form____section____cde" key against the
// registry definition and performs the merge-by-code-or-append update.
func applyDelimitedKey(registry *models.Registry, formName string, working *models.ClinicalDocument, key string, value interface{}, parseAllForms bool) error {
	form, section, cde, err := ResolveKey(registry, key)
	if err != nil {
		return err
	}
	if !parseAllForms && form.Name != formName {
		return &exceptions.BadKeyError{Key: key, Registry: registry.Code}
	}
	if section.AllowMultiple {
		return &exceptions.FormParsingError{Form: form.Name, Reason: "cde " + cde.Code + " belongs to multisection " + section.Code + " and cannot be set by key"}
	}
	working.FindOrCreateForm(form.Name).
		FindOrCreateSection(section.Code, false).
		SetEntry(cde.Code, models.NewValue(value))
	return nil
}

// ResolveKey splits a delimited key and walks form → section → cde through
// the registry definition. Any unresolved level is a BadKeyError.
func ResolveKey(registry *models.Registry, key string) (*models.RegistryForm, *models.Section, *models.CommonDataElement, error) {
	parts := strings.Split(key, constvars.FormDataDelimiter)
	if len(parts) != 3 {
		return nil, nil, nil, &exceptions.BadKeyError{Key: key, Registry: registry.Code}
	}
	form := registry.FindForm(parts[0])
	if form == nil {
		return nil, nil, nil, &exceptions.BadKeyError{Key: key, Registry: registry.Code}
	}
	section := form.FindSection(parts[1])
	if section == nil {
		return nil, nil, nil, &exceptions.BadKeyError{Key: key, Registry: registry.Code}
	}
	cde := section.FindCde(parts[2])
	if cde == nil {
		return nil, nil, nil, &exceptions.BadKeyError{Key: key, Registry: registry.Code}
	}
	return form, section, cde, nil
}

func nestMultisection(registry *models.Registry, formName, sectionCode string, flat map[string]interface{}, working *models.ClinicalDocument) error {
	if sectionCode == "" {
		return &exceptions.KeyValueMissing{Key: "section_code"}
	}
	raw, ok := flat[sectionCode]
	if !ok {
		return &exceptions.KeyValueMissing{Key: sectionCode}
	}
	items, ok := toItemList(raw)
	if !ok {
		return &exceptions.FormParsingError{Form: formName, Reason: "multisection " + sectionCode + " must be submitted as an item list"}
	}
	return replaceItems(registry, formName, sectionCode, items, working)
}

// replaceItems swaps in the whole item list for one multisection. Deleted
// items must already be stripped by the caller; partial merge of items is not
// supported.
func replaceItems(registry *models.Registry, formName, sectionCode string, items []map[string]interface{}, working *models.ClinicalDocument) error {
	form := registry.FindForm(formName)
	if form == nil {
		return &exceptions.BadKeyError{Key: formName, Registry: registry.Code}
	}
	section := form.FindSection(sectionCode)
	if section == nil {
		return &exceptions.BadKeyError{Key: sectionCode, Registry: registry.Code}
	}
	if !section.AllowMultiple {
		return &exceptions.FormParsingError{Form: formName, Reason: "section " + sectionCode + " does not allow multiple items"}
	}

	newItems := make([][]models.CdeEntry, 0, len(items))
	for _, itemFlat := range items {
		item := make([]models.CdeEntry, 0, len(itemFlat))
		for key, value := range itemFlat {
			_, itemSection, cde, err := ResolveKey(registry, key)
			if err != nil {
				return err
			}
			if itemSection.Code != sectionCode {
				return &exceptions.BadKeyError{Key: key, Registry: registry.Code}
			}
			item = append(item, models.CdeEntry{Code: cde.Code, Value: models.NewValue(value)})
		}
		newItems = append(newItems, item)
	}

	record := working.FindOrCreateForm(formName).FindOrCreateSection(sectionCode, true)
	record.AllowMultiple = true
	record.Items = newItems
	record.Entries = nil
	return nil
}

// findMultisection locates a multisection by bare section code anywhere in
// the registry; first match wins.
func findMultisection(registry *models.Registry, sectionCode string) (*models.Section, *models.RegistryForm) {
	for i := range registry.Forms {
		form := &registry.Forms[i]
		if section := form.FindSection(sectionCode); section != nil && section.AllowMultiple {
			return section, form
		}
	}
	return nil, nil
}

func toItemList(raw interface{}) ([]map[string]interface{}, bool) {
	list, ok := raw.([]interface{})
	if !ok {
		if typed, ok := raw.([]map[string]interface{}); ok {
			return typed, true
		}
		return nil, false
	}
	items := make([]map[string]interface{}, len(list))
	for i, el := range list {
		item, ok := el.(map[string]interface{})
		if !ok {
			return nil, false
		}
		items[i] = item
	}
	return items, true
}

func asTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case primitive.DateTime:
		return v.Time(), true
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
