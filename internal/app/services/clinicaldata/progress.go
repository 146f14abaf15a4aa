package clinicaldata

import (
	"context"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
)

// FormProgressSuffix keys one form's progress block inside the progress
// document.
const FormProgressSuffix = "_form_progress"

// updateFormProgress recomputes the completion percentage for one form from
// its declared completion CDEs and upserts it into the progress collection.
// Progress documents share the owner/context key tuple with the live data.
func (s *dynamicDataSession) updateFormProgress(ctx context.Context, registry *models.Registry, formName string, document *models.ClinicalDocument) error {
	form := registry.FindForm(formName)
	if form == nil || len(form.CompletionCdeCodes) == 0 {
		return nil
	}

	percentage, filled := computeFormProgress(form, document)

	progress, err := s.service.ClinicalRepository.FindOne(ctx, registry.Code, constvars.CollectionProgress, s.owner, document.ContextID)
	if err != nil {
		return err
	}
	if progress == nil {
		progress = map[string]interface{}{
			constvars.DocumentFieldDjangoID:    s.owner.ID,
			constvars.DocumentFieldDjangoModel: string(s.owner.Kind),
			constvars.DocumentFieldContextID:   document.ContextID,
		}
	}
	progress[formName+FormProgressSuffix] = map[string]interface{}{
		"percentage": percentage,
		"filled":     filled,
		"required":   len(form.CompletionCdeCodes),
	}
	return s.service.ClinicalRepository.Upsert(ctx, registry.Code, constvars.CollectionProgress, s.owner, document.ContextID, progress)
}

// computeFormProgress counts how many of the form's completion CDEs hold a
// non-empty value anywhere in the form's sections.
func computeFormProgress(form *models.RegistryForm, document *models.ClinicalDocument) (float64, int) {
	total := len(form.CompletionCdeCodes)
	if total == 0 {
		return 0, 0
	}
	filled := 0
	for _, code := range form.CompletionCdeCodes {
		if hasFilledValue(form, document, code) {
			filled++
		}
	}
	return float64(filled) / float64(total) * 100, filled
}

func hasFilledValue(form *models.RegistryForm, document *models.ClinicalDocument, cdeCode string) bool {
	for i := range form.SectionModels {
		section := &form.SectionModels[i]
		if section.FindCde(cdeCode) == nil {
			continue
		}
		value, found := document.GetCdeValue(form.Name, section.Code, cdeCode)
		if found && !isEmptyValue(value) {
			return true
		}
	}
	return false
}

func isEmptyValue(value models.Value) bool {
	switch value.Kind {
	case models.ValueList:
		for _, el := range value.List {
			if !isEmptyValue(el) {
				return false
			}
		}
		return true
	case models.ValueMap:
		return len(value.Map) == 0
	default:
		return value.Scalar == nil || value.Scalar == ""
	}
}
