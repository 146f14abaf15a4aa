package models

import (
	"strings"
)

// RegistryType classifies how a registry scopes longitudinal data.
type RegistryType int

const (
	RegistryTypeNormal RegistryType = iota
	RegistryTypeHasContexts
	RegistryTypeHasContextGroups
)

// Registry is a disease-registry definition: an ordered list of forms plus a
// metadata blob carrying feature flags ("contexts", "family_linkage", ...).
type Registry struct {
	Code              string                 `bson:"code" json:"code"`
	Name              string                 `bson:"name" json:"name"`
	Metadata          map[string]interface{} `bson:"metadata" json:"metadata"`
	Forms             []RegistryForm         `bson:"forms" json:"forms"`
	ContextFormGroups []ContextFormGroup     `bson:"context_form_groups" json:"context_form_groups"`
}

// ContextFormGroup names a set of forms repeated together per context.
type ContextFormGroup struct {
	ID            int64    `bson:"_id" json:"id"`
	Name          string   `bson:"name" json:"name"`
	FormNames     []string `bson:"form_names" json:"form_names"`
	SupportsAdd   bool     `bson:"supports_add" json:"supports_add"`
	ContextPrefix string   `bson:"context_prefix" json:"context_prefix"`
}

func (r *Registry) HasFeature(feature string) bool {
	if r.Metadata == nil {
		return false
	}
	features, ok := r.Metadata["features"].([]interface{})
	if !ok {
		return false
	}
	for _, f := range features {
		if s, ok := f.(string); ok && s == feature {
			return true
		}
	}
	return false
}

// Type derives the registry classification from context form groups and the
// "contexts" feature flag.
func (r *Registry) Type() RegistryType {
	if len(r.ContextFormGroups) > 0 {
		return RegistryTypeHasContextGroups
	}
	if r.HasFeature("contexts") {
		return RegistryTypeHasContexts
	}
	return RegistryTypeNormal
}

// FindForm returns the first form with the given name, nil when absent. The
// first-match rule is a defensive fallback; form names are unique per
// registry.
func (r *Registry) FindForm(name string) *RegistryForm {
	for i := range r.Forms {
		if r.Forms[i].Name == name {
			return &r.Forms[i]
		}
	}
	return nil
}

// RegistryForm belongs to one registry and references its sections by an
// ordered, comma-separated code list.
type RegistryForm struct {
	Name               string    `bson:"name" json:"name"`
	SectionCodes       string    `bson:"sections" json:"sections"`
	IsQuestionnaire    bool      `bson:"is_questionnaire" json:"is_questionnaire"`
	CompletionCdeCodes []string  `bson:"complete_form_cdes" json:"complete_form_cdes"`
	SectionModels      []Section `bson:"section_models" json:"section_models"`
}

// SectionCodeList splits the comma-separated code list, trimming whitespace.
func (f *RegistryForm) SectionCodeList() []string {
	return splitCodes(f.SectionCodes)
}

// FindSection returns the first section with the given code, nil when absent.
func (f *RegistryForm) FindSection(code string) *Section {
	for i := range f.SectionModels {
		if f.SectionModels[i].Code == code {
			return &f.SectionModels[i]
		}
	}
	return nil
}

// Section is a named group of CDE codes; AllowMultiple marks a multisection
// whose stored value is a list of repeated items.
type Section struct {
	Code          string              `bson:"code" json:"code"`
	DisplayName   string              `bson:"display_name" json:"display_name"`
	ElementCodes  string              `bson:"elements" json:"elements"`
	AllowMultiple bool                `bson:"allow_multiple" json:"allow_multiple"`
	CdeModels     []CommonDataElement `bson:"cde_models" json:"cde_models"`
}

// ElementCodeList splits the comma-separated CDE code list.
func (s *Section) ElementCodeList() []string {
	return splitCodes(s.ElementCodes)
}

// FindCde returns the first CDE with the given code, nil when absent.
func (s *Section) FindCde(code string) *CommonDataElement {
	for i := range s.CdeModels {
		if s.CdeModels[i].Code == code {
			return &s.CdeModels[i]
		}
	}
	return nil
}

// ValidateCode rejects section codes the form codec cannot address.
func (s *Section) ValidateCode() bool {
	return !strings.ContainsAny(s.Code, " &")
}

func splitCodes(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			codes = append(codes, trimmed)
		}
	}
	return codes
}
