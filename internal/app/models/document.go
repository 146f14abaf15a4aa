package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"clinreg-service/internal/pkg/constvars"
)

// ValueKind tags the shape of a stored CDE value.
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueList
	ValueMap
)

// Value is the tagged-union representation of a CDE value: a scalar, an
// ordered sequence (multi-select answers), or a keyed map (file references).
// Raw driver values are normalized through NewValue so the rest of the core
// never duck-types on dynamic shapes.
type Value struct {
	Kind   ValueKind
	Scalar interface{}
	List   []Value
	Map    map[string]Value
}

// NewValue normalizes an arbitrary decoded value into the tagged union.
func NewValue(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: ValueScalar, Scalar: nil}
	case []interface{}:
		list := make([]Value, len(v))
		for i, el := range v {
			list[i] = NewValue(el)
		}
		return Value{Kind: ValueList, List: list}
	case primitive.A:
		list := make([]Value, len(v))
		for i, el := range v {
			list[i] = NewValue(el)
		}
		return Value{Kind: ValueList, List: list}
	case map[string]interface{}:
		m := make(map[string]Value, len(v))
		for k, el := range v {
			m[k] = NewValue(el)
		}
		return Value{Kind: ValueMap, Map: m}
	case primitive.DateTime:
		return Value{Kind: ValueScalar, Scalar: v.Time()}
	case int:
		return Value{Kind: ValueScalar, Scalar: int64(v)}
	case int32:
		return Value{Kind: ValueScalar, Scalar: int64(v)}
	default:
		return Value{Kind: ValueScalar, Scalar: raw}
	}
}

// Interface converts back to the plain shape persisted in the store.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueList:
		out := make([]interface{}, len(v.List))
		for i, el := range v.List {
			out[i] = el.Interface()
		}
		return out
	case ValueMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, el := range v.Map {
			out[k] = el.Interface()
		}
		return out
	default:
		return v.Scalar
	}
}

// Equal compares two values structurally.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, el := range v.Map {
			o, ok := other.Map[k]
			if !ok || !el.Equal(o) {
				return false
			}
		}
		return true
	default:
		return v.Scalar == other.Scalar
	}
}

// CdeEntry is one {code, value} pair inside a section.
type CdeEntry struct {
	Code  string
	Value Value
}

// SectionRecord holds one section's data. A plain section carries Entries; a
// multisection carries Items, each item a full set of entries. The two shapes
// are never mixed.
type SectionRecord struct {
	Code          string
	AllowMultiple bool
	Entries       []CdeEntry
	Items         [][]CdeEntry
}

// SetEntry overwrites the entry for code, appending when absent.
func (s *SectionRecord) SetEntry(code string, value Value) {
	for i := range s.Entries {
		if s.Entries[i].Code == code {
			s.Entries[i].Value = value
			return
		}
	}
	s.Entries = append(s.Entries, CdeEntry{Code: code, Value: value})
}

// FindEntry returns the entry for code, nil when absent.
func (s *SectionRecord) FindEntry(code string) *CdeEntry {
	for i := range s.Entries {
		if s.Entries[i].Code == code {
			return &s.Entries[i]
		}
	}
	return nil
}

// FormRecord holds one form's sections.
type FormRecord struct {
	Name     string
	Sections []SectionRecord
}

// FindOrCreateSection returns the section with the given code, creating it
// with the given multiplicity when absent. Exactly one section entry exists
// per (form, code) pair.
func (f *FormRecord) FindOrCreateSection(code string, allowMultiple bool) *SectionRecord {
	for i := range f.Sections {
		if f.Sections[i].Code == code {
			return &f.Sections[i]
		}
	}
	f.Sections = append(f.Sections, SectionRecord{Code: code, AllowMultiple: allowMultiple})
	return &f.Sections[len(f.Sections)-1]
}

// FindSection returns the section with the given code, nil when absent.
func (f *FormRecord) FindSection(code string) *SectionRecord {
	for i := range f.Sections {
		if f.Sections[i].Code == code {
			return &f.Sections[i]
		}
	}
	return nil
}

// ClinicalDocument is the nested record holding one owner's form/section/CDE
// values for one registry and one clinical context.
type ClinicalDocument struct {
	Owner          OwnerRef
	ContextID      int64
	Timestamp      time.Time
	FormTimestamps map[string]time.Time
	Extra          map[string]interface{}
	Forms          []FormRecord
}

// NewClinicalDocument returns the empty skeleton for an owner and context.
func NewClinicalDocument(owner OwnerRef, contextID int64) *ClinicalDocument {
	return &ClinicalDocument{
		Owner:          owner,
		ContextID:      contextID,
		FormTimestamps: map[string]time.Time{},
		Extra:          map[string]interface{}{},
	}
}

// FindOrCreateForm returns the form with the given name, creating it when
// absent. On a duplicate name the first match wins.
func (d *ClinicalDocument) FindOrCreateForm(name string) *FormRecord {
	for i := range d.Forms {
		if d.Forms[i].Name == name {
			return &d.Forms[i]
		}
	}
	d.Forms = append(d.Forms, FormRecord{Name: name})
	return &d.Forms[len(d.Forms)-1]
}

// FindForm returns the form with the given name, nil when absent.
func (d *ClinicalDocument) FindForm(name string) *FormRecord {
	for i := range d.Forms {
		if d.Forms[i].Name == name {
			return &d.Forms[i]
		}
	}
	return nil
}

// GetCdeValue walks form → section → cde. For a multisection it collects one
// value per item into a sequence. The second return reports whether the path
// resolved to a stored entry.
func (d *ClinicalDocument) GetCdeValue(formName, sectionCode, cdeCode string) (Value, bool) {
	form := d.FindForm(formName)
	if form == nil {
		return Value{}, false
	}
	section := form.FindSection(sectionCode)
	if section == nil {
		return Value{}, false
	}
	if section.AllowMultiple {
		values := make([]Value, 0, len(section.Items))
		found := false
		for _, item := range section.Items {
			for _, entry := range item {
				if entry.Code == cdeCode {
					values = append(values, entry.Value)
					found = true
					break
				}
			}
		}
		return Value{Kind: ValueList, List: values}, found
	}
	entry := section.FindEntry(cdeCode)
	if entry == nil {
		return Value{}, false
	}
	return entry.Value, true
}

// SetCdeValue performs the merge-by-code-or-append update for a plain
// section. Multisection items must go through the codec's replace path.
func (d *ClinicalDocument) SetCdeValue(formName, sectionCode, cdeCode string, value Value) {
	form := d.FindOrCreateForm(formName)
	section := form.FindOrCreateSection(sectionCode, false)
	section.SetEntry(cdeCode, value)
}

// Clone deep-copies the document; snapshots must not alias live state.
func (d *ClinicalDocument) Clone() *ClinicalDocument {
	return mustParse(d.ToMap())
}

func mustParse(m map[string]interface{}) *ClinicalDocument {
	doc, err := ParseClinicalDocument(m)
	if err != nil {
		// ToMap output always parses; a failure here is a programming error.
		panic(err)
	}
	return doc
}

// ToMap serializes to the durable on-disk shape. Field names are part of the
// storage contract and must not change.
func (d *ClinicalDocument) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		constvars.DocumentFieldDjangoID:    d.Owner.ID,
		constvars.DocumentFieldDjangoModel: string(d.Owner.Kind),
		constvars.DocumentFieldContextID:   d.ContextID,
	}
	if !d.Timestamp.IsZero() {
		out[constvars.DocumentFieldTimestamp] = d.Timestamp
	}
	for form, ts := range d.FormTimestamps {
		out[form+constvars.FormTimestampSuffix] = ts
	}
	for k, v := range d.Extra {
		out[k] = v
	}

	forms := make([]interface{}, len(d.Forms))
	for i, form := range d.Forms {
		sections := make([]interface{}, len(form.Sections))
		for j, section := range form.Sections {
			var cdes interface{}
			if section.AllowMultiple {
				items := make([]interface{}, len(section.Items))
				for k, item := range section.Items {
					items[k] = entriesToList(item)
				}
				cdes = items
			} else {
				cdes = entriesToList(section.Entries)
			}
			sections[j] = map[string]interface{}{
				constvars.DocumentFieldCode:          section.Code,
				constvars.DocumentFieldAllowMultiple: section.AllowMultiple,
				constvars.DocumentFieldCDEs:          cdes,
			}
		}
		forms[i] = map[string]interface{}{
			constvars.DocumentFieldName:     form.Name,
			constvars.DocumentFieldSections: sections,
		}
	}
	out[constvars.DocumentFieldForms] = forms
	return out
}

func entriesToList(entries []CdeEntry) []interface{} {
	out := make([]interface{}, len(entries))
	for i, entry := range entries {
		out[i] = map[string]interface{}{
			constvars.DocumentFieldCode:  entry.Code,
			constvars.DocumentFieldValue: entry.Value.Interface(),
		}
	}
	return out
}

// ParseClinicalDocument deserializes a raw stored document.
func ParseClinicalDocument(raw map[string]interface{}) (*ClinicalDocument, error) {
	doc := &ClinicalDocument{
		FormTimestamps: map[string]time.Time{},
		Extra:          map[string]interface{}{},
	}

	for key, value := range raw {
		switch key {
		case "_id":
			// Store-assigned identity; not part of the document model.
		case constvars.DocumentFieldDjangoID:
			doc.Owner.ID = toInt64(value)
		case constvars.DocumentFieldDjangoModel:
			if s, ok := value.(string); ok {
				doc.Owner.Kind = OwnerKind(s)
			}
		case constvars.DocumentFieldContextID:
			doc.ContextID = toInt64(value)
		case constvars.DocumentFieldTimestamp:
			if ts, ok := toTime(value); ok {
				doc.Timestamp = ts
			}
		case constvars.DocumentFieldForms:
			forms, err := parseForms(value)
			if err != nil {
				return nil, err
			}
			doc.Forms = forms
		default:
			if strings.HasSuffix(key, constvars.FormTimestampSuffix) {
				if ts, ok := toTime(value); ok {
					formName := strings.TrimSuffix(key, constvars.FormTimestampSuffix)
					doc.FormTimestamps[formName] = ts
					continue
				}
			}
			doc.Extra[key] = value
		}
	}
	return doc, nil
}

func parseForms(raw interface{}) ([]FormRecord, error) {
	formList, ok := toList(raw)
	if !ok {
		return nil, &parseShapeError{field: constvars.DocumentFieldForms}
	}
	forms := make([]FormRecord, 0, len(formList))
	for _, rawForm := range formList {
		formMap, ok := toMap(rawForm)
		if !ok {
			return nil, &parseShapeError{field: constvars.DocumentFieldForms}
		}
		form := FormRecord{}
		if name, ok := formMap[constvars.DocumentFieldName].(string); ok {
			form.Name = name
		}
		sectionList, _ := toList(formMap[constvars.DocumentFieldSections])
		for _, rawSection := range sectionList {
			sectionMap, ok := toMap(rawSection)
			if !ok {
				return nil, &parseShapeError{field: constvars.DocumentFieldSections}
			}
			section := SectionRecord{}
			if code, ok := sectionMap[constvars.DocumentFieldCode].(string); ok {
				section.Code = code
			}
			if multiple, ok := sectionMap[constvars.DocumentFieldAllowMultiple].(bool); ok {
				section.AllowMultiple = multiple
			}
			cdeList, _ := toList(sectionMap[constvars.DocumentFieldCDEs])
			if section.AllowMultiple {
				for _, rawItem := range cdeList {
					itemList, ok := toList(rawItem)
					if !ok {
						return nil, &parseShapeError{field: constvars.DocumentFieldCDEs}
					}
					item, err := parseEntries(itemList)
					if err != nil {
						return nil, err
					}
					section.Items = append(section.Items, item)
				}
			} else {
				entries, err := parseEntries(cdeList)
				if err != nil {
					return nil, err
				}
				section.Entries = entries
			}
			form.Sections = append(form.Sections, section)
		}
		forms = append(forms, form)
	}
	return forms, nil
}

func parseEntries(rawEntries []interface{}) ([]CdeEntry, error) {
	entries := make([]CdeEntry, 0, len(rawEntries))
	for _, rawEntry := range rawEntries {
		entryMap, ok := toMap(rawEntry)
		if !ok {
			return nil, &parseShapeError{field: constvars.DocumentFieldCDEs}
		}
		entry := CdeEntry{}
		if code, ok := entryMap[constvars.DocumentFieldCode].(string); ok {
			entry.Code = code
		}
		entry.Value = NewValue(entryMap[constvars.DocumentFieldValue])
		entries = append(entries, entry)
	}
	return entries, nil
}

type parseShapeError struct {
	field string
}

func (e *parseShapeError) Error() string {
	return "malformed clinical document: unexpected shape under " + e.field
}

func toList(raw interface{}) ([]interface{}, bool) {
	switch v := raw.(type) {
	case []interface{}:
		return v, true
	case primitive.A:
		return []interface{}(v), true
	}
	return nil, false
}

func toMap(raw interface{}) (map[string]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, true
	case primitive.M:
		return map[string]interface{}(v), true
	}
	return nil, false
}

func toInt64(raw interface{}) int64 {
	switch v := raw.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func toTime(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case primitive.DateTime:
		return v.Time(), true
	}
	return time.Time{}, false
}
