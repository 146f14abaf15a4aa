package models

import (
	"io"
	"time"
)

// FileReference is the small dict stored in place of raw file bytes for a
// file-valued CDE: the storage key plus the original filename.
type FileReference struct {
	ReferenceID string `bson:"reference_id" json:"reference_id"`
	Filename    string `bson:"filename" json:"filename"`
}

// ToMap serializes a reference into the stored CDE value shape.
func (r FileReference) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"reference_id": r.ReferenceID,
		"filename":     r.Filename,
	}
}

// ParseFileReference recovers a reference from a stored CDE value; ok is
// false when the value is not a reference dict.
func ParseFileReference(value Value) (FileReference, bool) {
	if value.Kind != ValueMap {
		return FileReference{}, false
	}
	ref := FileReference{}
	if id, ok := value.Map["reference_id"]; ok {
		ref.ReferenceID, _ = id.Scalar.(string)
	}
	if name, ok := value.Map["filename"]; ok {
		ref.Filename, _ = name.Scalar.(string)
	}
	if ref.ReferenceID == "" {
		return FileReference{}, false
	}
	return ref, true
}

// FileUpload is the sentinel carried in submitted form data for a freshly
// uploaded file. The dynamic-data wrapper resolves it to a FileReference
// before nesting; it is never persisted as-is.
type FileUpload struct {
	Filename string
	Content  io.Reader
	Size     int64
}

// HistoryEntry is one collapsed CDE history row: the first snapshot of each
// run of identical values.
type HistoryEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Value     interface{} `json:"value"`
}
