package models

import "time"

// ConsentAnswer records one owner's answer to a consent question. The consent
// store is keyed by (owner, section code, question code).
type ConsentAnswer struct {
	Owner        OwnerRef  `bson:"owner" json:"owner"`
	RegistryCode string    `bson:"registry_code" json:"registry_code"`
	SectionCode  string    `bson:"section_code" json:"section_code"`
	QuestionCode string    `bson:"question_code" json:"question_code"`
	Answer       bool      `bson:"answer" json:"answer"`
	FirstSave    time.Time `bson:"first_save" json:"first_save"`
	LastUpdate   time.Time `bson:"last_update" json:"last_update"`
}

// Consent expression field segments.
const (
	ConsentFieldAnswer     = "answer"
	ConsentFieldLastUpdate = "last_update"
	ConsentFieldFirstSave  = "first_save"
)
