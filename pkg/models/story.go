package models

import "time"

// Story is a generated comprehension text together with the vocabulary it was built from.
type Story struct {
	ID               string           `json:"id" db:"id"`
	LearnerID        string           `json:"learner_id" db:"learner_id"`
	Language         string           `json:"language" db:"language"`
	Level            ProficiencyLevel `json:"level" db:"level"`
	Topic            string           `json:"topic" db:"topic"`
	Text             string           `json:"text" db:"text"`
	Selection        WordSelection    `json:"selection" db:"-"`
	TargetWordCount  int              `json:"target_word_count" db:"target_word_count"`
	Valid            bool             `json:"valid" db:"valid"`
	ValidationErrors []string         `json:"validation_errors" db:"-"`
	Attempts         int              `json:"attempts" db:"attempts"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}
