package models

// ReferenceWord is one entry of a language's frequency-ordered vocabulary list.
type ReferenceWord struct {
	Language      string  `json:"language" db:"language"`
	Lemma         string  `json:"lemma" db:"lemma"`
	FrequencyRank int     `json:"frequency_rank" db:"frequency_rank"` // lower is more common
	PartOfSpeech  *string `json:"part_of_speech,omitempty" db:"part_of_speech"`
}
