package models

import "time"

const (
	// DefaultEasinessFactor is the easiness assigned to a word before its first rating.
	DefaultEasinessFactor = 2.5
	// MinEasinessFactor and MaxEasinessFactor bound every stored easiness value.
	MinEasinessFactor = 1.3
	MaxEasinessFactor = 2.5
)

// WordRecord tracks one learner's knowledge of one lemma in one language.
type WordRecord struct {
	ID             int64      `json:"id" db:"id"`
	LearnerID      string     `json:"learner_id" db:"learner_id"`
	Language       string     `json:"language" db:"language"`
	Lemma          string     `json:"lemma" db:"lemma"`
	SurfaceForm    string     `json:"surface_form" db:"surface_form"`
	EasinessFactor float64    `json:"easiness_factor" db:"easiness_factor"`
	Repetitions    int        `json:"repetitions" db:"repetitions"`
	IntervalDays   float64    `json:"interval_days" db:"interval_days"` // fractional days, two decimals
	NextReviewAt   time.Time  `json:"next_review_at" db:"next_review_at"`
	Status         Status     `json:"status" db:"status"`
	TimesSeen      int        `json:"times_seen" db:"times_seen"`
	TimesRated     int        `json:"times_rated" db:"times_rated"`
	FrequencyRank  *int       `json:"frequency_rank,omitempty" db:"frequency_rank"`
	PartOfSpeech   *string    `json:"part_of_speech,omitempty" db:"part_of_speech"`
	FirstSeenAt    time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt     time.Time  `json:"last_seen_at" db:"last_seen_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty" db:"last_reviewed_at"`
}

// NewWordRecord creates an unrated record for a lemma the learner just met.
func NewWordRecord(learnerID, language, lemma, surfaceForm string, now time.Time) WordRecord {
	return WordRecord{
		LearnerID:      learnerID,
		Language:       language,
		Lemma:          lemma,
		SurfaceForm:    surfaceForm,
		EasinessFactor: DefaultEasinessFactor,
		Status:         StatusNew,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}
}
