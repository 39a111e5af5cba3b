package models

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when generation parameters break their contract.
var ErrInvalidParams = errors.New("models: invalid generation params")

// ProficiencyLevel is a CEFR level.
type ProficiencyLevel string

const (
	LevelA1 ProficiencyLevel = "A1"
	LevelA2 ProficiencyLevel = "A2"
	LevelB1 ProficiencyLevel = "B1"
	LevelB2 ProficiencyLevel = "B2"
	LevelC1 ProficiencyLevel = "C1"
	LevelC2 ProficiencyLevel = "C2"
)

// IsValid reports whether l is a known CEFR level.
func (l ProficiencyLevel) IsValid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return true
	}
	return false
}

// GenerationParams is the caller's request for one piece of generated content.
type GenerationParams struct {
	TargetWordCount  int              `json:"target_word_count"`
	NewWordFraction  float64          `json:"new_word_fraction"`
	PrioritizeReview bool             `json:"prioritize_review"`
	Level            ProficiencyLevel `json:"level"`
	Topic            string           `json:"topic,omitempty"`
}

// Validate checks the request contract. An empty level is allowed.
func (p GenerationParams) Validate() error {
	if p.TargetWordCount < 0 {
		return fmt.Errorf("%w: negative target word count %d", ErrInvalidParams, p.TargetWordCount)
	}
	if p.NewWordFraction < 0 || p.NewWordFraction > 1 {
		return fmt.Errorf("%w: new word fraction %v out of range [0, 1]", ErrInvalidParams, p.NewWordFraction)
	}
	if p.Level != "" && !p.Level.IsValid() {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidParams, p.Level)
	}
	return nil
}

// SelectionPolicy names the branch the selection engine took.
type SelectionPolicy string

const (
	PolicyColdStart     SelectionPolicy = "cold_start"
	PolicyNearColdStart SelectionPolicy = "near_cold_start"
	PolicySteadyState   SelectionPolicy = "steady_state"
)

// WordSelection is the vocabulary budget for one generation request.
// The three lists are disjoint and AllWords is their concatenation.
type WordSelection struct {
	KnownWords  []string        `json:"known_words"`
	ReviewWords []string        `json:"review_words"`
	NewWords    []string        `json:"new_words"`
	AllWords    []string        `json:"all_words"`
	Policy      SelectionPolicy `json:"policy"`
}

// ValidationResult reports how a generated text measures up to its selection.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	WordCount int      `json:"word_count"`
}
