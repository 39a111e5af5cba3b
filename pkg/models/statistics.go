package models

// VocabularyStats summarizes a learner's word records in one language.
type VocabularyStats struct {
	Total           int     `json:"total" db:"total"`
	New             int     `json:"new" db:"new_count"`
	Learning        int     `json:"learning" db:"learning_count"`
	Known           int     `json:"known" db:"known_count"`
	Mastered        int     `json:"mastered" db:"mastered_count"`
	Due             int     `json:"due" db:"due_count"`
	AverageEasiness float64 `json:"average_easiness" db:"average_easiness"`
}
