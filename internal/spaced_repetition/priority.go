package spaced_repetition

import (
	"math"
	"sort"
	"time"

	"github.com/example/lingoloop/pkg/models"
)

const (
	overdueWeight    = 10.0
	learningBonus    = 5.0
	masteredPenalty  = 2.0
	frequencyCeiling = 100.0
)

// IsDue reports whether a scheduled record has reached its review time.
func IsDue(record models.WordRecord, now time.Time) bool {
	return !record.NextReviewAt.IsZero() && !record.NextReviewAt.After(now)
}

// Priority scores how urgently a word should resurface. Higher is more urgent.
//
// Overdue days dominate; words still forming get a boost, mastered words a
// small penalty, and common words nudge ahead of rare ones at equal urgency.
// A record that was never scheduled is not overdue.
func Priority(record models.WordRecord, now time.Time) float64 {
	var overdueDays float64
	if !record.NextReviewAt.IsZero() {
		overdueDays = math.Max(0, now.Sub(record.NextReviewAt).Hours()/24)
	}

	score := overdueDays * overdueWeight
	switch record.Status {
	case models.StatusLearning:
		score += learningBonus
	case models.StatusMastered:
		score -= masteredPenalty
	}
	if record.FrequencyRank != nil {
		score += math.Max(0, frequencyCeiling-float64(*record.FrequencyRank)/100)
	}
	return score
}

// Rank returns the records ordered by descending priority.
// Equal priorities keep their input order.
func Rank(records []models.WordRecord, now time.Time) []models.WordRecord {
	type scored struct {
		record   models.WordRecord
		priority float64
	}

	items := make([]scored, len(records))
	for i, r := range records {
		items[i] = scored{record: r, priority: Priority(r, now)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].priority > items[j].priority
	})

	ranked := make([]models.WordRecord, len(items))
	for i, it := range items {
		ranked[i] = it.record
	}
	return ranked
}

// GetNextWords returns up to limit due records, most urgent first.
func GetNextWords(records []models.WordRecord, now time.Time, limit int) []models.WordRecord {
	var due []models.WordRecord
	for _, r := range records {
		if r.Status.IsEstablished() && IsDue(r, now) {
			due = append(due, r)
		}
	}

	ranked := Rank(due, now)
	if limit >= 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}
