package spaced_repetition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/lingoloop/pkg/models"
)

func rank(n int) *int { return &n }

func record(lemma string, status models.Status, next time.Time) models.WordRecord {
	r := models.NewWordRecord("learner-1", "es", lemma, lemma, t0)
	r.Status = status
	r.NextReviewAt = next
	return r
}

func TestPriority(t *testing.T) {
	overdue := record("perro", models.StatusLearning, t0.Add(-48*time.Hour))
	overdue.FrequencyRank = rank(500)
	assert.InDelta(t, 20+5+95, Priority(overdue, t0), 1e-9)

	mastered := record("gato", models.StatusMastered, t0.Add(72*time.Hour))
	assert.InDelta(t, -2, Priority(mastered, t0), 1e-9)

	rare := record("ornitorrinco", models.StatusKnown, t0)
	rare.FrequencyRank = rank(25000)
	assert.InDelta(t, 0, Priority(rare, t0), 1e-9)

	unscheduled := record("mesa", models.StatusKnown, time.Time{})
	assert.InDelta(t, 0, Priority(unscheduled, t0), 1e-9)
}

func TestRankOrdersByPriority(t *testing.T) {
	records := []models.WordRecord{
		record("a", models.StatusKnown, t0.Add(24*time.Hour)),
		record("b", models.StatusKnown, t0.Add(-72*time.Hour)),
		record("c", models.StatusLearning, t0.Add(24*time.Hour)),
		record("d", models.StatusMastered, t0.Add(-24*time.Hour)),
	}

	ranked := Rank(records, t0)
	var lemmas []string
	for _, r := range ranked {
		lemmas = append(lemmas, r.Lemma)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, lemmas)
}

func TestRankIsStableAndDeterministic(t *testing.T) {
	var records []models.WordRecord
	for _, l := range []string{"uno", "dos", "tres", "cuatro", "cinco"} {
		records = append(records, record(l, models.StatusKnown, t0.Add(time.Hour)))
	}

	first := Rank(records, t0)
	second := Rank(records, t0)
	assert.Equal(t, first, second)
	assert.Equal(t, records, first)
}

func TestGetNextWords(t *testing.T) {
	records := []models.WordRecord{
		record("nuevo", models.StatusNew, time.Time{}),
		record("later", models.StatusKnown, t0.Add(time.Hour)),
		record("due1", models.StatusKnown, t0.Add(-time.Hour)),
		record("due2", models.StatusLearning, t0),
		record("due3", models.StatusKnown, t0.Add(-96*time.Hour)),
	}

	got := GetNextWords(records, t0, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "due3", got[0].Lemma)
	assert.Equal(t, "due2", got[1].Lemma)

	assert.Len(t, GetNextWords(records, t0, 10), 3)
}

func TestIsDue(t *testing.T) {
	assert.True(t, IsDue(record("a", models.StatusKnown, t0), t0))
	assert.False(t, IsDue(record("a", models.StatusKnown, t0.Add(time.Second)), t0))
	assert.False(t, IsDue(record("a", models.StatusNew, time.Time{}), t0))
}
