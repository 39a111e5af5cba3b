package selection

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingoloop/internal/spaced_repetition"
	"github.com/example/lingoloop/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newEngine() *Engine {
	return NewEngine(rand.NewSource(42))
}

func reference(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("ref%03d", i)
	}
	return out
}

// vocabulary builds known words; the first due of them are overdue by a growing amount.
func vocabulary(known, due int) []models.WordRecord {
	records := make([]models.WordRecord, 0, known)
	for i := 0; i < known; i++ {
		r := models.NewWordRecord("learner-1", "es", fmt.Sprintf("word%03d", i), "", t0)
		r.Status = models.StatusKnown
		r.Repetitions = 3
		r.NextReviewAt = t0.Add(72 * time.Hour)
		if i < due {
			r.NextReviewAt = t0.Add(-time.Duration(i+1) * time.Hour)
		}
		records = append(records, r)
	}
	return records
}

func assertPartition(t *testing.T, sel models.WordSelection) {
	t.Helper()
	seen := make(map[string]string)
	for name, list := range map[string][]string{"known": sel.KnownWords, "review": sel.ReviewWords, "new": sel.NewWords} {
		for _, w := range list {
			prev, dup := seen[w]
			assert.False(t, dup, "%q appears in %s and %s", w, prev, name)
			seen[w] = name
		}
	}
	assert.Len(t, sel.AllWords, len(sel.KnownWords)+len(sel.ReviewWords)+len(sel.NewWords))
	unique := make(map[string]struct{}, len(sel.AllWords))
	for _, w := range sel.AllWords {
		unique[w] = struct{}{}
	}
	assert.Len(t, unique, len(sel.AllWords), "AllWords has duplicates")
}

func TestSelectColdStart(t *testing.T) {
	params := models.GenerationParams{TargetWordCount: 100, NewWordFraction: 0.05, PrioritizeReview: true}
	sel, err := newEngine().Select(nil, params, reference(50), t0)
	require.NoError(t, err)

	assert.Equal(t, models.PolicyColdStart, sel.Policy)
	assert.Equal(t, []string{"ref000", "ref001", "ref002", "ref003", "ref004"}, sel.NewWords)
	assert.Empty(t, sel.KnownWords)
	assert.Empty(t, sel.ReviewWords)
	assertPartition(t, sel)
}

func TestSelectColdStartSkipsUnratedRecords(t *testing.T) {
	records := []models.WordRecord{
		models.NewWordRecord("learner-1", "es", "ref000", "", t0),
		models.NewWordRecord("learner-1", "es", "ref002", "", t0),
	}
	sel, err := newEngine().Select(records, models.GenerationParams{TargetWordCount: 3}, reference(10), t0)
	require.NoError(t, err)

	assert.Equal(t, models.PolicyColdStart, sel.Policy)
	assert.Equal(t, []string{"ref001", "ref003", "ref004", "ref005", "ref006"}, sel.NewWords)
}

func TestSelectColdStartShortReference(t *testing.T) {
	sel, err := newEngine().Select(nil, models.GenerationParams{TargetWordCount: 10}, reference(3), t0)
	require.NoError(t, err)
	assert.Len(t, sel.NewWords, 3)
}

func TestSelectColdStartEmptyReference(t *testing.T) {
	_, err := newEngine().Select(nil, models.GenerationParams{TargetWordCount: 10}, nil, t0)
	assert.ErrorIs(t, err, ErrEmptyReference)
}

func TestSelectNearColdStart(t *testing.T) {
	records := vocabulary(5, 2)
	params := models.GenerationParams{TargetWordCount: 20, NewWordFraction: 0.1, PrioritizeReview: true}

	sel, err := newEngine().Select(records, params, reference(100), t0)
	require.NoError(t, err)

	assert.Equal(t, models.PolicyNearColdStart, sel.Policy)
	assert.Len(t, sel.NewWords, 20)
	assert.Empty(t, sel.KnownWords)
	assert.Empty(t, sel.ReviewWords)
	assertPartition(t, sel)
}

func TestSelectNearColdStartLimitedByReference(t *testing.T) {
	records := vocabulary(9, 0)
	records = append(records, models.NewWordRecord("learner-1", "es", "ref001", "", t0))

	sel, err := newEngine().Select(records, models.GenerationParams{TargetWordCount: 50}, reference(8), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ref000", "ref002", "ref003", "ref004", "ref005", "ref006", "ref007"}, sel.NewWords)
}

func TestSelectSteadyState(t *testing.T) {
	records := vocabulary(200, 10)
	params := models.GenerationParams{TargetWordCount: 100, NewWordFraction: 0.05, PrioritizeReview: true}

	sel, err := newEngine().Select(records, params, reference(500), t0)
	require.NoError(t, err)

	assert.Equal(t, models.PolicySteadyState, sel.Policy)
	assert.Len(t, sel.NewWords, 5)
	assert.Len(t, sel.ReviewWords, 10)
	assert.Len(t, sel.KnownWords, 85)
	assert.Equal(t, []string{"ref000", "ref001", "ref002", "ref003", "ref004"}, sel.NewWords)
	assertPartition(t, sel)
}

func TestSelectReviewWordsFollowPriority(t *testing.T) {
	records := vocabulary(50, 50)
	params := models.GenerationParams{TargetWordCount: 20, PrioritizeReview: true}

	sel, err := newEngine().Select(records, params, reference(10), t0)
	require.NoError(t, err)

	ranked := spaced_repetition.Rank(records, t0)
	var want []string
	for _, r := range ranked[:8] {
		want = append(want, r.Lemma)
	}
	assert.Equal(t, want, sel.ReviewWords)
	assert.Len(t, sel.KnownWords, 12)
	assert.Empty(t, sel.NewWords)
}

func TestSelectWithoutReviewPriority(t *testing.T) {
	records := vocabulary(40, 20)
	params := models.GenerationParams{TargetWordCount: 30, NewWordFraction: 0.1}

	sel, err := newEngine().Select(records, params, reference(10), t0)
	require.NoError(t, err)

	assert.Empty(t, sel.ReviewWords)
	assert.Len(t, sel.KnownWords, 27)
	assert.Len(t, sel.NewWords, 3)
}

func TestSelectShortfallBecomesNewWords(t *testing.T) {
	records := vocabulary(12, 0)
	params := models.GenerationParams{TargetWordCount: 100, NewWordFraction: 0.1, PrioritizeReview: true}

	sel, err := newEngine().Select(records, params, reference(200), t0)
	require.NoError(t, err)

	assert.Len(t, sel.KnownWords, 12)
	assert.Len(t, sel.NewWords, 88)
	assert.Len(t, sel.AllWords, 100)
}

func TestSelectSteadyStateEmptyReference(t *testing.T) {
	records := vocabulary(30, 0)

	_, err := newEngine().Select(records, models.GenerationParams{TargetWordCount: 20, NewWordFraction: 0.2}, nil, t0)
	assert.ErrorIs(t, err, ErrEmptyReference)

	sel, err := newEngine().Select(records, models.GenerationParams{TargetWordCount: 20}, nil, t0)
	require.NoError(t, err)
	assert.Len(t, sel.KnownWords, 20)
}

func TestSelectSkipsDuplicateReferenceEntries(t *testing.T) {
	ref := []string{"el", "el", "la", "de", "la", "que", "y"}
	sel, err := newEngine().Select(nil, models.GenerationParams{TargetWordCount: 5}, ref, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"el", "la", "de", "que", "y"}, sel.NewWords)
}

func TestSelectRejectsInvalidParams(t *testing.T) {
	_, err := newEngine().Select(nil, models.GenerationParams{TargetWordCount: -3}, reference(10), t0)
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	_, err = newEngine().Select(nil, models.GenerationParams{TargetWordCount: 10, NewWordFraction: 2}, reference(10), t0)
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestSelectIsReproducibleWithFixedSeed(t *testing.T) {
	records := vocabulary(120, 15)
	params := models.GenerationParams{TargetWordCount: 60, NewWordFraction: 0.05, PrioritizeReview: true}

	a, err := NewEngine(rand.NewSource(7)).Select(records, params, reference(100), t0)
	require.NoError(t, err)
	b, err := NewEngine(rand.NewSource(7)).Select(records, params, reference(100), t0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSelectPartitionProperty(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		known := rng.Intn(150)
		records := vocabulary(known, rng.Intn(known+1))
		params := models.GenerationParams{
			TargetWordCount:  rng.Intn(120),
			NewWordFraction:  rng.Float64(),
			PrioritizeReview: rng.Intn(2) == 0,
		}

		sel, err := NewEngine(rand.NewSource(seed)).Select(records, params, reference(300), t0)
		require.NoError(t, err, "seed %d", seed)
		assertPartition(t, sel)
	}
}
