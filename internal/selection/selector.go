// Package selection builds the vocabulary budget for generated reading material.
package selection

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/example/lingoloop/internal/spaced_repetition"
	"github.com/example/lingoloop/pkg/models"
)

// ErrEmptyReference is returned when new words are needed but no reference vocabulary was given.
var ErrEmptyReference = errors.New("selection: reference vocabulary is empty")

const (
	// ColdStartWordCount is the fixed budget for learners with no rated words.
	ColdStartWordCount = 5
	// NearColdStartThreshold is the number of rated words below which no known words are used.
	NearColdStartThreshold = 10
	// ReviewShare is the largest fraction of the known budget given to due words.
	ReviewShare = 0.4
)

// floorEpsilon absorbs float noise such as 100*0.29 = 28.999999999999996.
const floorEpsilon = 1e-9

// Engine selects known, review and new words for one generation request.
// Review words are chosen deterministically by priority; known filler words are
// sampled from the injected random source.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an engine drawing filler words from src.
func NewEngine(src rand.Source) *Engine {
	return &Engine{rng: rand.New(src)}
}

// Select partitions params.TargetWordCount into known, review and new lemmas.
//
// records is the learner's current vocabulary; reference is the language's
// frequency-ordered lemma list. Fewer words than requested are returned when
// the reference list runs out.
func (e *Engine) Select(records []models.WordRecord, params models.GenerationParams, reference []string, now time.Time) (models.WordSelection, error) {
	if err := params.Validate(); err != nil {
		return models.WordSelection{}, err
	}

	present := make(map[string]struct{}, len(records))
	var established []models.WordRecord
	for _, r := range records {
		present[r.Lemma] = struct{}{}
		if r.Status.IsEstablished() {
			established = append(established, r)
		}
	}

	switch {
	case len(established) == 0:
		// Absolute beginners get one short sentence, whatever was asked for.
		return newOnly(models.PolicyColdStart, reference, present, ColdStartWordCount)
	case len(established) < NearColdStartThreshold:
		// Too small a base to draw known content from.
		return newOnly(models.PolicyNearColdStart, reference, present, params.TargetWordCount)
	default:
		return e.steadyState(established, params, reference, present, now)
	}
}

func (e *Engine) steadyState(established []models.WordRecord, params models.GenerationParams, reference []string, present map[string]struct{}, now time.Time) (models.WordSelection, error) {
	newCount := floor(float64(params.TargetWordCount) * params.NewWordFraction)
	knownCount := params.TargetWordCount - newCount

	var reviewWords []string
	chosen := make(map[string]struct{})
	if params.PrioritizeReview {
		var due []models.WordRecord
		for _, r := range established {
			if spaced_repetition.IsDue(r, now) {
				due = append(due, r)
			}
		}
		slots := floor(float64(knownCount) * ReviewShare)
		for _, r := range spaced_repetition.Rank(due, now) {
			if len(reviewWords) >= slots {
				break
			}
			reviewWords = append(reviewWords, r.Lemma)
			chosen[r.Lemma] = struct{}{}
		}
	}

	var candidates []string
	for _, r := range established {
		if _, ok := chosen[r.Lemma]; !ok {
			candidates = append(candidates, r.Lemma)
		}
	}
	knownWords := e.sample(candidates, knownCount-len(reviewWords))

	// Missing known vocabulary is made up with extra new words.
	if shortfall := knownCount - len(reviewWords) - len(knownWords); shortfall > 0 {
		newCount += shortfall
	}

	newWords, err := drawNew(reference, present, newCount)
	if err != nil {
		return models.WordSelection{}, err
	}

	return build(models.PolicySteadyState, knownWords, reviewWords, newWords), nil
}

// sample picks n distinct lemmas uniformly at random.
func (e *Engine) sample(candidates []string, n int) []string {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	e.mu.Lock()
	perm := e.rng.Perm(len(candidates))
	e.mu.Unlock()

	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[perm[i]]
	}
	return out
}

func newOnly(policy models.SelectionPolicy, reference []string, present map[string]struct{}, n int) (models.WordSelection, error) {
	newWords, err := drawNew(reference, present, n)
	if err != nil {
		return models.WordSelection{}, err
	}
	return build(policy, nil, nil, newWords), nil
}

// drawNew takes up to n reference lemmas, in order, that the learner has never met.
func drawNew(reference []string, present map[string]struct{}, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if len(reference) == 0 {
		return nil, fmt.Errorf("%w: %d new words requested", ErrEmptyReference, n)
	}

	drawn := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, lemma := range reference {
		if len(out) == n {
			break
		}
		if _, ok := present[lemma]; ok {
			continue
		}
		if _, ok := drawn[lemma]; ok {
			continue
		}
		drawn[lemma] = struct{}{}
		out = append(out, lemma)
	}
	return out, nil
}

func build(policy models.SelectionPolicy, known, review, fresh []string) models.WordSelection {
	sel := models.WordSelection{
		KnownWords:  nonNil(known),
		ReviewWords: nonNil(review),
		NewWords:    nonNil(fresh),
		Policy:      policy,
	}
	sel.AllWords = make([]string, 0, len(known)+len(review)+len(fresh))
	sel.AllWords = append(sel.AllWords, sel.KnownWords...)
	sel.AllWords = append(sel.AllWords, sel.ReviewWords...)
	sel.AllWords = append(sel.AllWords, sel.NewWords...)
	return sel
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func floor(v float64) int {
	return int(math.Floor(v + floorEpsilon))
}
