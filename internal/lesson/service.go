// Package lesson ties the scheduler, the selection engine, the story generator
// and storage together into the operations a learner-facing surface calls.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/lingoloop/internal/ai"
	"github.com/example/lingoloop/internal/composition"
	"github.com/example/lingoloop/internal/database"
	"github.com/example/lingoloop/internal/lexicon"
	"github.com/example/lingoloop/internal/logger"
	"github.com/example/lingoloop/internal/spaced_repetition"
	"github.com/example/lingoloop/pkg/models"
)

// ErrEmptyWord is returned when a surface form has no word characters.
var ErrEmptyWord = errors.New("lesson: word has no lemma")

// ColdStartTargetWords is the passage length asked for when the learner has
// no rated words yet: one short sentence around the first few lemmas.
const ColdStartTargetWords = 10

// WordStore is the learner vocabulary storage the service needs.
type WordStore interface {
	Fetch(ctx context.Context, learnerID, language string, filter database.WordFilter) ([]models.WordRecord, error)
	Upsert(ctx context.Context, learnerID string, records []models.WordRecord) error
	Stats(ctx context.Context, learnerID, language string, now time.Time) (*models.VocabularyStats, error)
}

// ReferenceStore serves frequency-ordered reference vocabularies.
type ReferenceStore interface {
	Lemmas(ctx context.Context, language string) ([]string, error)
	Lookup(ctx context.Context, language string, lemmas []string) (map[string]models.ReferenceWord, error)
}

// StoryStore persists generated stories.
type StoryStore interface {
	Create(ctx context.Context, story *models.Story) error
}

// Generator writes passage text for a word selection.
type Generator interface {
	GenerateStory(ctx context.Context, req ai.StoryRequest) (string, error)
}

// Selector partitions a word budget.
type Selector interface {
	Select(records []models.WordRecord, params models.GenerationParams, reference []string, now time.Time) (models.WordSelection, error)
}

// Deps are the collaborators of a Service. Clock, NewID and MaxAttempts have
// defaults.
type Deps struct {
	Words       WordStore
	References  ReferenceStore
	Stories     StoryStore
	Generator   Generator
	Selector    Selector
	Normalizer  lexicon.Normalizer
	Logger      *logger.Logger
	Clock       func() time.Time
	NewID       func() string
	MaxAttempts int
}

// Service runs rating, composition and ranking for learners.
type Service struct {
	words       WordStore
	references  ReferenceStore
	stories     StoryStore
	generator   Generator
	selector    Selector
	normalizer  lexicon.Normalizer
	log         *logger.Logger
	now         func() time.Time
	newID       func() string
	maxAttempts int
}

// NewService creates a service from its dependencies.
func NewService(d Deps) *Service {
	s := &Service{
		words:       d.Words,
		references:  d.References,
		stories:     d.Stories,
		generator:   d.Generator,
		selector:    d.Selector,
		normalizer:  d.Normalizer,
		log:         d.Logger,
		now:         d.Clock,
		newID:       d.NewID,
		maxAttempts: d.MaxAttempts,
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	return s
}

// RecordRating applies a recall rating for a word the learner met in
// surfaceForm and stores the new schedule. Unknown words are created first.
func (s *Service) RecordRating(ctx context.Context, learnerID, language, surfaceForm string, rating spaced_repetition.QualityResponse) (*models.WordRecord, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", spaced_repetition.ErrInvalidRating, int(rating))
	}
	lemma := s.normalizer.Canonicalize(surfaceForm, language)
	if lemma == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyWord, surfaceForm)
	}
	now := s.now()

	existing, err := s.words.Fetch(ctx, learnerID, language, database.WordFilter{Lemmas: []string{lemma}})
	if err != nil {
		return nil, err
	}

	var record models.WordRecord
	if len(existing) > 0 {
		record = existing[0]
	} else {
		record = models.NewWordRecord(learnerID, language, lemma, "", now)
		if err := s.attachReference(ctx, language, []*models.WordRecord{&record}); err != nil {
			return nil, err
		}
	}

	next, err := spaced_repetition.Advance(record, rating, now)
	if err != nil {
		return nil, err
	}
	if form := strings.TrimSpace(surfaceForm); form != "" {
		next.SurfaceForm = form
	}
	next.LastSeenAt = now

	if err := s.words.Upsert(ctx, learnerID, []models.WordRecord{next}); err != nil {
		return nil, err
	}

	s.log.Debug("Rating recorded",
		"learner", learnerID, "language", language, "lemma", lemma, "rating", int(rating),
		"status", next.Status.String(), "interval_days", next.IntervalDays)
	return &next, nil
}

// ComposeStory selects vocabulary, has the generator write a passage with it
// and validates the result, retrying with the validation errors as feedback.
// The last attempt is stored even if it never validated; word exposure is
// only recorded for valid stories.
func (s *Service) ComposeStory(ctx context.Context, learnerID, language string, params models.GenerationParams) (*models.Story, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.TargetWordCount == 0 {
		return nil, fmt.Errorf("%w: target word count must be positive", models.ErrInvalidParams)
	}
	now := s.now()

	records, err := s.words.Fetch(ctx, learnerID, language, database.WordFilter{})
	if err != nil {
		return nil, err
	}
	reference, err := s.references.Lemmas(ctx, language)
	if err != nil {
		return nil, err
	}

	sel, err := s.selector.Select(records, params, reference, now)
	if err != nil {
		return nil, err
	}

	target := params.TargetWordCount
	if sel.Policy == models.PolicyColdStart {
		target = ColdStartTargetWords
	}

	req := ai.StoryRequest{
		Language:        language,
		Level:           params.Level,
		Topic:           params.Topic,
		TargetWordCount: target,
		Selection:       sel,
	}

	var (
		text     string
		result   models.ValidationResult
		attempts int
	)
	for attempts < s.maxAttempts {
		attempts++
		text, err = s.generator.GenerateStory(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generation attempt %d: %w", attempts, err)
		}
		result = composition.Validate(text, sel, target)
		if result.Valid {
			break
		}
		s.log.Warn("Generated story rejected",
			"learner", learnerID, "attempt", attempts, "errors", result.Errors)
		req.Feedback = result.Errors
	}

	story := &models.Story{
		ID:               s.newID(),
		LearnerID:        learnerID,
		Language:         language,
		Level:            params.Level,
		Topic:            params.Topic,
		Text:             text,
		Selection:        sel,
		TargetWordCount:  target,
		Valid:            result.Valid,
		ValidationErrors: result.Errors,
		Attempts:         attempts,
		CreatedAt:        now,
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	if story.Valid {
		if err := s.recordExposure(ctx, learnerID, language, records, sel, now); err != nil {
			return nil, err
		}
	}

	s.log.Info("Story composed",
		"learner", learnerID, "language", language, "policy", string(sel.Policy),
		"words", len(sel.AllWords), "new", len(sel.NewWords), "attempts", attempts, "valid", story.Valid)
	return story, nil
}

// recordExposure bumps the seen counters of the known and review words and
// creates New records for lemmas the learner meets for the first time.
func (s *Service) recordExposure(ctx context.Context, learnerID, language string, records []models.WordRecord, sel models.WordSelection, now time.Time) error {
	byLemma := make(map[string]models.WordRecord, len(records))
	for _, r := range records {
		byLemma[r.Lemma] = r
	}

	updates := make([]models.WordRecord, 0, len(sel.AllWords))
	var created []*models.WordRecord
	for _, lemma := range sel.AllWords {
		if r, ok := byLemma[lemma]; ok {
			r.TimesSeen++
			r.LastSeenAt = now
			updates = append(updates, r)
			continue
		}
		r := models.NewWordRecord(learnerID, language, lemma, "", now)
		r.TimesSeen = 1
		updates = append(updates, r)
		created = append(created, &updates[len(updates)-1])
	}

	if err := s.attachReference(ctx, language, created); err != nil {
		return err
	}
	return s.words.Upsert(ctx, learnerID, updates)
}

// attachReference copies frequency rank and part of speech from the reference list.
func (s *Service) attachReference(ctx context.Context, language string, records []*models.WordRecord) error {
	if len(records) == 0 {
		return nil
	}
	lemmas := make([]string, len(records))
	for i, r := range records {
		lemmas[i] = r.Lemma
	}

	found, err := s.references.Lookup(ctx, language, lemmas)
	if err != nil {
		return err
	}
	for _, r := range records {
		ref, ok := found[r.Lemma]
		if !ok {
			continue
		}
		rank := ref.FrequencyRank
		r.FrequencyRank = &rank
		r.PartOfSpeech = ref.PartOfSpeech
	}
	return nil
}

// RankDue returns up to limit due words, most urgent first. limit <= 0 means all.
func (s *Service) RankDue(ctx context.Context, learnerID, language string, limit int) ([]models.WordRecord, error) {
	now := s.now()
	records, err := s.words.Fetch(ctx, learnerID, language, database.WordFilter{
		Statuses:  []models.Status{models.StatusLearning, models.StatusKnown, models.StatusMastered},
		DueBefore: &now,
	})
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return spaced_repetition.GetNextWords(records, now, limit), nil
}

// Stats returns a learner's vocabulary summary for one language.
func (s *Service) Stats(ctx context.Context, learnerID, language string) (*models.VocabularyStats, error) {
	return s.words.Stats(ctx, learnerID, language, s.now())
}
