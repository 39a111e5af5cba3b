package database

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingoloop/internal/config"
	"github.com/example/lingoloop/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func seedRecords(t *testing.T, repo *WordRecordRepository) {
	t.Helper()

	fresh := models.NewWordRecord("ana", "es", "casa", "casas", t0)
	fresh.FrequencyRank = intPtr(120)

	due := models.NewWordRecord("ana", "es", "perro", "perro", t0.Add(-240*time.Hour))
	due.Status = models.StatusKnown
	due.Repetitions = 3
	due.IntervalDays = 15
	due.NextReviewAt = t0.Add(-2 * time.Hour)
	due.TimesRated = 3
	due.PartOfSpeech = strPtr("noun")
	due.LastReviewedAt = timePtr(t0.Add(-15 * 24 * time.Hour))

	later := models.NewWordRecord("ana", "es", "comer", "comiendo", t0)
	later.Status = models.StatusLearning
	later.Repetitions = 1
	later.IntervalDays = 1
	later.NextReviewAt = t0.Add(24 * time.Hour)

	other := models.NewWordRecord("ana", "fr", "maison", "maison", t0)

	require.NoError(t, repo.Upsert(context.Background(), "ana", []models.WordRecord{fresh, due, later, other}))
}

func TestWordRecordRepositoryRoundTrip(t *testing.T) {
	repo := NewWordRecordRepository(newTestDB(t))
	seedRecords(t, repo)

	records, err := repo.Fetch(context.Background(), "ana", "es", WordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	casa := records[0]
	assert.NotZero(t, casa.ID)
	assert.Equal(t, "casa", casa.Lemma)
	assert.Equal(t, "casas", casa.SurfaceForm)
	assert.Equal(t, models.StatusNew, casa.Status)
	assert.True(t, casa.NextReviewAt.IsZero(), "unscheduled record must stay unscheduled")
	require.NotNil(t, casa.FrequencyRank)
	assert.Equal(t, 120, *casa.FrequencyRank)
	assert.Nil(t, casa.PartOfSpeech)
	assert.Nil(t, casa.LastReviewedAt)
	assert.InDelta(t, models.DefaultEasinessFactor, casa.EasinessFactor, 1e-9)

	perro := records[1]
	assert.Equal(t, models.StatusKnown, perro.Status)
	assert.Equal(t, 3, perro.Repetitions)
	assert.InDelta(t, 15.0, perro.IntervalDays, 1e-9)
	assert.True(t, t0.Add(-2*time.Hour).Equal(perro.NextReviewAt))
	require.NotNil(t, perro.PartOfSpeech)
	assert.Equal(t, "noun", *perro.PartOfSpeech)
	require.NotNil(t, perro.LastReviewedAt)
	assert.True(t, t0.Add(-15*24*time.Hour).Equal(*perro.LastReviewedAt))
	assert.True(t, t0.Add(-240*time.Hour).Equal(perro.FirstSeenAt))
}

func TestWordRecordRepositoryFilters(t *testing.T) {
	repo := NewWordRecordRepository(newTestDB(t))
	seedRecords(t, repo)
	ctx := context.Background()

	lemmas := func(records []models.WordRecord) []string {
		out := make([]string, 0, len(records))
		for _, r := range records {
			out = append(out, r.Lemma)
		}
		return out
	}

	established, err := repo.Fetch(ctx, "ana", "es", WordFilter{
		Statuses: []models.Status{models.StatusLearning, models.StatusKnown, models.StatusMastered},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"perro", "comer"}, lemmas(established))

	byLemma, err := repo.Fetch(ctx, "ana", "es", WordFilter{Lemmas: []string{"comer", "casa", "gato"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"casa", "comer"}, lemmas(byLemma))

	due, err := repo.Fetch(ctx, "ana", "es", WordFilter{DueBefore: timePtr(t0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"perro"}, lemmas(due))

	limited, err := repo.Fetch(ctx, "ana", "es", WordFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := repo.Fetch(ctx, "ben", "es", WordFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = repo.Fetch(ctx, "ana", "es", WordFilter{Statuses: []models.Status{models.Status(9)}})
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestWordRecordRepositoryUpsertOverwrites(t *testing.T) {
	repo := NewWordRecordRepository(newTestDB(t))
	seedRecords(t, repo)
	ctx := context.Background()

	rec, err := repo.Get(ctx, "ana", "es", "comer")
	require.NoError(t, err)

	updated := *rec
	updated.Repetitions = 2
	updated.IntervalDays = 15.6
	updated.Status = models.StatusLearning
	updated.EasinessFactor = 2.36
	updated.NextReviewAt = t0.Add(15 * 24 * time.Hour)
	updated.FirstSeenAt = t0.Add(time.Hour)
	updated.LastSeenAt = t0.Add(time.Hour)

	// Same write twice: last write wins, no duplicate rows.
	require.NoError(t, repo.Upsert(ctx, "ana", []models.WordRecord{updated}))
	require.NoError(t, repo.Upsert(ctx, "ana", []models.WordRecord{updated}))

	all, err := repo.Fetch(ctx, "ana", "es", WordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := repo.Get(ctx, "ana", "es", "comer")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 2, got.Repetitions)
	assert.InDelta(t, 15.6, got.IntervalDays, 1e-9)
	assert.True(t, t0.Add(15*24*time.Hour).Equal(got.NextReviewAt))
	assert.True(t, t0.Add(time.Hour).Equal(got.LastSeenAt))
	assert.True(t, rec.FirstSeenAt.Equal(got.FirstSeenAt), "first_seen_at is kept")
}

func TestWordRecordRepositoryRejectsBadRecords(t *testing.T) {
	repo := NewWordRecordRepository(newTestDB(t))
	ctx := context.Background()

	bad := models.NewWordRecord("ana", "es", "casa", "", t0)
	bad.Status = 0
	assert.ErrorIs(t, repo.Upsert(ctx, "ana", []models.WordRecord{bad}), models.ErrInvalidStatus)

	foreign := models.NewWordRecord("ben", "es", "casa", "", t0)
	assert.Error(t, repo.Upsert(ctx, "ana", []models.WordRecord{foreign}))

	// Nothing from the failed batches was written.
	all, err := repo.Fetch(ctx, "ana", "es", WordFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWordRecordRepositoryGetNotFound(t *testing.T) {
	repo := NewWordRecordRepository(newTestDB(t))
	_, err := repo.Get(context.Background(), "ana", "es", "nada")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWordRecordRepositoryStats(t *testing.T) {
	repo := NewWordRecordRepository(newTestDB(t))
	seedRecords(t, repo)
	ctx := context.Background()

	stats, err := repo.Stats(ctx, "ana", "es", t0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 1, stats.Learning)
	assert.Equal(t, 1, stats.Known)
	assert.Equal(t, 0, stats.Mastered)
	assert.Equal(t, 1, stats.Due)
	assert.InDelta(t, 2.5, stats.AverageEasiness, 1e-9)

	empty, err := repo.Stats(ctx, "ben", "es", t0)
	require.NoError(t, err)
	assert.Equal(t, models.VocabularyStats{}, *empty)

	count, err := repo.CountDue(ctx, "ana", t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReferenceRepository(t *testing.T) {
	repo := NewReferenceRepository(newTestDB(t))
	ctx := context.Background()

	words := []models.ReferenceWord{
		{Language: "es", Lemma: "de", FrequencyRank: 1},
		{Language: "es", Lemma: "casa", FrequencyRank: 40, PartOfSpeech: strPtr("noun")},
		{Language: "es", Lemma: "el", FrequencyRank: 2},
		{Language: "fr", Lemma: "le", FrequencyRank: 1},
	}
	require.NoError(t, repo.Upsert(ctx, words))

	lemmas, err := repo.Lemmas(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "el", "casa"}, lemmas)

	count, err := repo.Count(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Re-importing replaces ranks.
	require.NoError(t, repo.Upsert(ctx, []models.ReferenceWord{{Language: "es", Lemma: "casa", FrequencyRank: 0}}))
	lemmas, err = repo.Lemmas(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"casa", "de", "el"}, lemmas)

	found, err := repo.Lookup(ctx, "es", []string{"el", "gato"})
	require.NoError(t, err)
	require.Contains(t, found, "el")
	assert.Equal(t, 2, found["el"].FrequencyRank)
	assert.NotContains(t, found, "gato")

	missing, err := repo.Lemmas(ctx, "de")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStoryRepository(t *testing.T) {
	repo := NewStoryRepository(newTestDB(t))
	ctx := context.Background()

	story := &models.Story{
		ID:        "story-1",
		LearnerID: "ana",
		Language:  "es",
		Level:     models.LevelA2,
		Topic:     "market",
		Text:      "El perro come en la casa.",
		Selection: models.WordSelection{
			KnownWords:  []string{"el", "la"},
			ReviewWords: []string{"perro"},
			NewWords:    []string{"casa"},
			AllWords:    []string{"el", "la", "perro", "casa"},
			Policy:      models.PolicySteadyState,
		},
		TargetWordCount:  6,
		Valid:            false,
		ValidationErrors: []string{`missing new word "casa"`},
		Attempts:         2,
		CreatedAt:        t0,
	}
	require.NoError(t, repo.Create(ctx, story))

	got, err := repo.GetByID(ctx, "story-1")
	require.NoError(t, err)
	assert.Equal(t, story.Selection, got.Selection)
	assert.Equal(t, story.ValidationErrors, got.ValidationErrors)
	assert.Equal(t, story.Text, got.Text)
	assert.Equal(t, models.LevelA2, got.Level)
	assert.Equal(t, 2, got.Attempts)
	assert.False(t, got.Valid)
	assert.True(t, t0.Equal(got.CreatedAt))

	second := &models.Story{ID: "story-2", LearnerID: "ana", Language: "es", Text: "Hola.", Valid: true, CreatedAt: t0.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.ListByLearner(ctx, "ana", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "story-2", list[0].ID)
	assert.Equal(t, []string{}, list[0].Selection.NewWords)
	assert.Equal(t, []string{}, list[0].ValidationErrors)

	limited, err := repo.ListByLearner(ctx, "ana", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, repo.Create(ctx, &models.Story{LearnerID: "ana"}))
}

func TestLearnerRepository(t *testing.T) {
	repo := NewLearnerRepository(newTestDB(t))
	ctx := context.Background()

	ana := &models.Learner{
		ID:                  "ana",
		Language:            "es",
		TelegramChatID:      4242,
		NotificationEnabled: true,
		NotificationHour:    9,
		WordsPerDay:         10,
		CreatedAt:           t0,
		UpdatedAt:           t0,
	}
	ben := &models.Learner{ID: "ben", Language: "fr", NotificationEnabled: false, NotificationHour: 9, CreatedAt: t0, UpdatedAt: t0}
	cleo := &models.Learner{ID: "cleo", Language: "es", NotificationEnabled: true, NotificationHour: 18, CreatedAt: t0, UpdatedAt: t0}
	for _, l := range []*models.Learner{ana, ben, cleo} {
		require.NoError(t, repo.Upsert(ctx, l))
	}

	got, err := repo.GetByID(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, int64(4242), got.TelegramChatID)
	assert.True(t, got.NotificationEnabled)
	assert.True(t, t0.Equal(got.CreatedAt))

	due, err := repo.ListForNotification(ctx, 9)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "ana", due[0].ID)

	// Updating keeps created_at.
	moved := *ana
	moved.NotificationHour = 18
	moved.CreatedAt = t0.Add(time.Hour)
	moved.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, &moved))

	evening, err := repo.ListForNotification(ctx, 18)
	require.NoError(t, err)
	assert.Len(t, evening, 2)

	got, err = repo.GetByID(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, t0.Equal(got.CreatedAt))
	assert.True(t, t0.Add(time.Hour).Equal(got.UpdatedAt))

	_, err = repo.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, repo.Upsert(ctx, &models.Learner{ID: "dan", NotificationHour: 24}))
}
