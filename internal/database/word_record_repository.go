package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingoloop/pkg/models"
)

const wordRecordColumns = `id, learner_id, language, lemma, surface_form, easiness_factor, repetitions,
	interval_days, next_review_at, status, times_seen, times_rated, frequency_rank, part_of_speech,
	first_seen_at, last_seen_at, last_reviewed_at`

// WordFilter narrows a Fetch. Zero values match everything.
type WordFilter struct {
	Statuses  []models.Status
	Lemmas    []string
	// Only records with a review time at or before DueBefore
	DueBefore *time.Time
	Limit     int
}

// WordRecordRepository handles database operations for learner word records
type WordRecordRepository struct {
	db *sqlx.DB
}

// NewWordRecordRepository creates a new repository instance
func NewWordRecordRepository(db *sqlx.DB) *WordRecordRepository {
	return &WordRecordRepository{db: db}
}

// wordRecordRow is the storage shape of models.WordRecord; a never-scheduled
// record has a NULL next_review_at.
type wordRecordRow struct {
	ID             int64          `db:"id"`
	LearnerID      string         `db:"learner_id"`
	Language       string         `db:"language"`
	Lemma          string         `db:"lemma"`
	SurfaceForm    string         `db:"surface_form"`
	EasinessFactor float64        `db:"easiness_factor"`
	Repetitions    int            `db:"repetitions"`
	IntervalDays   float64        `db:"interval_days"`
	NextReviewAt   sql.NullTime   `db:"next_review_at"`
	Status         models.Status  `db:"status"`
	TimesSeen      int            `db:"times_seen"`
	TimesRated     int            `db:"times_rated"`
	FrequencyRank  sql.NullInt64  `db:"frequency_rank"`
	PartOfSpeech   sql.NullString `db:"part_of_speech"`
	FirstSeenAt    time.Time      `db:"first_seen_at"`
	LastSeenAt     time.Time      `db:"last_seen_at"`
	LastReviewedAt sql.NullTime   `db:"last_reviewed_at"`
}

func toRow(r models.WordRecord) wordRecordRow {
	row := wordRecordRow{
		ID:             r.ID,
		LearnerID:      r.LearnerID,
		Language:       r.Language,
		Lemma:          r.Lemma,
		SurfaceForm:    r.SurfaceForm,
		EasinessFactor: r.EasinessFactor,
		Repetitions:    r.Repetitions,
		IntervalDays:   r.IntervalDays,
		Status:         r.Status,
		TimesSeen:      r.TimesSeen,
		TimesRated:     r.TimesRated,
		FirstSeenAt:    r.FirstSeenAt.UTC(),
		LastSeenAt:     r.LastSeenAt.UTC(),
	}
	if !r.NextReviewAt.IsZero() {
		row.NextReviewAt = sql.NullTime{Time: r.NextReviewAt.UTC(), Valid: true}
	}
	if r.FrequencyRank != nil {
		row.FrequencyRank = sql.NullInt64{Int64: int64(*r.FrequencyRank), Valid: true}
	}
	if r.PartOfSpeech != nil {
		row.PartOfSpeech = sql.NullString{String: *r.PartOfSpeech, Valid: true}
	}
	if r.LastReviewedAt != nil {
		row.LastReviewedAt = sql.NullTime{Time: r.LastReviewedAt.UTC(), Valid: true}
	}
	return row
}

func (row wordRecordRow) record() models.WordRecord {
	r := models.WordRecord{
		ID:             row.ID,
		LearnerID:      row.LearnerID,
		Language:       row.Language,
		Lemma:          row.Lemma,
		SurfaceForm:    row.SurfaceForm,
		EasinessFactor: row.EasinessFactor,
		Repetitions:    row.Repetitions,
		IntervalDays:   row.IntervalDays,
		Status:         row.Status,
		TimesSeen:      row.TimesSeen,
		TimesRated:     row.TimesRated,
		FirstSeenAt:    row.FirstSeenAt.UTC(),
		LastSeenAt:     row.LastSeenAt.UTC(),
	}
	if row.NextReviewAt.Valid {
		r.NextReviewAt = row.NextReviewAt.Time.UTC()
	}
	if row.FrequencyRank.Valid {
		rank := int(row.FrequencyRank.Int64)
		r.FrequencyRank = &rank
	}
	if row.PartOfSpeech.Valid {
		pos := row.PartOfSpeech.String
		r.PartOfSpeech = &pos
	}
	if row.LastReviewedAt.Valid {
		reviewed := row.LastReviewedAt.Time.UTC()
		r.LastReviewedAt = &reviewed
	}
	return r
}

// Fetch returns a learner's records in one language, oldest first
func (r *WordRecordRepository) Fetch(ctx context.Context, learnerID, language string, filter WordFilter) ([]models.WordRecord, error) {
	var (
		conds = []string{"learner_id = ?", "language = ?"}
		args  = []interface{}{learnerID, language}
	)

	if len(filter.Statuses) > 0 {
		tags := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			if !s.IsValid() {
				return nil, errors.Wrapf(models.ErrInvalidStatus, "filter status %d", int(s))
			}
			tags = append(tags, s.String())
		}
		conds = append(conds, "status IN (?)")
		args = append(args, tags)
	}
	if len(filter.Lemmas) > 0 {
		conds = append(conds, "lemma IN (?)")
		args = append(args, filter.Lemmas)
	}
	if filter.DueBefore != nil {
		conds = append(conds, "next_review_at IS NOT NULL AND next_review_at <= ?")
		args = append(args, filter.DueBefore.UTC())
	}

	query := "SELECT " + wordRecordColumns + " FROM word_records WHERE " + strings.Join(conds, " AND ") + " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand word filter")
	}

	var rows []wordRecordRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to fetch word records")
	}

	records := make([]models.WordRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// Get returns a single record by lemma
func (r *WordRecordRepository) Get(ctx context.Context, learnerID, language, lemma string) (*models.WordRecord, error) {
	records, err := r.Fetch(ctx, learnerID, language, WordFilter{Lemmas: []string{lemma}})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "word %q for learner %s", lemma, learnerID)
	}
	return &records[0], nil
}

const upsertWordRecordQuery = `
	INSERT INTO word_records (
		learner_id, language, lemma, surface_form, easiness_factor, repetitions, interval_days,
		next_review_at, status, times_seen, times_rated, frequency_rank, part_of_speech,
		first_seen_at, last_seen_at, last_reviewed_at
	) VALUES (
		:learner_id, :language, :lemma, :surface_form, :easiness_factor, :repetitions, :interval_days,
		:next_review_at, :status, :times_seen, :times_rated, :frequency_rank, :part_of_speech,
		:first_seen_at, :last_seen_at, :last_reviewed_at
	)
	ON CONFLICT (learner_id, language, lemma) DO UPDATE SET
		surface_form = excluded.surface_form,
		easiness_factor = excluded.easiness_factor,
		repetitions = excluded.repetitions,
		interval_days = excluded.interval_days,
		next_review_at = excluded.next_review_at,
		status = excluded.status,
		times_seen = excluded.times_seen,
		times_rated = excluded.times_rated,
		frequency_rank = excluded.frequency_rank,
		part_of_speech = excluded.part_of_speech,
		last_seen_at = excluded.last_seen_at,
		last_reviewed_at = excluded.last_reviewed_at`

// Upsert writes records for a learner in one transaction. Existing rows are
// matched on (learner, language, lemma) and overwritten; first_seen_at is kept.
func (r *WordRecordRepository) Upsert(ctx context.Context, learnerID string, records []models.WordRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, rec := range records {
		if !rec.Status.IsValid() {
			return errors.Wrapf(models.ErrInvalidStatus, "word %q", rec.Lemma)
		}
		if rec.LearnerID == "" {
			rec.LearnerID = learnerID
		} else if rec.LearnerID != learnerID {
			return errors.Errorf("word %q belongs to learner %s, not %s", rec.Lemma, rec.LearnerID, learnerID)
		}
		if _, err := tx.NamedExecContext(ctx, upsertWordRecordQuery, toRow(rec)); err != nil {
			return errors.Wrapf(err, "failed to upsert word %q", rec.Lemma)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit word records")
	}
	return nil
}

// Stats returns status counts for a learner's vocabulary. Due counts rated
// words whose review time is at or before now.
func (r *WordRecordRepository) Stats(ctx context.Context, learnerID, language string, now time.Time) (*models.VocabularyStats, error) {
	query := r.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'new' THEN 1 ELSE 0 END), 0) AS new_count,
			COALESCE(SUM(CASE WHEN status = 'learning' THEN 1 ELSE 0 END), 0) AS learning_count,
			COALESCE(SUM(CASE WHEN status = 'known' THEN 1 ELSE 0 END), 0) AS known_count,
			COALESCE(SUM(CASE WHEN status = 'mastered' THEN 1 ELSE 0 END), 0) AS mastered_count,
			COALESCE(SUM(CASE WHEN status <> 'new' AND next_review_at IS NOT NULL AND next_review_at <= ? THEN 1 ELSE 0 END), 0) AS due_count,
			COALESCE(AVG(easiness_factor), 0) AS average_easiness
		FROM word_records
		WHERE learner_id = ? AND language = ?`)

	var stats models.VocabularyStats
	if err := r.db.GetContext(ctx, &stats, query, now.UTC(), learnerID, language); err != nil {
		return nil, errors.Wrap(err, "failed to get vocabulary statistics")
	}
	return &stats, nil
}

// CountDue returns how many rated words of a learner are due at now, across languages
func (r *WordRecordRepository) CountDue(ctx context.Context, learnerID string, now time.Time) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM word_records
		WHERE learner_id = ? AND status <> 'new' AND next_review_at IS NOT NULL AND next_review_at <= ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, learnerID, now.UTC()); err != nil {
		return 0, errors.Wrap(err, "failed to count due words")
	}
	return count, nil
}
