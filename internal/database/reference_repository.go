package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingoloop/pkg/models"
)

// ReferenceRepository handles database operations for reference vocabularies
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository creates a new repository instance
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// Upsert inserts or replaces reference words in one transaction
func (r *ReferenceRepository) Upsert(ctx context.Context, words []models.ReferenceWord) error {
	if len(words) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reference_words (language, lemma, frequency_rank, part_of_speech)
		VALUES (:language, :lemma, :frequency_rank, :part_of_speech)
		ON CONFLICT (language, lemma) DO UPDATE SET
			frequency_rank = excluded.frequency_rank,
			part_of_speech = excluded.part_of_speech`

	for _, w := range words {
		if _, err := tx.NamedExecContext(ctx, query, w); err != nil {
			return errors.Wrapf(err, "failed to upsert reference word %q", w.Lemma)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit reference words")
	}
	return nil
}

// Lemmas returns a language's lemmas, most frequent first
func (r *ReferenceRepository) Lemmas(ctx context.Context, language string) ([]string, error) {
	var lemmas []string
	query := r.db.Rebind("SELECT lemma FROM reference_words WHERE language = ? ORDER BY frequency_rank, lemma")
	if err := r.db.SelectContext(ctx, &lemmas, query, language); err != nil {
		return nil, errors.Wrap(err, "failed to get reference lemmas")
	}
	return lemmas, nil
}

// Lookup returns the reference entries for the given lemmas, keyed by lemma.
// Lemmas that are not in the reference list are absent from the map.
func (r *ReferenceRepository) Lookup(ctx context.Context, language string, lemmas []string) (map[string]models.ReferenceWord, error) {
	out := make(map[string]models.ReferenceWord, len(lemmas))
	if len(lemmas) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		"SELECT language, lemma, frequency_rank, part_of_speech FROM reference_words WHERE language = ? AND lemma IN (?)",
		language, lemmas)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand lemma list")
	}

	var words []models.ReferenceWord
	if err := r.db.SelectContext(ctx, &words, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to look up reference words")
	}
	for _, w := range words {
		out[w.Lemma] = w
	}
	return out, nil
}

// Count returns the size of a language's reference list
func (r *ReferenceRepository) Count(ctx context.Context, language string) (int, error) {
	var count int
	query := r.db.Rebind("SELECT COUNT(*) FROM reference_words WHERE language = ?")
	if err := r.db.GetContext(ctx, &count, query, language); err != nil {
		return 0, errors.Wrap(err, "failed to count reference words")
	}
	return count, nil
}
