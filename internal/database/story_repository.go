package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingoloop/pkg/models"
)

const storyColumns = `id, learner_id, language, level, topic, text, policy, known_words, review_words,
	new_words, target_word_count, valid, validation_errors, attempts, created_at`

// StoryRepository handles database operations for generated stories
type StoryRepository struct {
	db *sqlx.DB
}

// NewStoryRepository creates a new repository instance
func NewStoryRepository(db *sqlx.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// storyRow keeps word lists and validation errors as JSON arrays
type storyRow struct {
	ID               string                  `db:"id"`
	LearnerID        string                  `db:"learner_id"`
	Language         string                  `db:"language"`
	Level            models.ProficiencyLevel `db:"level"`
	Topic            string                  `db:"topic"`
	Text             string                  `db:"text"`
	Policy           models.SelectionPolicy  `db:"policy"`
	KnownWords       string                  `db:"known_words"`
	ReviewWords      string                  `db:"review_words"`
	NewWords         string                  `db:"new_words"`
	TargetWordCount  int                     `db:"target_word_count"`
	Valid            bool                    `db:"valid"`
	ValidationErrors string                  `db:"validation_errors"`
	Attempts         int                     `db:"attempts"`
	CreatedAt        time.Time               `db:"created_at"`
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	return string(data), err
}

func decodeList(data string) ([]string, error) {
	list := []string{}
	if data == "" {
		return list, nil
	}
	err := json.Unmarshal([]byte(data), &list)
	return list, err
}

// Create stores a story. The caller assigns the ID.
func (r *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	if story.ID == "" {
		return errors.New("story ID is required")
	}

	row := storyRow{
		ID:              story.ID,
		LearnerID:       story.LearnerID,
		Language:        story.Language,
		Level:           story.Level,
		Topic:           story.Topic,
		Text:            story.Text,
		Policy:          story.Selection.Policy,
		TargetWordCount: story.TargetWordCount,
		Valid:           story.Valid,
		Attempts:        story.Attempts,
		CreatedAt:       story.CreatedAt.UTC(),
	}

	var err error
	for _, field := range []struct {
		dst  *string
		list []string
	}{
		{&row.KnownWords, story.Selection.KnownWords},
		{&row.ReviewWords, story.Selection.ReviewWords},
		{&row.NewWords, story.Selection.NewWords},
		{&row.ValidationErrors, story.ValidationErrors},
	} {
		if *field.dst, err = encodeList(field.list); err != nil {
			return errors.Wrap(err, "failed to encode story word lists")
		}
	}

	query := `
		INSERT INTO stories (
			id, learner_id, language, level, topic, text, policy, known_words, review_words,
			new_words, target_word_count, valid, validation_errors, attempts, created_at
		) VALUES (
			:id, :learner_id, :language, :level, :topic, :text, :policy, :known_words, :review_words,
			:new_words, :target_word_count, :valid, :validation_errors, :attempts, :created_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to create story")
	}
	return nil
}

// GetByID returns a story by ID
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	var row storyRow
	query := r.db.Rebind("SELECT " + storyColumns + " FROM stories WHERE id = ?")
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "story %s", id)
		}
		return nil, errors.Wrap(err, "failed to get story by ID")
	}
	return row.story()
}

// ListByLearner returns a learner's most recent stories first
func (r *StoryRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]models.Story, error) {
	query := "SELECT " + storyColumns + " FROM stories WHERE learner_id = ? ORDER BY created_at DESC, id"
	args := []interface{}{learnerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []storyRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to list stories")
	}

	stories := make([]models.Story, 0, len(rows))
	for _, row := range rows {
		s, err := row.story()
		if err != nil {
			return nil, err
		}
		stories = append(stories, *s)
	}
	return stories, nil
}

func (row storyRow) story() (*models.Story, error) {
	s := &models.Story{
		ID:              row.ID,
		LearnerID:       row.LearnerID,
		Language:        row.Language,
		Level:           row.Level,
		Topic:           row.Topic,
		Text:            row.Text,
		TargetWordCount: row.TargetWordCount,
		Valid:           row.Valid,
		Attempts:        row.Attempts,
		CreatedAt:       row.CreatedAt.UTC(),
	}
	s.Selection.Policy = row.Policy

	var err error
	for _, field := range []struct {
		dst  *[]string
		data string
	}{
		{&s.Selection.KnownWords, row.KnownWords},
		{&s.Selection.ReviewWords, row.ReviewWords},
		{&s.Selection.NewWords, row.NewWords},
		{&s.ValidationErrors, row.ValidationErrors},
	} {
		if *field.dst, err = decodeList(field.data); err != nil {
			return nil, errors.Wrapf(err, "failed to parse word lists of story %s", row.ID)
		}
	}

	s.Selection.AllWords = make([]string, 0, len(s.Selection.KnownWords)+len(s.Selection.ReviewWords)+len(s.Selection.NewWords))
	s.Selection.AllWords = append(s.Selection.AllWords, s.Selection.KnownWords...)
	s.Selection.AllWords = append(s.Selection.AllWords, s.Selection.ReviewWords...)
	s.Selection.AllWords = append(s.Selection.AllWords, s.Selection.NewWords...)
	return s, nil
}
