package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingoloop/pkg/models"
)

const learnerColumns = `id, language, telegram_chat_id, notification_enabled, notification_hour,
	words_per_day, created_at, updated_at`

// LearnerRepository handles database operations for learners
type LearnerRepository struct {
	db *sqlx.DB
}

// NewLearnerRepository creates a new repository instance
func NewLearnerRepository(db *sqlx.DB) *LearnerRepository {
	return &LearnerRepository{db: db}
}

// Upsert inserts a new learner or updates if exists. created_at is kept on update.
func (r *LearnerRepository) Upsert(ctx context.Context, learner *models.Learner) error {
	if learner.ID == "" {
		return errors.New("learner ID is required")
	}
	if learner.NotificationHour < 0 || learner.NotificationHour > 23 {
		return errors.Errorf("notification hour must be within 0-23, got %d", learner.NotificationHour)
	}

	row := *learner
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()

	query := `
		INSERT INTO learners (
			id, language, telegram_chat_id, notification_enabled, notification_hour,
			words_per_day, created_at, updated_at
		) VALUES (
			:id, :language, :telegram_chat_id, :notification_enabled, :notification_hour,
			:words_per_day, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			language = excluded.language,
			telegram_chat_id = excluded.telegram_chat_id,
			notification_enabled = excluded.notification_enabled,
			notification_hour = excluded.notification_hour,
			words_per_day = excluded.words_per_day,
			updated_at = excluded.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to upsert learner")
	}
	return nil
}

// GetByID returns a learner by ID
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*models.Learner, error) {
	var learner models.Learner
	query := r.db.Rebind("SELECT " + learnerColumns + " FROM learners WHERE id = ?")
	if err := r.db.GetContext(ctx, &learner, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "learner %s", id)
		}
		return nil, errors.Wrap(err, "failed to get learner by ID")
	}
	learner.CreatedAt = learner.CreatedAt.UTC()
	learner.UpdatedAt = learner.UpdatedAt.UTC()
	return &learner, nil
}

// ListForNotification returns learners with notifications enabled for a specific hour
func (r *LearnerRepository) ListForNotification(ctx context.Context, hour int) ([]models.Learner, error) {
	var learners []models.Learner
	query := r.db.Rebind("SELECT " + learnerColumns + " FROM learners WHERE notification_enabled = ? AND notification_hour = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &learners, query, true, hour); err != nil {
		return nil, errors.Wrap(err, "failed to get learners for notification")
	}
	for i := range learners {
		learners[i].CreatedAt = learners[i].CreatedAt.UTC()
		learners[i].UpdatedAt = learners[i].UpdatedAt.UTC()
	}
	return learners, nil
}
