package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/example/lingoloop/internal/config"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("database: not found")

// Connect opens the configured database and makes sure the schema exists
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN
	if cfg.Driver == "sqlite3" && dsn == "" {
		// Create data directory if it doesn't exist
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
		dsn = filepath.Join(cfg.DataDir, "lingoloop.db")
	}

	db, err := sqlx.Connect(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s database", cfg.Driver)
	}

	if cfg.Driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
		// SQLite doesn't support multiple writers; one connection also keeps :memory: databases alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitializeSchema creates necessary tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []struct {
		name  string
		query string
	}{
		{"learners", `
			CREATE TABLE IF NOT EXISTS learners (
				id TEXT PRIMARY KEY,
				language TEXT NOT NULL,
				telegram_chat_id BIGINT NOT NULL DEFAULT 0,
				notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				notification_hour INTEGER NOT NULL DEFAULT 9,
				words_per_day INTEGER NOT NULL DEFAULT 10,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`},
		{"word_records", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS word_records (
				id %s,
				learner_id TEXT NOT NULL,
				language TEXT NOT NULL,
				lemma TEXT NOT NULL,
				surface_form TEXT NOT NULL DEFAULT '',
				easiness_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
				repetitions INTEGER NOT NULL DEFAULT 0,
				interval_days DOUBLE PRECISION NOT NULL DEFAULT 0,
				next_review_at TIMESTAMP,
				status TEXT NOT NULL DEFAULT 'new',
				times_seen INTEGER NOT NULL DEFAULT 0,
				times_rated INTEGER NOT NULL DEFAULT 0,
				frequency_rank INTEGER,
				part_of_speech TEXT,
				first_seen_at TIMESTAMP NOT NULL,
				last_seen_at TIMESTAMP NOT NULL,
				last_reviewed_at TIMESTAMP,
				UNIQUE(learner_id, language, lemma)
			)`, idColumn)},
		{"word_records due index", `
			CREATE INDEX IF NOT EXISTS idx_word_records_due
			ON word_records (learner_id, language, next_review_at)`},
		{"reference_words", `
			CREATE TABLE IF NOT EXISTS reference_words (
				language TEXT NOT NULL,
				lemma TEXT NOT NULL,
				frequency_rank INTEGER NOT NULL,
				part_of_speech TEXT,
				PRIMARY KEY (language, lemma)
			)`},
		{"stories", `
			CREATE TABLE IF NOT EXISTS stories (
				id TEXT PRIMARY KEY,
				learner_id TEXT NOT NULL,
				language TEXT NOT NULL,
				level TEXT NOT NULL DEFAULT '',
				topic TEXT NOT NULL DEFAULT '',
				text TEXT NOT NULL,
				policy TEXT NOT NULL DEFAULT '',
				known_words TEXT NOT NULL DEFAULT '[]',
				review_words TEXT NOT NULL DEFAULT '[]',
				new_words TEXT NOT NULL DEFAULT '[]',
				target_word_count INTEGER NOT NULL DEFAULT 0,
				valid BOOLEAN NOT NULL DEFAULT FALSE,
				validation_errors TEXT NOT NULL DEFAULT '[]',
				attempts INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL
			)`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.query); err != nil {
			return errors.Wrapf(err, "failed to create %s", stmt.name)
		}
	}
	return nil
}
