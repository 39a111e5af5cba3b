package models

import "time"

// Learner is a person studying one target language.
type Learner struct {
	ID                  string    `json:"id" db:"id"`
	Language            string    `json:"language" db:"language"`
	TelegramChatID      int64     `json:"telegram_chat_id" db:"telegram_chat_id"`
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // Hour of day for reminders (0-23)
	WordsPerDay         int       `json:"words_per_day" db:"words_per_day"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
