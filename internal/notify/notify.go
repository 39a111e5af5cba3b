// Package notify delivers due-review reminders to learners.
package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lingoloop/internal/logger"
	"github.com/example/lingoloop/pkg/models"
)

// ErrNoChat is returned for learners without a linked Telegram chat.
var ErrNoChat = errors.New("notify: learner has no Telegram chat")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends reminders as bot messages.
type Telegram struct {
	api sender
	log *logger.Logger
}

// NewTelegram authorizes the bot token against the Telegram API.
func NewTelegram(token string, log *logger.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	log.Info("Authorized on Telegram", "account", api.Self.UserName)
	return &Telegram{api: api, log: log}, nil
}

// SendReminder implements the scheduler.Notifier interface
func (t *Telegram) SendReminder(_ context.Context, learner models.Learner, count int) error {
	if learner.TelegramChatID == 0 {
		return fmt.Errorf("%w: %s", ErrNoChat, learner.ID)
	}

	msg := tgbotapi.NewMessage(learner.TelegramChatID, ReminderText(count))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to %s: %w", learner.ID, err)
	}

	t.log.Info("Reminder sent", "learner", learner.ID, "count", count)
	return nil
}

// ReminderText is the reminder body for count due words.
func ReminderText(count int) string {
	noun := "words"
	if count == 1 {
		noun = "word"
	}
	return fmt.Sprintf("You have %d %s to review! Open a story to keep them fresh.", count, noun)
}

// Log only writes reminders to the log. It stands in for Telegram when no
// bot token is configured.
type Log struct {
	log *logger.Logger
}

// NewLog creates a log-only notifier.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log}
}

// SendReminder implements the scheduler.Notifier interface
func (l *Log) SendReminder(_ context.Context, learner models.Learner, count int) error {
	l.log.Info("Reminder", "learner", learner.ID, "count", count, "text", ReminderText(count))
	return nil
}
