package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/example/lingoloop/internal/ai"
	"github.com/example/lingoloop/internal/config"
	"github.com/example/lingoloop/internal/database"
	"github.com/example/lingoloop/internal/excel"
	"github.com/example/lingoloop/internal/lesson"
	"github.com/example/lingoloop/internal/lexicon"
	"github.com/example/lingoloop/internal/logger"
	"github.com/example/lingoloop/internal/notify"
	"github.com/example/lingoloop/internal/scheduler"
	"github.com/example/lingoloop/internal/selection"
	"github.com/example/lingoloop/internal/spaced_repetition"
	"github.com/example/lingoloop/pkg/models"
)

// app holds what every command needs once config is loaded
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *sqlx.DB
	normalizer *lexicon.BasicNormalizer
	words      *database.WordRecordRepository
	references *database.ReferenceRepository
	stories    *database.StoryRepository
	learners   *database.LearnerRepository
}

type rootOptions struct {
	envFile  string
	language string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var a *app

	root := &cobra.Command{
		Use:          "lingoloop",
		Short:        "Spaced-repetition vocabulary scheduling and story generation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = openApp(opts)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVarP(&opts.language, "language", "l", "", "target language code (defaults to LINGOLOOP_LANGUAGE)")

	appFn := func() *app { return a }
	root.AddCommand(
		newServeCmd(appFn),
		newImportCmd(appFn),
		newLearnerCmd(appFn),
		newReviewCmd(appFn),
		newStoryCmd(appFn),
		newRankCmd(appFn),
		newStatsCmd(appFn),
	)
	return root
}

func openApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.language != "" {
		cfg.Language = opts.language
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Debug("Database ready", "driver", cfg.Database.Driver)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		normalizer: lexicon.NewBasicNormalizer(),
		words:      database.NewWordRecordRepository(db),
		references: database.NewReferenceRepository(db),
		stories:    database.NewStoryRepository(db),
		learners:   database.NewLearnerRepository(db),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database", "error", err)
	}
	a.log.Sync()
}

// service builds the lesson service. The generator is optional for commands
// that never compose stories.
func (a *app) service(needGenerator bool) (*lesson.Service, error) {
	var gen lesson.Generator
	chatGPT, err := ai.New(a.cfg.OpenAI, a.log)
	switch {
	case err == nil:
		gen = chatGPT
	case needGenerator:
		return nil, err
	}

	seed := a.cfg.Selection.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return lesson.NewService(lesson.Deps{
		Words:       a.words,
		References:  a.references,
		Stories:     a.stories,
		Generator:   gen,
		Selector:    selection.NewEngine(rand.NewSource(seed)),
		Normalizer:  a.normalizer,
		Logger:      a.log,
		MaxAttempts: a.cfg.Selection.MaxGenerationAttempts,
	}), nil
}

func newServeCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the due-review reminder scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := a()

			var notifier scheduler.Notifier
			if app.cfg.Telegram.Token != "" {
				tg, err := notify.NewTelegram(app.cfg.Telegram.Token, app.log)
				if err != nil {
					return err
				}
				notifier = tg
			} else {
				app.log.Warn("No Telegram token configured, reminders go to the log only")
				notifier = notify.NewLog(app.log)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := scheduler.New(app.cfg.Reminders, app.learners, app.words, notifier, app.log)
			if err := s.Start(ctx); err != nil {
				return err
			}
			app.log.Info("Reminder scheduler started. Press Ctrl+C to stop.",
				"every", app.cfg.Reminders.Every.String(),
				"window", fmt.Sprintf("%02d:00-%02d:59 UTC", app.cfg.Reminders.StartHour, app.cfg.Reminders.EndHour))

			<-ctx.Done()
			s.Stop()
			app.log.Info("Reminder scheduler stopped")
			return nil
		},
	}
}

func newImportCmd(a func() *app) *cobra.Command {
	cfg := excel.DefaultImportConfig()
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a frequency-ordered reference vocabulary from .xlsx or .csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			cfg.FilePath = args[0]
			cfg.Language = app.cfg.Language

			result, err := excel.NewImporter(app.references, app.normalizer).ImportWords(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d rows: %d imported, %d skipped\n",
				result.TotalProcessed, result.Imported, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.SheetName, "sheet", "", "sheet to read (default: the active sheet)")
	cmd.Flags().StringVar(&cfg.LemmaColumn, "lemma-col", cfg.LemmaColumn, "column holding the word")
	cmd.Flags().StringVar(&cfg.RankColumn, "rank-col", cfg.RankColumn, "column holding the frequency rank; empty uses row order")
	cmd.Flags().StringVar(&cfg.PartOfSpeechColumn, "pos-col", cfg.PartOfSpeechColumn, "column holding the part of speech; empty to ignore")
	cmd.Flags().IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "first data row (1-based)")
	return cmd
}

func newLearnerCmd(a func() *app) *cobra.Command {
	var (
		chatID      int64
		hour        int
		wordsPerDay int
		disabled    bool
	)
	cmd := &cobra.Command{
		Use:   "learner <id>",
		Short: "Register a learner or update their reminder settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			ctx := cmd.Context()
			now := time.Now().UTC()

			// Existing learners only take the flags that were given
			fresh := false
			learner, err := app.learners.GetByID(ctx, args[0])
			switch {
			case errors.Is(err, database.ErrNotFound):
				learner = &models.Learner{ID: args[0], CreatedAt: now}
				fresh = true
			case err != nil:
				return err
			}

			flags := cmd.Flags()
			if fresh || flags.Changed("language") {
				learner.Language = app.cfg.Language
			}
			if fresh || flags.Changed("chat") {
				learner.TelegramChatID = chatID
			}
			if fresh || flags.Changed("hour") {
				learner.NotificationHour = hour
			}
			if fresh || flags.Changed("words-per-day") {
				learner.WordsPerDay = wordsPerDay
			}
			if fresh || flags.Changed("no-reminders") {
				learner.NotificationEnabled = !disabled
			}
			learner.UpdatedAt = now
			if err := app.learners.Upsert(ctx, learner); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Learner %s saved (reminders at %02d:00 UTC, enabled: %t)\n",
				learner.ID, learner.NotificationHour, learner.NotificationEnabled)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "Telegram chat ID for reminders")
	cmd.Flags().IntVar(&hour, "hour", 9, "hour of day (UTC) to send reminders")
	cmd.Flags().IntVar(&wordsPerDay, "words-per-day", 10, "largest number of words announced per reminder")
	cmd.Flags().BoolVar(&disabled, "no-reminders", false, "disable reminders")
	return cmd
}

func newReviewCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review <learner> <word> <rating 0-5>",
		Short: "Record how well a learner recalled a word",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			rating, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("rating must be a number from 0 to 5: %w", err)
			}

			svc, err := app.service(false)
			if err != nil {
				return err
			}
			rec, err := svc.RecordRating(cmd.Context(), args[0], app.cfg.Language, args[1], spaced_repetition.QualityResponse(rating))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, next review in %.2f days (%s), easiness %.2f\n",
				rec.Lemma, rec.Status, rec.IntervalDays, rec.NextReviewAt.Format(time.RFC3339), rec.EasinessFactor)
			return nil
		},
	}
}

func newStoryCmd(a func() *app) *cobra.Command {
	var (
		words    int
		fraction float64
		level    string
		topic    string
		noReview bool
	)
	cmd := &cobra.Command{
		Use:   "story <learner>",
		Short: "Generate a reading passage from the learner's vocabulary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			sel := app.cfg.Selection
			params := models.GenerationParams{
				TargetWordCount:  sel.TargetWordCount,
				NewWordFraction:  sel.NewWordFraction,
				PrioritizeReview: sel.PrioritizeReview && !noReview,
				Level:            sel.Level,
				Topic:            topic,
			}
			if cmd.Flags().Changed("words") {
				params.TargetWordCount = words
			}
			if cmd.Flags().Changed("new-fraction") {
				params.NewWordFraction = fraction
			}
			if level != "" {
				params.Level = models.ProficiencyLevel(strings.ToUpper(level))
			}

			svc, err := app.service(true)
			if err != nil {
				return err
			}
			story, err := svc.ComposeStory(cmd.Context(), args[0], app.cfg.Language, params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, story.Text)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "story %s (%s): %d new, %d review, %d known words; %d attempt(s)\n",
				story.ID, story.Selection.Policy, len(story.Selection.NewWords),
				len(story.Selection.ReviewWords), len(story.Selection.KnownWords), story.Attempts)
			if len(story.Selection.NewWords) > 0 {
				fmt.Fprintf(out, "new: %s\n", strings.Join(story.Selection.NewWords, ", "))
			}
			for _, e := range story.ValidationErrors {
				fmt.Fprintf(out, "warning: %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&words, "words", "n", 0, "target word count (default from config)")
	cmd.Flags().Float64Var(&fraction, "new-fraction", 0, "share of new words, 0-1 (default from config)")
	cmd.Flags().StringVar(&level, "level", "", "CEFR level A1-C2 (default from config)")
	cmd.Flags().StringVar(&topic, "topic", "", "optional topic")
	cmd.Flags().BoolVar(&noReview, "no-review", false, "do not prioritize due words")
	return cmd
}

func newRankCmd(a func() *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank <learner>",
		Short: "List due words, most urgent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			svc, err := app.service(false)
			if err != nil {
				return err
			}
			due, err := svc.RankDue(cmd.Context(), args[0], app.cfg.Language, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(due) == 0 {
				fmt.Fprintln(out, "Nothing to review.")
				return nil
			}
			now := time.Now().UTC()
			for i, r := range due {
				fmt.Fprintf(out, "%3d. %-20s %-9s overdue %s\n",
					i+1, r.Lemma, r.Status, now.Sub(r.NextReviewAt).Round(time.Minute))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of words (0 for all)")
	return cmd
}

func newStatsCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <learner>",
		Short: "Show a learner's vocabulary statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			svc, err := app.service(false)
			if err != nil {
				return err
			}
			stats, err := svc.Stats(cmd.Context(), args[0], app.cfg.Language)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Words: %d (new %d, learning %d, known %d, mastered %d)\nDue now: %d\nAverage easiness: %.2f\n",
				stats.Total, stats.New, stats.Learning, stats.Known, stats.Mastered, stats.Due, stats.AverageEasiness)
			return nil
		},
	}
}
