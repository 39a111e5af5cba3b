package spaced_repetition

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/example/lingoloop/pkg/models"
)

// ErrInvalidRating is returned for quality ratings outside 0..5.
var ErrInvalidRating = errors.New("spaced_repetition: invalid quality rating")

// QualityResponse represents the quality of a recall on the SM-2 0..5 scale
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Recalled, but only with serious difficulty
	QualityHard QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// IsValid reports whether q lies on the 0..5 scale.
func (q QualityResponse) IsValid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// SM2 implements a variant of the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// Интервал после провала, в днях (0.1 ≈ 2.4 часа)
	FailureInterval float64
	// Интервал после первого успешного ответа
	FirstInterval float64
	// Базовый интервал для роста, если у записи ещё нет интервала
	SecondInterval float64
	// Бонус к фактору лёгкости за идеальный ответ
	PerfectBonus float64
	// Пороги статусов
	KnownRepetitions    int
	MasteredRepetitions int
	MasteredEasiness    float64
}

// NewSM2 создает новый экземпляр SM2 с настройками по умолчанию
func NewSM2() *SM2 {
	return &SM2{
		FailureInterval:     0.1,
		FirstInterval:       1,
		SecondInterval:      6,
		PerfectBonus:        0.1,
		KnownRepetitions:    3,
		MasteredRepetitions: 8,
		MasteredEasiness:    2.2,
	}
}

var defaultSM2 = NewSM2()

// Advance applies one rating with the default SM2 settings.
func Advance(record models.WordRecord, quality QualityResponse, now time.Time) (models.WordRecord, error) {
	return defaultSM2.Advance(record, quality, now)
}

// Advance returns the record's state after a rating given at now.
// The input record is not modified.
func (sm *SM2) Advance(record models.WordRecord, quality QualityResponse, now time.Time) (models.WordRecord, error) {
	if !quality.IsValid() {
		return record, fmt.Errorf("%w: %d", ErrInvalidRating, int(quality))
	}

	ef, reps := sm.nextEasiness(record.EasinessFactor, record.Repetitions, quality)
	interval := sm.nextInterval(record.IntervalDays, reps, quality, ef)

	next := record
	next.EasinessFactor = round2(ef)
	next.Repetitions = reps
	next.IntervalDays = round2(interval)
	next.Status = sm.status(reps, next.EasinessFactor, quality)
	next.NextReviewAt = now.Add(days(next.IntervalDays))
	next.TimesRated++
	reviewed := now
	next.LastReviewedAt = &reviewed

	return next, nil
}

// nextEasiness computes the clamped easiness factor and repetition streak.
func (sm *SM2) nextEasiness(ef0 float64, reps0 int, quality QualityResponse) (float64, int) {
	var ef float64
	var reps int

	switch {
	case quality >= QualityCorrectDifficult:
		q := float64(quality)
		ef = ef0 + (0.1 - (5-q)*(0.08+(5-q)*0.02))
		if quality == QualityPerfect {
			ef += sm.PerfectBonus
		}
		reps = reps0 + 1
	case quality == QualityHard:
		// Counts toward the streak but costs easiness.
		ef = math.Max(models.MinEasinessFactor, ef0-0.15)
		reps = reps0 + 1
	default:
		ef = math.Max(models.MinEasinessFactor, ef0-0.2)
		reps = 0
	}

	return clamp(ef, models.MinEasinessFactor, models.MaxEasinessFactor), reps
}

// nextInterval returns the unrounded interval in days.
func (sm *SM2) nextInterval(previous float64, reps int, quality QualityResponse, ef float64) float64 {
	switch {
	case quality < QualityHard:
		return sm.FailureInterval
	case reps <= 1:
		return sm.FirstInterval
	default:
		base := previous
		if base <= 0 {
			base = sm.SecondInterval
		}
		return base * ef
	}
}

func (sm *SM2) status(reps int, ef float64, quality QualityResponse) models.Status {
	switch {
	case quality < QualityHard || reps <= 1:
		return models.StatusLearning
	case reps >= sm.MasteredRepetitions && ef >= sm.MasteredEasiness:
		return models.StatusMastered
	case reps >= sm.KnownRepetitions:
		return models.StatusKnown
	default:
		return models.StatusLearning
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func days(d float64) time.Duration {
	return time.Duration(math.Round(d * float64(24*time.Hour)))
}
