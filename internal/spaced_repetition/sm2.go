package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/tutorcore/pkg/models"
)

// Day is the length of one scheduling day
const Day = 24 * time.Hour

// SM2 implements a SuperMemo-2 variant for knowledge items
type SM2 struct {
	// Пороговое значение "хорошего ответа"
	PassThreshold QualityResponse
	// Interval after a failed review, in days
	FailedInterval float64
	// Intervals for the first and second review, in days
	FirstInterval  float64
	SecondInterval float64
	// Interval multiplier after MasteryStreak perfect answers in a row
	MasteryBoost  float64
	MasteryStreak int
}

// NewSM2 создает новый экземпляр SM2 с настройками по умолчанию
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:  QualityCorrectDifficult,
		FailedInterval: 0.5,
		FirstInterval:  1,
		SecondInterval: 3,
		MasteryBoost:   1.5,
		MasteryStreak:  models.RecentQualityWindow,
	}
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// Valid reports whether q is inside [0,5]
func (q QualityResponse) Valid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// NextEaseFactor applies the SM-2 ease update, never going below models.MinEaseFactor
func NextEaseFactor(ef float64, quality QualityResponse) float64 {
	d := 5.0 - float64(quality)
	newEF := ef + (0.1 - d*(0.08+d*0.02))
	if newEF < models.MinEaseFactor {
		newEF = models.MinEaseFactor // Не опускаем ниже 1.3
	}
	return newEF
}

// Advance returns a copy of item updated for a review graded with quality at now.
// quality must already be validated by the caller.
func (sm *SM2) Advance(item models.KnowledgeItem, quality QualityResponse, now time.Time) models.KnowledgeItem {
	next := item.Clone()
	passed := quality >= sm.PassThreshold

	next.TimesSeen++
	if passed {
		next.TimesCorrect++
	} else {
		next.TimesIncorrect++
	}
	n := next.TimesSeen

	next.RecentQualities = append(next.RecentQualities, int(quality))
	if len(next.RecentQualities) > models.RecentQualityWindow {
		next.RecentQualities = next.RecentQualities[len(next.RecentQualities)-models.RecentQualityWindow:]
	}

	next.EaseFactor = NextEaseFactor(item.EaseFactor, quality)

	var interval float64
	switch {
	case !passed:
		// Failed review: short re-exposure
		interval = sm.FailedInterval
	case n == 1:
		interval = sm.FirstInterval
	case n == 2:
		interval = sm.SecondInterval
	default:
		interval = item.IntervalDays * next.EaseFactor
	}
	if sm.masteryStreak(next.RecentQualities) {
		interval *= sm.MasteryBoost
	}
	next.IntervalDays = interval

	if passed {
		next.KnowledgeLevel++
	} else {
		next.KnowledgeLevel--
	}
	next.KnowledgeLevel = clampLevel(next.KnowledgeLevel)

	reviewed := now
	next.LastReviewedAt = &reviewed
	due := now.Add(daysToDuration(interval))
	next.NextReviewAt = &due
	next.UpdatedAt = now

	return next
}

// masteryStreak reports whether the newest MasteryStreak grades are all perfect
func (sm *SM2) masteryStreak(recent []int) bool {
	if sm.MasteryStreak <= 0 || len(recent) < sm.MasteryStreak {
		return false
	}
	for _, q := range recent[len(recent)-sm.MasteryStreak:] {
		if q != int(QualityPerfect) {
			return false
		}
	}
	return true
}

func clampLevel(level int) int {
	if level < models.MinKnowledgeLevel {
		return models.MinKnowledgeLevel
	}
	if level > models.MaxKnowledgeLevel {
		return models.MaxKnowledgeLevel
	}
	return level
}

// daysToDuration converts fractional days to a duration rounded to the second
func daysToDuration(days float64) time.Duration {
	return time.Duration(math.Round(days*Day.Seconds())) * time.Second
}

// CalculateQuality определяет качество ответа на основе точности и подсказок.
// accuracy - точность ответа (0.0 - 1.0)
// hinted - пользователь получил подсказку
func CalculateQuality(accuracy float64, hinted bool) QualityResponse {
	if accuracy <= 0 {
		return QualityBlackout // Полностью неверный ответ
	}
	if accuracy > 1 {
		accuracy = 1
	}

	quality := QualityResponse(math.Round(accuracy * 5))
	if hinted && quality > QualityCorrectDifficult {
		quality = QualityCorrectDifficult
	}
	if quality < QualityIncorrect {
		quality = QualityIncorrect
	}
	return quality
}
