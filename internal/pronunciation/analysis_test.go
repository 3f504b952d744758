package pronunciation

import (
	"math"
	"testing"
	"time"

	"github.com/example/tutorcore/pkg/models"
)

var base = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

// attempt builds an attempt whose weighted score equals s (stress wrong)
func attempt(sound string, s float64, minute int) models.PronunciationAttempt {
	v := s / 0.85
	return models.PronunciationAttempt{
		Sound:             sound,
		Intelligibility:   v,
		SegmentalAccuracy: v,
		Intonation:        v,
		Fluency:           v,
		CreatedAt:         base.Add(time.Duration(minute) * time.Minute),
	}
}

func TestScoreWeights(t *testing.T) {
	a := models.PronunciationAttempt{
		Intelligibility:   1,
		SegmentalAccuracy: 0.5,
		StressCorrect:     true,
		Intonation:        0.2,
		Fluency:           0.4,
	}
	want := 0.3*1 + 0.3*0.5 + 0.15*1 + 0.15*0.2 + 0.1*0.4
	if got := a.Score(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("Score() = %v, want %v", got, want)
	}
}

func TestOverallScoreEmpty(t *testing.T) {
	if got := OverallScore(nil); got != 0 {
		t.Fatalf("OverallScore(nil) = %v, want 0", got)
	}
}

func TestProblemSoundsSortedAscending(t *testing.T) {
	attempts := []models.PronunciationAttempt{
		attempt("th", 0.4, 1),
		attempt("r", 0.9, 2),
		attempt("w", 0.6, 3),
		attempt("th", 0.6, 4),
		attempt("r", 0.8, 5),
	}
	got := ProblemSounds(attempts)
	if len(got) != 2 {
		t.Fatalf("ProblemSounds = %+v, want 2 sounds", got)
	}
	if got[0].Sound != "th" || got[1].Sound != "w" {
		t.Fatalf("order = %s,%s, want th,w", got[0].Sound, got[1].Sound)
	}
	if math.Abs(got[0].Score-0.5) > 1e-9 || got[0].Attempts != 2 {
		t.Fatalf("th = %+v, want score 0.5 over 2 attempts", got[0])
	}
}

func TestWeakSounds(t *testing.T) {
	var attempts []models.PronunciationAttempt
	// "th": 6 flat low attempts -> weak
	for i := 0; i < 6; i++ {
		attempts = append(attempts, attempt("th", 0.3, i))
	}
	// "r": low but improving -> not weak
	for i, s := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6} {
		attempts = append(attempts, attempt("r", s, 10+i))
	}
	// "w": low but too few attempts -> not weak
	for i := 0; i < 5; i++ {
		attempts = append(attempts, attempt("w", 0.2, 20+i))
	}

	got := WeakSounds(attempts)
	if len(got) != 1 || got[0] != "th" {
		t.Fatalf("WeakSounds = %v, want [th]", got)
	}
}
