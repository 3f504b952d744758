package pronunciation

import (
	"sort"

	"github.com/example/tutorcore/pkg/models"
)

const (
	// ProblemThreshold marks a sound as a problem in the snapshot
	ProblemThreshold = 0.7

	// A sound is a weak point when its average stays below WeakThreshold
	// after more than WeakMinAttempts attempts without improving
	WeakThreshold   = 0.5
	WeakMinAttempts = 5
)

// SoundStats is the per-sound aggregate of a set of attempts
type SoundStats struct {
	Sound    string
	Average  float64
	Attempts int
	// Trend is the newer half's average minus the older half's
	Trend float64
}

// Improving reports whether later attempts score higher than earlier ones
func (s SoundStats) Improving() bool { return s.Trend > 0 }

// OverallScore averages the weighted score over all attempts, 0 when empty
func OverallScore(attempts []models.PronunciationAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	sum := 0.0
	for i := range attempts {
		sum += attempts[i].Score()
	}
	return sum / float64(len(attempts))
}

// GroupBySound aggregates attempts per sound, sorted by average ascending
func GroupBySound(attempts []models.PronunciationAttempt) []SoundStats {
	bySound := make(map[string][]models.PronunciationAttempt)
	var order []string
	for _, a := range attempts {
		if a.Sound == "" {
			continue
		}
		if _, ok := bySound[a.Sound]; !ok {
			order = append(order, a.Sound)
		}
		bySound[a.Sound] = append(bySound[a.Sound], a)
	}

	stats := make([]SoundStats, 0, len(order))
	for _, sound := range order {
		group := bySound[sound]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		stats = append(stats, SoundStats{
			Sound:    sound,
			Average:  OverallScore(group),
			Attempts: len(group),
			Trend:    trend(group),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Average != stats[j].Average {
			return stats[i].Average < stats[j].Average
		}
		return stats[i].Sound < stats[j].Sound
	})
	return stats
}

func trend(chronological []models.PronunciationAttempt) float64 {
	if len(chronological) < 2 {
		return 0
	}
	mid := len(chronological) / 2
	return OverallScore(chronological[len(chronological)-mid:]) - OverallScore(chronological[:mid])
}

// ProblemSounds returns sounds averaging below ProblemThreshold, worst first
func ProblemSounds(attempts []models.PronunciationAttempt) []models.SoundScore {
	var out []models.SoundScore
	for _, s := range GroupBySound(attempts) {
		if s.Average < ProblemThreshold {
			out = append(out, models.SoundScore{Sound: s.Sound, Score: s.Average, Attempts: s.Attempts})
		}
	}
	return out
}

// WeakSounds returns the sounds that count as weak points
func WeakSounds(attempts []models.PronunciationAttempt) []string {
	var out []string
	for _, s := range GroupBySound(attempts) {
		if s.Average < WeakThreshold && s.Attempts > WeakMinAttempts && !s.Improving() {
			out = append(out, s.Sound)
		}
	}
	return out
}
