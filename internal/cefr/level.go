package cefr

import (
	"math"

	"github.com/example/tutorcore/pkg/models"
)

// Levels lists CEFR levels from lowest to highest
var Levels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

const (
	// BeginnerLevel is reported while A1 is not yet confirmed
	BeginnerLevel = "A0"

	VocabThreshold   = 0.7
	GrammarThreshold = 0.6

	MinSubLevel = 1
	MaxSubLevel = 10
)

// LevelScore is the share of a level's catalog items the learner knows
type LevelScore struct {
	Level   string
	Vocab   float64
	Grammar float64
}

// Confirmed reports whether the learner has passed this level
func (s LevelScore) Confirmed() bool {
	return s.Vocab >= VocabThreshold && s.Grammar >= GrammarThreshold
}

// Scores computes per-level scores. known* hold the subject ids of known items.
func Scores(words []models.Word, rules []models.GrammarRule, knownWords, knownRules map[int64]bool) []LevelScore {
	type counter struct{ known, total int }
	wordCounts := make(map[string]*counter)
	ruleCounts := make(map[string]*counter)
	for _, lvl := range Levels {
		wordCounts[lvl] = &counter{}
		ruleCounts[lvl] = &counter{}
	}

	for _, w := range words {
		c, ok := wordCounts[w.CEFRLevel]
		if !ok {
			continue
		}
		c.total++
		if knownWords[w.ID] {
			c.known++
		}
	}
	for _, r := range rules {
		c, ok := ruleCounts[r.CEFRLevel]
		if !ok {
			continue
		}
		c.total++
		if knownRules[r.ID] {
			c.known++
		}
	}

	scores := make([]LevelScore, 0, len(Levels))
	for _, lvl := range Levels {
		scores = append(scores, LevelScore{
			Level:   lvl,
			Vocab:   ratio(wordCounts[lvl].known, wordCounts[lvl].total),
			Grammar: ratio(ruleCounts[lvl].known, ruleCounts[lvl].total),
		})
	}
	return scores
}

// Determine returns the highest level confirmed in order and the sub-level
// progress toward the next one
func Determine(scores []LevelScore) models.CEFRResult {
	confirmed := -1
	for i, s := range scores {
		if !s.Confirmed() {
			break
		}
		confirmed = i
	}

	result := models.CEFRResult{Level: BeginnerLevel}
	if confirmed >= 0 {
		result.Level = scores[confirmed].Level
	}

	next := confirmed + 1
	if next >= len(scores) {
		result.SubLevel = MaxSubLevel
		return result
	}
	s := scores[next]
	progress := math.Min(s.Vocab/VocabThreshold, s.Grammar/GrammarThreshold)
	result.SubLevel = clamp(int(math.Round(progress*10)), MinSubLevel, MaxSubLevel)
	return result
}

// Compute is Scores followed by Determine
func Compute(words []models.Word, rules []models.GrammarRule, knownWords, knownRules map[int64]bool) models.CEFRResult {
	return Determine(Scores(words, rules, knownWords, knownRules))
}

// KnownSubjects returns the subject ids of known items
func KnownSubjects(items []models.KnowledgeItem) map[int64]bool {
	out := make(map[int64]bool)
	for i := range items {
		if items[i].IsKnown() {
			out[items[i].SubjectID] = true
		}
	}
	return out
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
