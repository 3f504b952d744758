package strategy

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/internal/pronunciation"
	"github.com/example/tutorcore/pkg/models"
)

// Rule thresholds
const (
	DueItemsThreshold   = 10
	WeakPointsThreshold = 5
	// SubLevelGapThreshold is the allowed gap between vocabulary and grammar sub-levels
	SubLevelGapThreshold = 2
	// SubLevelScale converts a 0..1 score into sub-level units. Heuristic, not a CEFR mapping.
	SubLevelScale = 60
	// PronunciationGapDays is how long a learner may go without pronunciation work
	PronunciationGapDays = 3
	// NoHistoryDays stands in for "never" when there is no pronunciation session
	NoHistoryDays = 999

	// PronunciationAttemptWindow is how many recent attempts are analyzed
	PronunciationAttemptWindow = 200
)

// Signals are the aggregate inputs of the rule chain
type Signals struct {
	DueWordCount           int
	DueRuleCount           int
	WeakPointCount         int
	VocabSubLevel          int
	GrammarSubLevel        int
	DaysSincePronunciation int
}

// SubLevel converts a 0..1 score to sub-level units
func SubLevel(score float64) int {
	return int(math.Round(score * SubLevelScale))
}

// Fallback is returned whenever the signals cannot be gathered
func Fallback() models.Recommendation {
	return models.Recommendation{
		Primary:   models.StrategyLinearBook,
		Secondary: models.StrategyRepetition,
		Reason:    "Knowledge data unavailable, continuing with the book",
	}
}

// Decide runs the rule chain; the first matching rule wins
func Decide(s Signals) models.Recommendation {
	if due := s.DueWordCount + s.DueRuleCount; due > DueItemsThreshold {
		return models.Recommendation{
			Primary:   models.StrategyRepetition,
			Secondary: models.StrategyLinearBook,
			Reason:    fmt.Sprintf("%d items are due for review", due),
		}
	}

	if s.WeakPointCount > WeakPointsThreshold {
		return models.Recommendation{
			Primary:   models.StrategyGapFilling,
			Secondary: models.StrategyLinearBook,
			Reason:    fmt.Sprintf("%d weak points need attention", s.WeakPointCount),
		}
	}

	if gap := s.VocabSubLevel - s.GrammarSubLevel; abs(gap) > SubLevelGapThreshold {
		if gap < 0 {
			return models.Recommendation{
				Primary:   models.StrategyVocabularyBoost,
				Secondary: models.StrategyLinearBook,
				Reason:    fmt.Sprintf("Vocabulary (%d) lags behind grammar (%d)", s.VocabSubLevel, s.GrammarSubLevel),
			}
		}
		return models.Recommendation{
			Primary:   models.StrategyGrammarDrill,
			Secondary: models.StrategyLinearBook,
			Reason:    fmt.Sprintf("Grammar (%d) lags behind vocabulary (%d)", s.GrammarSubLevel, s.VocabSubLevel),
		}
	}

	if s.DaysSincePronunciation > PronunciationGapDays {
		reason := fmt.Sprintf("No pronunciation practice for %d days", s.DaysSincePronunciation)
		if s.DaysSincePronunciation >= NoHistoryDays {
			reason = "No pronunciation practice yet"
		}
		return models.Recommendation{
			Primary:   models.StrategyPronunciation,
			Secondary: models.StrategyLinearBook,
			Reason:    reason,
		}
	}

	return models.Recommendation{
		Primary:   models.StrategyLinearBook,
		Secondary: models.StrategyRepetition,
		Reason:    "Balanced progress, continuing with the book",
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// DaysSince returns the days between t and now with a started day counted as
// a whole one, so t lies within the last n days exactly when DaysSince <= n.
// It is NoHistoryDays when t is nil.
func DaysSince(t *time.Time, now time.Time) int {
	if t == nil {
		return NoHistoryDays
	}
	if !now.After(*t) {
		return 0
	}
	return int(math.Ceil(now.Sub(*t).Hours() / 24))
}

// KnowledgeStore is the part of the knowledge store the selector reads
type KnowledgeStore interface {
	GetAll(ctx context.Context, kind models.ItemKind, userID int64) ([]models.KnowledgeItem, error)
	CountDueSince(ctx context.Context, kind models.ItemKind, userID int64, now time.Time) (int, error)
}

// Catalog counts catalog entries
type Catalog interface {
	CountWords(ctx context.Context) (int, error)
	CountRules(ctx context.Context) (int, error)
}

// PronunciationHistory returns a user's latest pronunciation attempts
type PronunciationHistory interface {
	RecentAttempts(ctx context.Context, userID int64, limit int) ([]models.PronunciationAttempt, error)
}

// SessionHistory finds the start of the latest session that used one of the strategies
type SessionHistory interface {
	LastSessionWith(ctx context.Context, userID int64, strategies []models.Strategy) (*time.Time, error)
}

// PronunciationStrategies are the strategies that count as pronunciation practice
var PronunciationStrategies = []models.Strategy{models.StrategyPronunciation, models.StrategyShadowing}

// Selector gathers signals for a user and picks the next strategy
type Selector struct {
	knowledge     KnowledgeStore
	catalog       Catalog
	pronunciation PronunciationHistory
	sessions      SessionHistory
	clock         clock.Clock
}

// NewSelector creates a strategy selector
func NewSelector(knowledge KnowledgeStore, catalog Catalog, pron PronunciationHistory, sessions SessionHistory, clk clock.Clock) *Selector {
	if clk == nil {
		clk = clock.Real()
	}
	return &Selector{
		knowledge:     knowledge,
		catalog:       catalog,
		pronunciation: pron,
		sessions:      sessions,
		clock:         clk,
	}
}

// Select returns the strategy recommendation for a user
func (s *Selector) Select(ctx context.Context, userID int64) (models.Recommendation, error) {
	signals, err := s.Signals(ctx, userID)
	if err != nil {
		return Fallback(), err
	}
	return Decide(signals), nil
}

// Recommend is Select that never fails: errors are logged and the fallback is returned
func (s *Selector) Recommend(ctx context.Context, userID int64) models.Recommendation {
	rec, err := s.Select(ctx, userID)
	if err != nil {
		log.Printf("Error selecting strategy for user %d, using %s: %v", userID, rec.Primary, err)
	}
	return rec
}

// Signals gathers the rule chain inputs for a user
func (s *Selector) Signals(ctx context.Context, userID int64) (Signals, error) {
	now := s.clock.Now()
	var sig Signals
	var err error

	if sig.DueWordCount, err = s.knowledge.CountDueSince(ctx, models.KindWord, userID, now); err != nil {
		return Signals{}, fmt.Errorf("failed to count due words: %w", err)
	}
	if sig.DueRuleCount, err = s.knowledge.CountDueSince(ctx, models.KindRule, userID, now); err != nil {
		return Signals{}, fmt.Errorf("failed to count due rules: %w", err)
	}

	words, err := s.knowledge.GetAll(ctx, models.KindWord, userID)
	if err != nil {
		return Signals{}, fmt.Errorf("failed to get words: %w", err)
	}
	rules, err := s.knowledge.GetAll(ctx, models.KindRule, userID)
	if err != nil {
		return Signals{}, fmt.Errorf("failed to get rules: %w", err)
	}
	attempts, err := s.pronunciation.RecentAttempts(ctx, userID, PronunciationAttemptWindow)
	if err != nil {
		return Signals{}, fmt.Errorf("failed to get pronunciation attempts: %w", err)
	}
	sig.WeakPointCount = countWeak(words) + countWeak(rules) + len(pronunciation.WeakSounds(attempts))

	totalWords, err := s.catalog.CountWords(ctx)
	if err != nil {
		return Signals{}, fmt.Errorf("failed to count catalog words: %w", err)
	}
	totalRules, err := s.catalog.CountRules(ctx)
	if err != nil {
		return Signals{}, fmt.Errorf("failed to count catalog rules: %w", err)
	}
	sig.VocabSubLevel = SubLevel(Score(countKnown(words), totalWords, len(words)))
	sig.GrammarSubLevel = SubLevel(Score(countKnown(rules), totalRules, len(rules)))

	last, err := s.sessions.LastSessionWith(ctx, userID, PronunciationStrategies)
	if err != nil {
		return Signals{}, fmt.Errorf("failed to get session history: %w", err)
	}
	sig.DaysSincePronunciation = DaysSince(last, now)

	return sig, nil
}

// Ratio returns part/total, 0 when total is 0
func Ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(part) / float64(total)
	if r > 1 {
		r = 1
	}
	return r
}

// Score is the known share of a dimension. Items tracked outside the catalog
// still count toward the total.
func Score(known, catalogTotal, tracked int) float64 {
	total := catalogTotal
	if tracked > total {
		total = tracked
	}
	return Ratio(known, total)
}

func countWeak(items []models.KnowledgeItem) int {
	n := 0
	for i := range items {
		if items[i].IsWeakPoint() {
			n++
		}
	}
	return n
}

func countKnown(items []models.KnowledgeItem) int {
	n := 0
	for i := range items {
		if items[i].IsKnown() {
			n++
		}
	}
	return n
}
