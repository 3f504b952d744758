package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/tutorcore/internal/cefr"
	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/internal/pronunciation"
	"github.com/example/tutorcore/internal/strategy"
	"github.com/example/tutorcore/pkg/models"
)

const (
	maxProblemItems = 10
	recentSessions  = 10
)

// KnowledgeStore is the read side of the knowledge item store
type KnowledgeStore interface {
	GetAll(ctx context.Context, kind models.ItemKind, userID int64) ([]models.KnowledgeItem, error)
	CountDueSince(ctx context.Context, kind models.ItemKind, userID int64, now time.Time) (int, error)
}

// SessionHistory reads finished sessions
type SessionHistory interface {
	strategy.SessionHistory
	Recent(ctx context.Context, userID int64, limit int) ([]models.SessionRecord, error)
}

// BookStore returns the learner's current book, nil when there is none
type BookStore interface {
	Current(ctx context.Context, userID int64) (*models.BookProgress, error)
}

// Assembler builds knowledge snapshots
type Assembler struct {
	knowledge     KnowledgeStore
	catalog       cefr.Catalog
	pronunciation strategy.PronunciationHistory
	sessions      SessionHistory
	books         BookStore
	clock         clock.Clock
}

// NewAssembler creates a snapshot assembler
func NewAssembler(knowledge KnowledgeStore, catalog cefr.Catalog, pron strategy.PronunciationHistory, sessions SessionHistory, books BookStore, clk clock.Clock) *Assembler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Assembler{
		knowledge:     knowledge,
		catalog:       catalog,
		pronunciation: pron,
		sessions:      sessions,
		books:         books,
		clock:         clk,
	}
}

// Assemble reads everything known about a user into one snapshot. It only reads,
// so a cancelled context leaves nothing behind; cancellation is checked between dimensions.
func (a *Assembler) Assemble(ctx context.Context, userID int64) (models.KnowledgeSnapshot, error) {
	now := a.clock.Now()
	snap := models.KnowledgeSnapshot{UserID: userID, GeneratedAt: now}

	words, err := a.catalog.ListWords(ctx)
	if err != nil {
		return models.KnowledgeSnapshot{}, fmt.Errorf("failed to list catalog words: %w", err)
	}
	rules, err := a.catalog.ListRules(ctx)
	if err != nil {
		return models.KnowledgeSnapshot{}, fmt.Errorf("failed to list catalog rules: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return models.KnowledgeSnapshot{}, err
	}
	wordItems, err := a.vocabulary(ctx, userID, now, words, &snap)
	if err != nil {
		return models.KnowledgeSnapshot{}, err
	}

	if err := ctx.Err(); err != nil {
		return models.KnowledgeSnapshot{}, err
	}
	ruleItems, err := a.grammar(ctx, userID, now, rules, &snap)
	if err != nil {
		return models.KnowledgeSnapshot{}, err
	}

	if err := ctx.Err(); err != nil {
		return models.KnowledgeSnapshot{}, err
	}
	attempts, err := a.pronunciation.RecentAttempts(ctx, userID, strategy.PronunciationAttemptWindow)
	if err != nil {
		return models.KnowledgeSnapshot{}, fmt.Errorf("failed to get pronunciation attempts: %w", err)
	}
	snap.Pronunciation = models.PronunciationSnapshot{
		OverallScore:  pronunciation.OverallScore(attempts),
		Attempts:      len(attempts),
		ProblemSounds: pronunciation.ProblemSounds(attempts),
	}

	snap.Level = cefr.Compute(words, rules, cefr.KnownSubjects(wordItems), cefr.KnownSubjects(ruleItems))

	if err := ctx.Err(); err != nil {
		return models.KnowledgeSnapshot{}, err
	}
	if err := a.history(ctx, userID, &snap); err != nil {
		return models.KnowledgeSnapshot{}, err
	}

	snap.WeakPoints = weakPoints(wordItems, ruleItems, words, rules, attempts)

	lastPron, err := a.sessions.LastSessionWith(ctx, userID, strategy.PronunciationStrategies)
	if err != nil {
		return models.KnowledgeSnapshot{}, fmt.Errorf("failed to get pronunciation sessions: %w", err)
	}
	snap.Recommended = strategy.Decide(strategy.Signals{
		DueWordCount:           snap.Vocabulary.DueToday,
		DueRuleCount:           snap.Grammar.DueToday,
		WeakPointCount:         len(snap.WeakPoints),
		VocabSubLevel:          strategy.SubLevel(strategy.Score(snap.Vocabulary.Known, len(words), len(wordItems))),
		GrammarSubLevel:        strategy.SubLevel(strategy.Score(snap.Grammar.Known, len(rules), len(ruleItems))),
		DaysSincePronunciation: strategy.DaysSince(lastPron, now),
	})

	return snap, nil
}

func (a *Assembler) vocabulary(ctx context.Context, userID int64, now time.Time, words []models.Word, snap *models.KnowledgeSnapshot) ([]models.KnowledgeItem, error) {
	items, err := a.knowledge.GetAll(ctx, models.KindWord, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get word knowledge: %w", err)
	}
	due, err := a.knowledge.CountDueSince(ctx, models.KindWord, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count due words: %w", err)
	}
	phrases, err := a.knowledge.GetAll(ctx, models.KindPhrase, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get phrase knowledge: %w", err)
	}
	phrasesDue, err := a.knowledge.CountDueSince(ctx, models.KindPhrase, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count due phrases: %w", err)
	}

	bySubject := indexBySubject(items)
	labels := make(map[int64]string, len(words))
	v := models.VocabularySnapshot{
		Total:      len(words),
		Tracked:    len(items),
		ByLevel:    make([]int, models.MaxKnowledgeLevel+1),
		ByTopic:    make(map[string]models.Progress),
		DueToday:   due,
		PhrasesDue: phrasesDue,
	}
	for _, w := range words {
		labels[w.ID] = w.Text
		p := v.ByTopic[w.Topic]
		p.Total++
		if it, ok := bySubject[w.ID]; ok && it.IsKnown() {
			p.Known++
		}
		v.ByTopic[w.Topic] = p
	}
	for i := range items {
		it := &items[i]
		if it.KnowledgeLevel >= models.MinKnowledgeLevel && it.KnowledgeLevel <= models.MaxKnowledgeLevel {
			v.ByLevel[it.KnowledgeLevel]++
		}
		if it.IsKnown() {
			v.Known++
		}
		if it.IsActive() {
			v.Active++
		}
		if it.IsMastered() {
			v.Mastered++
		}
	}
	for i := range phrases {
		if phrases[i].IsKnown() {
			v.PhrasesKnown++
		}
	}
	v.ProblemWords = problemItems(items, labels)

	snap.Vocabulary = v
	return items, nil
}

func (a *Assembler) grammar(ctx context.Context, userID int64, now time.Time, rules []models.GrammarRule, snap *models.KnowledgeSnapshot) ([]models.KnowledgeItem, error) {
	items, err := a.knowledge.GetAll(ctx, models.KindRule, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule knowledge: %w", err)
	}
	due, err := a.knowledge.CountDueSince(ctx, models.KindRule, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count due rules: %w", err)
	}

	bySubject := indexBySubject(items)
	labels := make(map[int64]string, len(rules))
	g := models.GrammarSnapshot{
		Total:      len(rules),
		ByCategory: make(map[string]models.Progress),
		DueToday:   due,
	}
	for _, r := range rules {
		labels[r.ID] = r.Title
		p := g.ByCategory[r.Category]
		p.Total++
		if it, ok := bySubject[r.ID]; ok && it.IsKnown() {
			p.Known++
		}
		g.ByCategory[r.Category] = p
	}
	for i := range items {
		if items[i].IsKnown() {
			g.Known++
		}
	}
	g.ProblemRules = problemItems(items, labels)

	snap.Grammar = g
	return items, nil
}

func (a *Assembler) history(ctx context.Context, userID int64, snap *models.KnowledgeSnapshot) error {
	book, err := a.books.Current(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get book progress: %w", err)
	}
	if book != nil {
		snap.Book = models.BookSnapshot{
			Title:          book.Title,
			CurrentChapter: book.CurrentChapter,
			TotalChapters:  book.TotalChapters,
		}
		if book.TotalChapters > 0 {
			snap.Book.PercentDone = float64(book.CurrentChapter) / float64(book.TotalChapters) * 100
		}
	}

	sessions, err := a.sessions.Recent(ctx, userID, recentSessions)
	if err != nil {
		return fmt.Errorf("failed to get recent sessions: %w", err)
	}
	s := models.SessionsSnapshot{Count: len(sessions)}
	var reviewed, correct int
	var total time.Duration
	for i := range sessions {
		sess := &sessions[i]
		total += sess.Duration()
		reviewed += sess.ItemsReviewed
		correct += sess.CorrectCount
		if s.LastSessionAt == nil || sess.StartedAt.After(*s.LastSessionAt) {
			started := sess.StartedAt
			s.LastSessionAt = &started
			s.LastStrategy = sess.Strategy
		}
	}
	s.TotalMinutes = int(total.Minutes())
	if reviewed > 0 {
		s.AverageAccuracy = float64(correct) / float64(reviewed)
	}
	snap.Sessions = s
	return nil
}

func indexBySubject(items []models.KnowledgeItem) map[int64]*models.KnowledgeItem {
	out := make(map[int64]*models.KnowledgeItem, len(items))
	for i := range items {
		out[items[i].SubjectID] = &items[i]
	}
	return out
}

// problemItems returns problem items, lowest accuracy first
func problemItems(items []models.KnowledgeItem, labels map[int64]string) []models.ProblemItem {
	var out []models.ProblemItem
	for i := range items {
		it := &items[i]
		if !it.IsProblem() {
			continue
		}
		out = append(out, models.ProblemItem{
			SubjectID:      it.SubjectID,
			Label:          labels[it.SubjectID],
			TimesSeen:      it.TimesSeen,
			TimesIncorrect: it.TimesIncorrect,
			Accuracy:       it.Accuracy(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Accuracy != out[j].Accuracy {
			return out[i].Accuracy < out[j].Accuracy
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	if len(out) > maxProblemItems {
		out = out[:maxProblemItems]
	}
	return out
}

// weakPoints lists weak items as "word:<text>", "rule:<title>" and "sound:<sound>"
func weakPoints(wordItems, ruleItems []models.KnowledgeItem, words []models.Word, rules []models.GrammarRule, attempts []models.PronunciationAttempt) []string {
	wordLabels := make(map[int64]string, len(words))
	for _, w := range words {
		wordLabels[w.ID] = w.Text
	}
	ruleLabels := make(map[int64]string, len(rules))
	for _, r := range rules {
		ruleLabels[r.ID] = r.Title
	}

	out := []string{}
	add := func(prefix string, items []models.KnowledgeItem, labels map[int64]string) {
		for i := range items {
			if !items[i].IsWeakPoint() {
				continue
			}
			label, ok := labels[items[i].SubjectID]
			if !ok || label == "" {
				label = fmt.Sprintf("#%d", items[i].SubjectID)
			}
			out = append(out, prefix+":"+label)
		}
	}
	add("word", wordItems, wordLabels)
	add("rule", ruleItems, ruleLabels)
	for _, s := range pronunciation.WeakSounds(attempts) {
		out = append(out, "sound:"+s)
	}
	return out
}
