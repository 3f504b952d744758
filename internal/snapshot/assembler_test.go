package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/pkg/models"
)

var testNow = time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC)

type fakeKnowledge struct {
	items map[models.ItemKind][]models.KnowledgeItem
	err   error
	calls int
}

func (f *fakeKnowledge) GetAll(ctx context.Context, kind models.ItemKind, userID int64) ([]models.KnowledgeItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.KnowledgeItem(nil), f.items[kind]...), nil
}

func (f *fakeKnowledge) CountDueSince(ctx context.Context, kind models.ItemKind, userID int64, now time.Time) (int, error) {
	n := 0
	for _, it := range f.items[kind] {
		if it.NeedsReview(now) {
			n++
		}
	}
	return n, f.err
}

type fakeCatalog struct {
	words []models.Word
	rules []models.GrammarRule
}

func (f fakeCatalog) ListWords(ctx context.Context) ([]models.Word, error) { return f.words, nil }
func (f fakeCatalog) ListRules(ctx context.Context) ([]models.GrammarRule, error) { return f.rules, nil }

type fakePronunciation []models.PronunciationAttempt

func (f fakePronunciation) RecentAttempts(ctx context.Context, userID int64, limit int) ([]models.PronunciationAttempt, error) {
	return f, nil
}

type fakeSessions struct {
	records []models.SessionRecord
}

func (f fakeSessions) Recent(ctx context.Context, userID int64, limit int) ([]models.SessionRecord, error) {
	return f.records, nil
}

func (f fakeSessions) LastSessionWith(ctx context.Context, userID int64, strategies []models.Strategy) (*time.Time, error) {
	var last *time.Time
	for i := range f.records {
		for _, s := range strategies {
			if f.records[i].Strategy == s && (last == nil || f.records[i].StartedAt.After(*last)) {
				t := f.records[i].StartedAt
				last = &t
			}
		}
	}
	return last, nil
}

type fakeBooks struct{ book *models.BookProgress }

func (f fakeBooks) Current(ctx context.Context, userID int64) (*models.BookProgress, error) {
	return f.book, nil
}

func knowledge(kind models.ItemKind, subject int64, level, seen, correct int, due *time.Time) models.KnowledgeItem {
	it := models.NewKnowledgeItem("", 1, kind, subject, testNow)
	it.KnowledgeLevel = level
	it.TimesSeen = seen
	it.TimesCorrect = correct
	it.TimesIncorrect = seen - correct
	it.NextReviewAt = due
	return it
}

func TestAssembleNewUser(t *testing.T) {
	a := NewAssembler(&fakeKnowledge{}, fakeCatalog{}, fakePronunciation(nil), fakeSessions{}, fakeBooks{}, clock.NewFake(testNow))

	snap, err := a.Assemble(context.Background(), 1)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if snap.Vocabulary.Total != 0 || snap.Vocabulary.Known != 0 || len(snap.Vocabulary.ProblemWords) != 0 {
		t.Errorf("vocabulary not empty: %+v", snap.Vocabulary)
	}
	if len(snap.Vocabulary.ByLevel) != models.MaxKnowledgeLevel+1 {
		t.Errorf("ByLevel has %d buckets", len(snap.Vocabulary.ByLevel))
	}
	if snap.Grammar.Total != 0 || snap.Pronunciation.OverallScore != 0 || snap.Sessions.Count != 0 {
		t.Errorf("rollups not zeroed: %+v %+v %+v", snap.Grammar, snap.Pronunciation, snap.Sessions)
	}
	if snap.WeakPoints == nil || len(snap.WeakPoints) != 0 {
		t.Errorf("WeakPoints = %#v, want empty list", snap.WeakPoints)
	}
	if snap.Level.Level != "A0" {
		t.Errorf("Level = %+v, want A0", snap.Level)
	}
	if snap.Recommended.Primary != models.StrategyPronunciation {
		t.Errorf("Recommended = %+v, want PRONUNCIATION for a learner with no history", snap.Recommended)
	}
}

func TestAssembleRollups(t *testing.T) {
	yesterday := testNow.Add(-26 * time.Hour)
	overdue := testNow.Add(-72 * time.Hour)
	later := testNow.Add(72 * time.Hour)

	catalog := fakeCatalog{
		words: []models.Word{
			{ID: 1, Text: "apple", Topic: "food", CEFRLevel: "A1"},
			{ID: 2, Text: "bread", Topic: "food", CEFRLevel: "A1"},
			{ID: 3, Text: "train", Topic: "travel", CEFRLevel: "A1"},
			{ID: 4, Text: "ticket", Topic: "travel", CEFRLevel: "A2"},
		},
		rules: []models.GrammarRule{
			{ID: 10, Title: "Present Simple", Category: "tenses", CEFRLevel: "A1"},
			{ID: 11, Title: "Articles", Category: "determiners", CEFRLevel: "A1"},
		},
	}
	store := &fakeKnowledge{items: map[models.ItemKind][]models.KnowledgeItem{
		models.KindWord: {
			knowledge(models.KindWord, 1, 7, 10, 10, &later),
			knowledge(models.KindWord, 2, 5, 6, 5, &overdue),
			knowledge(models.KindWord, 3, 1, 4, 1, &overdue),
		},
		models.KindRule: {
			knowledge(models.KindRule, 10, 4, 5, 4, &later),
			knowledge(models.KindRule, 11, 2, 3, 0, &overdue),
		},
		models.KindPhrase: {
			knowledge(models.KindPhrase, 100, 4, 4, 4, &overdue),
		},
	}}
	sessions := fakeSessions{records: []models.SessionRecord{
		{Strategy: models.StrategyPronunciation, StartedAt: yesterday, EndedAt: yesterday.Add(20 * time.Minute), ItemsReviewed: 10, CorrectCount: 8},
		{Strategy: models.StrategyLinearBook, StartedAt: testNow.Add(-3 * time.Hour), EndedAt: testNow.Add(-2*time.Hour - 30*time.Minute), ItemsReviewed: 10, CorrectCount: 6},
	}}
	book := fakeBooks{book: &models.BookProgress{Title: "English File", CurrentChapter: 3, TotalChapters: 12}}

	a := NewAssembler(store, catalog, fakePronunciation(nil), sessions, book, clock.NewFake(testNow))
	snap, err := a.Assemble(context.Background(), 1)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	v := snap.Vocabulary
	if v.Total != 4 || v.Tracked != 3 || v.Known != 2 || v.Active != 2 || v.Mastered != 1 {
		t.Errorf("vocabulary counts = %+v", v)
	}
	if v.ByLevel[7] != 1 || v.ByLevel[5] != 1 || v.ByLevel[1] != 1 {
		t.Errorf("ByLevel = %v", v.ByLevel)
	}
	if got := v.ByTopic["food"]; got != (models.Progress{Known: 2, Total: 2}) {
		t.Errorf("food = %+v", got)
	}
	if got := v.ByTopic["travel"]; got != (models.Progress{Known: 0, Total: 2}) {
		t.Errorf("travel = %+v", got)
	}
	if v.DueToday != 2 || v.PhrasesDue != 1 || v.PhrasesKnown != 1 {
		t.Errorf("due/phrases = %d/%d/%d", v.DueToday, v.PhrasesDue, v.PhrasesKnown)
	}
	if len(v.ProblemWords) != 1 || v.ProblemWords[0].Label != "train" {
		t.Errorf("ProblemWords = %+v", v.ProblemWords)
	}

	g := snap.Grammar
	if g.Total != 2 || g.Known != 1 || g.DueToday != 1 {
		t.Errorf("grammar = %+v", g)
	}
	if got := g.ByCategory["tenses"]; got != (models.Progress{Known: 1, Total: 1}) {
		t.Errorf("tenses = %+v", got)
	}
	if len(g.ProblemRules) != 1 || g.ProblemRules[0].Label != "Articles" {
		t.Errorf("ProblemRules = %+v", g.ProblemRules)
	}

	wantWeak := []string{"word:train", "rule:Articles"}
	if len(snap.WeakPoints) != len(wantWeak) {
		t.Fatalf("WeakPoints = %v, want %v", snap.WeakPoints, wantWeak)
	}
	for i := range wantWeak {
		if snap.WeakPoints[i] != wantWeak[i] {
			t.Errorf("WeakPoints[%d] = %s, want %s", i, snap.WeakPoints[i], wantWeak[i])
		}
	}

	if snap.Book.PercentDone != 25 || snap.Book.Title != "English File" {
		t.Errorf("book = %+v", snap.Book)
	}
	s := snap.Sessions
	if s.Count != 2 || s.TotalMinutes != 50 || s.AverageAccuracy != 0.7 || s.LastStrategy != models.StrategyLinearBook {
		t.Errorf("sessions = %+v", s)
	}

	// vocab 2/4 -> 30, grammar 1/2 -> 30, pronunciation a day ago
	if snap.Recommended.Primary != models.StrategyLinearBook || snap.Recommended.Secondary != models.StrategyRepetition {
		t.Errorf("Recommended = %+v", snap.Recommended)
	}
}

func TestAssembleStopsWhenCancelled(t *testing.T) {
	store := &fakeKnowledge{}
	a := NewAssembler(store, fakeCatalog{}, fakePronunciation(nil), fakeSessions{}, fakeBooks{}, clock.NewFake(testNow))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Assemble(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if store.calls != 0 {
		t.Fatalf("store queried %d times after cancellation", store.calls)
	}
}

func TestAssemblePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk I/O error")
	a := NewAssembler(&fakeKnowledge{err: boom}, fakeCatalog{}, fakePronunciation(nil), fakeSessions{}, fakeBooks{}, clock.NewFake(testNow))
	if _, err := a.Assemble(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
