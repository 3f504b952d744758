package models

import "time"

// ItemKind is the kind of subject a knowledge item tracks
type ItemKind string

const (
	KindWord   ItemKind = "word"
	KindRule   ItemKind = "rule"
	KindPhrase ItemKind = "phrase"
)

// AllKinds lists every item kind in a stable order
var AllKinds = []ItemKind{KindWord, KindRule, KindPhrase}

// Valid reports whether k is one of the known kinds
func (k ItemKind) Valid() bool {
	switch k {
	case KindWord, KindRule, KindPhrase:
		return true
	}
	return false
}

const (
	// MinKnowledgeLevel and MaxKnowledgeLevel bound KnowledgeLevel
	MinKnowledgeLevel = 0
	MaxKnowledgeLevel = 7

	// Item is "known" from this level on
	KnownLevel = 4
	// Item is used actively from this level on
	ActiveLevel = 5

	MinEaseFactor     = 1.3
	DefaultEaseFactor = 2.5

	// ProblemMinSeen is the number of attempts before an item can be a problem
	ProblemMinSeen = 3

	MaxContexts = 10
	MaxMistakes = 20

	// RecentQualityWindow is how many past grades are kept per item
	RecentQualityWindow = 3
)

// Mistake is one recorded wrong answer for an item
type Mistake struct {
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
	At       time.Time `json:"at"`
	Context  string    `json:"context,omitempty"`
}

// KnowledgeItem tracks what a user knows about one word, grammar rule or phrase
type KnowledgeItem struct {
	ID        string   `json:"id"`
	UserID    int64    `json:"user_id"`
	Kind      ItemKind `json:"kind"`
	SubjectID int64    `json:"subject_id"`

	KnowledgeLevel int `json:"knowledge_level"`
	TimesSeen      int `json:"times_seen"`
	TimesCorrect   int `json:"times_correct"`
	TimesIncorrect int `json:"times_incorrect"`

	LastReviewedAt *time.Time `json:"last_reviewed_at"`
	NextReviewAt   *time.Time `json:"next_review_at"` // nil: never scheduled
	IntervalDays   float64    `json:"interval_days"`
	EaseFactor     float64    `json:"ease_factor"`

	// Last grades, oldest first, at most RecentQualityWindow long
	RecentQualities []int `json:"recent_qualities"`

	Contexts []string  `json:"contexts"`
	Mistakes []Mistake `json:"mistakes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewKnowledgeItem returns an item for a first encounter: level 0, never scheduled
func NewKnowledgeItem(id string, userID int64, kind ItemKind, subjectID int64, now time.Time) KnowledgeItem {
	return KnowledgeItem{
		ID:         id,
		UserID:     userID,
		Kind:       kind,
		SubjectID:  subjectID,
		EaseFactor: DefaultEaseFactor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsKnown reports whether the item reached KnownLevel
func (k *KnowledgeItem) IsKnown() bool { return k.KnowledgeLevel >= KnownLevel }

// IsActive reports whether the item is in active use
func (k *KnowledgeItem) IsActive() bool { return k.KnowledgeLevel >= ActiveLevel }

// IsMastered reports whether the item is at the top level
func (k *KnowledgeItem) IsMastered() bool { return k.KnowledgeLevel == MaxKnowledgeLevel }

// NeedsReview reports whether the item is scheduled and due at now
func (k *KnowledgeItem) NeedsReview(now time.Time) bool {
	return k.NextReviewAt != nil && !k.NextReviewAt.After(now)
}

// Accuracy returns the share of correct answers, 0 when never seen
func (k *KnowledgeItem) Accuracy() float64 {
	if k.TimesSeen == 0 {
		return 0
	}
	return float64(k.TimesCorrect) / float64(k.TimesSeen)
}

// IsProblem reports an item that is answered wrong more often than right
func (k *KnowledgeItem) IsProblem() bool {
	return k.TimesIncorrect > k.TimesCorrect && k.TimesSeen >= ProblemMinSeen
}

// IsWeakPoint reports an under-mastered item that has been practiced enough to judge
func (k *KnowledgeItem) IsWeakPoint() bool {
	return k.KnowledgeLevel <= WeakPointMaxLevel && k.TimesSeen >= WeakPointMinAttempts
}

const (
	WeakPointMaxLevel    = 2
	WeakPointMinAttempts = 3
)

// AddContext appends a usage context, keeping the newest MaxContexts
func (k *KnowledgeItem) AddContext(context string) {
	if context == "" {
		return
	}
	for _, c := range k.Contexts {
		if c == context {
			return
		}
	}
	k.Contexts = append(k.Contexts, context)
	if len(k.Contexts) > MaxContexts {
		k.Contexts = k.Contexts[len(k.Contexts)-MaxContexts:]
	}
}

// AddMistake appends a mistake record, keeping the newest MaxMistakes
func (k *KnowledgeItem) AddMistake(m Mistake) {
	k.Mistakes = append(k.Mistakes, m)
	if len(k.Mistakes) > MaxMistakes {
		k.Mistakes = k.Mistakes[len(k.Mistakes)-MaxMistakes:]
	}
}

// Clone returns a deep copy so callers can mutate the copy freely
func (k KnowledgeItem) Clone() KnowledgeItem {
	out := k
	if k.LastReviewedAt != nil {
		t := *k.LastReviewedAt
		out.LastReviewedAt = &t
	}
	if k.NextReviewAt != nil {
		t := *k.NextReviewAt
		out.NextReviewAt = &t
	}
	out.RecentQualities = append([]int(nil), k.RecentQualities...)
	out.Contexts = append([]string(nil), k.Contexts...)
	out.Mistakes = append([]Mistake(nil), k.Mistakes...)
	return out
}
