package models

import "time"

// Progress is a known/total pair
type Progress struct {
	Known int `json:"known"`
	Total int `json:"total"`
}

// ProblemItem is an item answered wrong more often than right
type ProblemItem struct {
	SubjectID      int64   `json:"subject_id"`
	Label          string  `json:"label"`
	TimesSeen      int     `json:"times_seen"`
	TimesIncorrect int     `json:"times_incorrect"`
	Accuracy       float64 `json:"accuracy"`
}

// SoundScore is the averaged score of one sound
type SoundScore struct {
	Sound    string  `json:"sound"`
	Score    float64 `json:"score"`
	Attempts int     `json:"attempts"`
}

// CEFRResult is a confirmed CEFR level with progress toward the next one
type CEFRResult struct {
	Level    string `json:"level"`
	SubLevel int    `json:"sub_level"`
}

// VocabularySnapshot rolls up word knowledge
type VocabularySnapshot struct {
	Total        int                 `json:"total"`
	Tracked      int                 `json:"tracked"`
	Known        int                 `json:"known"`
	Active       int                 `json:"active"`
	Mastered     int                 `json:"mastered"`
	ByLevel      []int               `json:"by_level"` // index is knowledge level
	ByTopic      map[string]Progress `json:"by_topic"`
	ProblemWords []ProblemItem       `json:"problem_words"`
	DueToday     int                 `json:"due_today"`
	PhrasesKnown int                 `json:"phrases_known"`
	PhrasesDue   int                 `json:"phrases_due"`
}

// GrammarSnapshot rolls up grammar rule knowledge
type GrammarSnapshot struct {
	Total        int                 `json:"total"`
	Known        int                 `json:"known"`
	ByCategory   map[string]Progress `json:"by_category"`
	ProblemRules []ProblemItem       `json:"problem_rules"`
	DueToday     int                 `json:"due_today"`
}

// PronunciationSnapshot rolls up recent pronunciation attempts
type PronunciationSnapshot struct {
	OverallScore  float64      `json:"overall_score"`
	Attempts      int          `json:"attempts"`
	ProblemSounds []SoundScore `json:"problem_sounds"`
}

// BookSnapshot summarizes course book position
type BookSnapshot struct {
	Title          string  `json:"title,omitempty"`
	CurrentChapter int     `json:"current_chapter"`
	TotalChapters  int     `json:"total_chapters"`
	PercentDone    float64 `json:"percent_done"`
}

// SessionsSnapshot summarizes recent sessions
type SessionsSnapshot struct {
	Count           int        `json:"count"`
	TotalMinutes    int        `json:"total_minutes"`
	AverageAccuracy float64    `json:"average_accuracy"`
	LastSessionAt   *time.Time `json:"last_session_at,omitempty"`
	LastStrategy    Strategy   `json:"last_strategy,omitempty"`
}

// KnowledgeSnapshot is a session-scoped summary of everything the tutor needs.
// It is built once and must not be modified afterwards.
type KnowledgeSnapshot struct {
	UserID        int64                 `json:"user_id"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Level         CEFRResult            `json:"level"`
	Vocabulary    VocabularySnapshot    `json:"vocabulary"`
	Grammar       GrammarSnapshot       `json:"grammar"`
	Pronunciation PronunciationSnapshot `json:"pronunciation"`
	Book          BookSnapshot          `json:"book"`
	Sessions      SessionsSnapshot      `json:"sessions"`
	WeakPoints    []string              `json:"weak_points"`
	Recommended   Recommendation        `json:"recommended"`
}
