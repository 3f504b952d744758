package models

import "time"

// Word is a vocabulary catalog entry
type Word struct {
	ID          int64     `json:"id" db:"id"`
	Text        string    `json:"text" db:"text"`
	Translation string    `json:"translation" db:"translation"`
	Topic       string    `json:"topic" db:"topic"`
	CEFRLevel   string    `json:"cefr_level" db:"cefr_level"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// GrammarRule is a grammar catalog entry
type GrammarRule struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Category  string    `json:"category" db:"category"`
	CEFRLevel string    `json:"cefr_level" db:"cefr_level"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
