package models

import "time"

// BookProgress is where a learner is in the course book
type BookProgress struct {
	UserID         int64     `json:"user_id" db:"user_id"`
	BookID         int64     `json:"book_id" db:"book_id"`
	Title          string    `json:"title" db:"title"`
	CurrentChapter int       `json:"current_chapter" db:"current_chapter"`
	TotalChapters  int       `json:"total_chapters" db:"total_chapters"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
