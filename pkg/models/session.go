package models

import "time"

// SessionRecord is a finished tutoring session
type SessionRecord struct {
	ID            string    `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Strategy      Strategy  `json:"strategy" db:"strategy"`
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	EndedAt       time.Time `json:"ended_at" db:"ended_at"`
	ItemsReviewed int       `json:"items_reviewed" db:"items_reviewed"`
	CorrectCount  int       `json:"correct_count" db:"correct_count"`
}

// Duration returns how long the session ran
func (s *SessionRecord) Duration() time.Duration {
	if s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
