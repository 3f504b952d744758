package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/tutorcore/pkg/models"
	"github.com/jmoiron/sqlx"
)

// PronunciationRepository handles database operations for pronunciation attempts
type PronunciationRepository struct {
	db *sqlx.DB
}

// NewPronunciationRepository creates a new repository instance
func NewPronunciationRepository(db *sqlx.DB) *PronunciationRepository {
	return &PronunciationRepository{db: db}
}

// Create inserts an attempt and sets its ID
func (r *PronunciationRepository) Create(ctx context.Context, a *models.PronunciationAttempt) error {
	query := r.db.Rebind(`
		INSERT INTO pronunciation_attempts (
			user_id, sound, intelligibility, segmental_accuracy,
			stress_correct, intonation, fluency, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		a.UserID,
		a.Sound,
		a.Intelligibility,
		a.SegmentalAccuracy,
		a.StressCorrect,
		a.Intonation,
		a.Fluency,
		a.CreatedAt.UTC(),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create pronunciation attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the user's latest attempts, oldest first
func (r *PronunciationRepository) RecentAttempts(ctx context.Context, userID int64, limit int) ([]models.PronunciationAttempt, error) {
	var attempts []models.PronunciationAttempt
	query := r.db.Rebind(`
		SELECT id, user_id, sound, intelligibility, segmental_accuracy,
			stress_correct, intonation, fluency, created_at
		FROM pronunciation_attempts
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &attempts, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get pronunciation attempts: %w", err)
	}
	for i, j := 0, len(attempts)-1; i < j; i, j = i+1, j-1 {
		attempts[i], attempts[j] = attempts[j], attempts[i]
	}
	return attempts, nil
}

// SessionRepository handles database operations for finished sessions
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session record
func (r *SessionRepository) Create(ctx context.Context, s *models.SessionRecord) error {
	query := r.db.Rebind(`
		INSERT INTO sessions (id, user_id, strategy, started_at, ended_at, items_reviewed, correct_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		string(s.Strategy),
		s.StartedAt.UTC(),
		s.EndedAt.UTC(),
		s.ItemsReviewed,
		s.CorrectCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Recent returns the user's latest sessions, newest first
func (r *SessionRepository) Recent(ctx context.Context, userID int64, limit int) ([]models.SessionRecord, error) {
	var sessions []models.SessionRecord
	query := r.db.Rebind(`
		SELECT id, user_id, strategy, started_at, ended_at, items_reviewed, correct_count
		FROM sessions
		WHERE user_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &sessions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return sessions, nil
}

// LastSessionWith returns when the latest session using one of the strategies
// started, nil when there is none
func (r *SessionRepository) LastSessionWith(ctx context.Context, userID int64, strategies []models.Strategy) (*time.Time, error) {
	if len(strategies) == 0 {
		return nil, nil
	}
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}

	query, args, err := sqlx.In(`
		SELECT started_at FROM sessions
		WHERE user_id = ? AND strategy IN (?)
		ORDER BY started_at DESC
		LIMIT 1
	`, userID, names)
	if err != nil {
		return nil, fmt.Errorf("failed to build session query: %w", err)
	}

	var started time.Time
	err = r.db.GetContext(ctx, &started, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last session: %w", err)
	}
	started = started.UTC()
	return &started, nil
}

// BookRepository handles database operations for book progress
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository creates a new repository instance
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Current returns the book the user worked on last, nil when there is none
func (r *BookRepository) Current(ctx context.Context, userID int64) (*models.BookProgress, error) {
	var book models.BookProgress
	query := r.db.Rebind(`
		SELECT user_id, book_id, title, current_chapter, total_chapters, updated_at
		FROM book_progress
		WHERE user_id = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	err := r.db.GetContext(ctx, &book, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book progress: %w", err)
	}
	return &book, nil
}

// Upsert stores the user's position in a book
func (r *BookRepository) Upsert(ctx context.Context, b *models.BookProgress) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO book_progress (user_id, book_id, title, current_chapter, total_chapters, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, book_id) DO UPDATE SET
			title = excluded.title,
			current_chapter = excluded.current_chapter,
			total_chapters = excluded.total_chapters,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		b.UserID,
		b.BookID,
		b.Title,
		b.CurrentChapter,
		b.TotalChapters,
		b.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save book progress: %w", err)
	}
	return nil
}
