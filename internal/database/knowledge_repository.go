package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/tutorcore/pkg/models"
	"github.com/jmoiron/sqlx"
)

// knowledgeRow is the stored form of a knowledge item; list fields are JSON text
type knowledgeRow struct {
	ID              string     `db:"id"`
	UserID          int64      `db:"user_id"`
	Kind            string     `db:"kind"`
	SubjectID       int64      `db:"subject_id"`
	KnowledgeLevel  int        `db:"knowledge_level"`
	TimesSeen       int        `db:"times_seen"`
	TimesCorrect    int        `db:"times_correct"`
	TimesIncorrect  int        `db:"times_incorrect"`
	LastReviewedAt  *time.Time `db:"last_reviewed_at"`
	NextReviewAt    *time.Time `db:"next_review_at"`
	IntervalDays    float64    `db:"interval_days"`
	EaseFactor      float64    `db:"ease_factor"`
	RecentQualities string     `db:"recent_qualities"`
	Contexts        string     `db:"contexts"`
	Mistakes        string     `db:"mistakes"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

const knowledgeColumns = `id, user_id, kind, subject_id, knowledge_level, times_seen, times_correct,
	times_incorrect, last_reviewed_at, next_review_at, interval_days, ease_factor,
	recent_qualities, contexts, mistakes, created_at, updated_at`

func (r *knowledgeRow) item() models.KnowledgeItem {
	item := models.KnowledgeItem{
		ID:             r.ID,
		UserID:         r.UserID,
		Kind:           models.ItemKind(r.Kind),
		SubjectID:      r.SubjectID,
		KnowledgeLevel: r.KnowledgeLevel,
		TimesSeen:      r.TimesSeen,
		TimesCorrect:   r.TimesCorrect,
		TimesIncorrect: r.TimesIncorrect,
		LastReviewedAt: utcPtr(r.LastReviewedAt),
		NextReviewAt:   utcPtr(r.NextReviewAt),
		IntervalDays:   r.IntervalDays,
		EaseFactor:     r.EaseFactor,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	decodeList(r.RecentQualities, &item.RecentQualities, r.ID, "recent_qualities")
	decodeList(r.Contexts, &item.Contexts, r.ID, "contexts")
	decodeList(r.Mistakes, &item.Mistakes, r.ID, "mistakes")
	return item
}

// decodeList parses a JSON list column. Malformed values become an empty list.
func decodeList[T any](raw string, dst *[]T, id, column string) {
	if raw == "" {
		*dst = []T{}
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Printf("Ignoring malformed %s for knowledge item %s: %v", column, id, err)
		*dst = []T{}
		return
	}
	if *dst == nil {
		*dst = []T{}
	}
}

func encodeList[T any](list []T) (string, error) {
	if list == nil {
		return "[]", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// KnowledgeRepository handles database operations for knowledge items
type KnowledgeRepository struct {
	db *sqlx.DB
}

// NewKnowledgeRepository creates a new repository instance
func NewKnowledgeRepository(db *sqlx.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Get returns the user's item for a subject, ErrNotFound when there is none
func (r *KnowledgeRepository) Get(ctx context.Context, kind models.ItemKind, userID, subjectID int64) (*models.KnowledgeItem, error) {
	var row knowledgeRow
	query := r.db.Rebind(`SELECT ` + knowledgeColumns + ` FROM knowledge_items
		WHERE user_id = ? AND kind = ? AND subject_id = ?`)
	err := r.db.GetContext(ctx, &row, query, userID, string(kind), subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge item: %w", err)
	}
	item := row.item()
	return &item, nil
}

// GetAll returns every item of a kind for the user
func (r *KnowledgeRepository) GetAll(ctx context.Context, kind models.ItemKind, userID int64) ([]models.KnowledgeItem, error) {
	query := r.db.Rebind(`SELECT ` + knowledgeColumns + ` FROM knowledge_items
		WHERE user_id = ? AND kind = ?
		ORDER BY subject_id`)
	return r.selectItems(ctx, query, userID, string(kind))
}

// GetDue returns up to limit items due at now, most overdue first
func (r *KnowledgeRepository) GetDue(ctx context.Context, kind models.ItemKind, userID int64, now time.Time, limit int) ([]models.KnowledgeItem, error) {
	query := r.db.Rebind(`SELECT ` + knowledgeColumns + ` FROM knowledge_items
		WHERE user_id = ? AND kind = ? AND next_review_at IS NOT NULL AND next_review_at <= ?
		ORDER BY next_review_at ASC
		LIMIT ?`)
	return r.selectItems(ctx, query, userID, string(kind), now.UTC(), limit)
}

// GetByLevel returns the user's items of a kind at a knowledge level
func (r *KnowledgeRepository) GetByLevel(ctx context.Context, kind models.ItemKind, userID int64, level int) ([]models.KnowledgeItem, error) {
	query := r.db.Rebind(`SELECT ` + knowledgeColumns + ` FROM knowledge_items
		WHERE user_id = ? AND kind = ? AND knowledge_level = ?
		ORDER BY subject_id`)
	return r.selectItems(ctx, query, userID, string(kind), level)
}

// CountDueSince counts items of a kind due at now
func (r *KnowledgeRepository) CountDueSince(ctx context.Context, kind models.ItemKind, userID int64, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM knowledge_items
		WHERE user_id = ? AND kind = ? AND next_review_at IS NOT NULL AND next_review_at <= ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, string(kind), now.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due items: %w", err)
	}
	return count, nil
}

// CountAllDue counts due items of every kind
func (r *KnowledgeRepository) CountAllDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM knowledge_items
		WHERE user_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, now.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due items: %w", err)
	}
	return count, nil
}

// Upsert inserts the item or updates the row with the same user, kind and subject
func (r *KnowledgeRepository) Upsert(ctx context.Context, item *models.KnowledgeItem) error {
	qualities, err := encodeList(item.RecentQualities)
	if err != nil {
		return fmt.Errorf("failed to marshal recent qualities: %w", err)
	}
	contexts, err := encodeList(item.Contexts)
	if err != nil {
		return fmt.Errorf("failed to marshal contexts: %w", err)
	}
	mistakes, err := encodeList(item.Mistakes)
	if err != nil {
		return fmt.Errorf("failed to marshal mistakes: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO knowledge_items (` + knowledgeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, kind, subject_id) DO UPDATE SET
			knowledge_level = excluded.knowledge_level,
			times_seen = excluded.times_seen,
			times_correct = excluded.times_correct,
			times_incorrect = excluded.times_incorrect,
			last_reviewed_at = excluded.last_reviewed_at,
			next_review_at = excluded.next_review_at,
			interval_days = excluded.interval_days,
			ease_factor = excluded.ease_factor,
			recent_qualities = excluded.recent_qualities,
			contexts = excluded.contexts,
			mistakes = excluded.mistakes,
			updated_at = excluded.updated_at
	`)
	_, err = r.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		string(item.Kind),
		item.SubjectID,
		item.KnowledgeLevel,
		item.TimesSeen,
		item.TimesCorrect,
		item.TimesIncorrect,
		utcPtr(item.LastReviewedAt),
		utcPtr(item.NextReviewAt),
		item.IntervalDays,
		item.EaseFactor,
		qualities,
		contexts,
		mistakes,
		item.CreatedAt.UTC(),
		item.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge item: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) selectItems(ctx context.Context, query string, args ...interface{}) ([]models.KnowledgeItem, error) {
	var rows []knowledgeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get knowledge items: %w", err)
	}
	items := make([]models.KnowledgeItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].item())
	}
	return items, nil
}
