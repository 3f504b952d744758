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

const userColumns = `id, username, cefr_level, cefr_sub_level, notification_enabled,
	notification_hour, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.UserProfile, error) {
	var user models.UserProfile
	err := r.db.GetContext(ctx, &user, r.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

// Create inserts a new user or updates the username and notification settings if it exists
func (r *UserRepository) Create(ctx context.Context, user *models.UserProfile) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.CEFRLevel == "" {
		user.CEFRLevel = "A0"
	}
	if user.CEFRSubLevel == 0 {
		user.CEFRSubLevel = 1
	}

	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			notification_enabled = excluded.notification_enabled,
			notification_hour = excluded.notification_hour,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.CEFRLevel,
		user.CEFRSubLevel,
		user.NotificationEnabled,
		user.NotificationHour,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create/update user: %w", err)
	}
	return nil
}

// UpdateLevel stores the user's computed CEFR level
func (r *UserRepository) UpdateLevel(ctx context.Context, userID int64, level models.CEFRResult) error {
	query := r.db.Rebind(`UPDATE users SET cefr_level = ?, cefr_sub_level = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, level.Level, level.SubLevel, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update user level: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUsersForNotification returns users who should receive notifications at the given hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.UserProfile, error) {
	var users []models.UserProfile
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users
		WHERE notification_enabled = ? AND notification_hour = ?
		ORDER BY id`)
	if err := r.db.SelectContext(ctx, &users, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}
