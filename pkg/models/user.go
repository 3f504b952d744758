package models

import "time"

// UserProfile holds per-learner settings and the last computed CEFR level
type UserProfile struct {
	ID                  int64     `json:"id" db:"id"` // Telegram user ID
	Username            string    `json:"username" db:"username"`
	CEFRLevel           string    `json:"cefr_level" db:"cefr_level"`
	CEFRSubLevel        int       `json:"cefr_sub_level" db:"cefr_sub_level"`
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // Hour of day for notifications (0-23)
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
