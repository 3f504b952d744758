package review

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/pkg/models"
)

const (
	// DefaultLimit is the queue length when the caller does not ask for one
	DefaultLimit = 15
	// Due items pulled per requested slot, to leave room for reprioritizing
	headroomFactor = 2

	// An item at or below this level that is overdue by more than
	// criticalOverdueDays is CRITICAL
	criticalMaxLevel    = 2
	criticalOverdueDays = 3
	importantMaxLevel   = 4
	supportingMaxLevel  = 6
)

// DueItemStore returns a user's due knowledge items, most overdue first
type DueItemStore interface {
	GetDue(ctx context.Context, kind models.ItemKind, userID int64, now time.Time, limit int) ([]models.KnowledgeItem, error)
}

// Builder selects and orders due items for a session
type Builder struct {
	store DueItemStore
	clock clock.Clock
	kinds []models.ItemKind
}

// NewBuilder creates a queue builder over every item kind
func NewBuilder(store DueItemStore, clk clock.Clock) *Builder {
	if clk == nil {
		clk = clock.Real()
	}
	return &Builder{store: store, clock: clk, kinds: models.AllKinds}
}

// BuildQueue returns at most limit due items ordered by priority bucket,
// then by overdue days descending
func (b *Builder) BuildQueue(ctx context.Context, userID int64, limit int) ([]models.ReviewItem, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	now := b.clock.Now()
	pull := limit * headroomFactor

	var due []models.KnowledgeItem
	for _, kind := range b.kinds {
		items, err := b.store.GetDue(ctx, kind, userID, now, pull)
		if err != nil {
			return nil, fmt.Errorf("failed to get due %s items: %w", kind, err)
		}
		due = append(due, items...)
	}

	// Keep the pull bounded across kinds: most overdue first
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextReviewAt != nil && due[j].NextReviewAt != nil &&
			due[i].NextReviewAt.Before(*due[j].NextReviewAt)
	})
	if len(due) > pull {
		due = due[:pull]
	}

	return Prioritize(due, now, limit), nil
}

// Prioritize classifies items, drops the ones not due at now, sorts and truncates to limit
func Prioritize(items []models.KnowledgeItem, now time.Time, limit int) []models.ReviewItem {
	queue := make([]models.ReviewItem, 0, len(items))
	for _, item := range items {
		if !item.NeedsReview(now) {
			continue
		}
		queue = append(queue, Classify(item, now))
	}

	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Priority != queue[j].Priority {
			return queue[i].Priority < queue[j].Priority
		}
		return queue[i].OverdueDays > queue[j].OverdueDays
	})

	if limit > 0 && len(queue) > limit {
		queue = queue[:limit]
	}
	return queue
}

// Classify puts an item in its priority bucket
func Classify(item models.KnowledgeItem, now time.Time) models.ReviewItem {
	overdue := OverdueDays(item, now)
	return models.ReviewItem{
		Item:        item,
		Priority:    priorityOf(item.KnowledgeLevel, overdue),
		OverdueDays: overdue,
	}
}

func priorityOf(level, overdueDays int) models.Priority {
	switch {
	case level <= criticalMaxLevel && overdueDays > criticalOverdueDays:
		return models.PriorityCritical
	case level <= importantMaxLevel:
		// Weak items that are only slightly late share the IMPORTANT bucket
		return models.PriorityImportant
	case level <= supportingMaxLevel:
		return models.PrioritySupporting
	default:
		return models.PriorityMastery
	}
}

// OverdueDays returns whole days since the item became due, 0 when not yet due or never scheduled
func OverdueDays(item models.KnowledgeItem, now time.Time) int {
	if item.NextReviewAt == nil || !now.After(*item.NextReviewAt) {
		return 0
	}
	return int(math.Floor(now.Sub(*item.NextReviewAt).Hours() / 24))
}
