package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/internal/spaced_repetition"
	"github.com/example/tutorcore/internal/strategy"
	"github.com/example/tutorcore/internal/syncqueue"
	"github.com/example/tutorcore/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrInvalidQuality is returned for grades outside 0..5
	ErrInvalidQuality = errors.New("quality must be between 0 and 5")
	// ErrInvalidKind is returned for an unknown item kind
	ErrInvalidKind = errors.New("unknown item kind")
	// ErrUnknownItem is returned when a review targets an item the user never encountered
	ErrUnknownItem = errors.New("unknown knowledge item")
)

// KnowledgeStore reads and writes single knowledge items
type KnowledgeStore interface {
	Get(ctx context.Context, kind models.ItemKind, userID, subjectID int64) (*models.KnowledgeItem, error)
	Upsert(ctx context.Context, item *models.KnowledgeItem) error
}

// SessionStore persists finished sessions
type SessionStore interface {
	Create(ctx context.Context, session *models.SessionRecord) error
}

// PronunciationStore persists assessed attempts
type PronunciationStore interface {
	Create(ctx context.Context, attempt *models.PronunciationAttempt) error
}

// QueueBuilder builds the review queue for a session
type QueueBuilder interface {
	BuildQueue(ctx context.Context, userID int64, limit int) ([]models.ReviewItem, error)
}

// SnapshotAssembler builds the knowledge snapshot for a session
type SnapshotAssembler interface {
	Assemble(ctx context.Context, userID int64) (models.KnowledgeSnapshot, error)
}

// LevelRecomputer refreshes the stored CEFR level
type LevelRecomputer interface {
	Recompute(ctx context.Context, userID int64) (models.CEFRResult, error)
}

// SyncQueues hands out the sync queue of a user
type SyncQueues interface {
	For(userID int64) *syncqueue.Queue
}

// Deps are the collaborators of the service. Levels is optional.
type Deps struct {
	Knowledge     KnowledgeStore
	Sessions      SessionStore
	Pronunciation PronunciationStore
	Queue         QueueBuilder
	Snapshots     SnapshotAssembler
	Levels        LevelRecomputer
	Sync          SyncQueues
	Engine        *spaced_repetition.SM2
	Clock         clock.Clock
	QueueLimit    int
}

// Service runs tutoring sessions and applies review events
type Service struct {
	knowledge     KnowledgeStore
	sessions      SessionStore
	pronunciation PronunciationStore
	queue         QueueBuilder
	snapshots     SnapshotAssembler
	levels        LevelRecomputer
	sync          SyncQueues
	engine        *spaced_repetition.SM2
	clock         clock.Clock
	queueLimit    int
}

// NewService creates a tutoring service
func NewService(d Deps) *Service {
	if d.Engine == nil {
		d.Engine = spaced_repetition.NewSM2()
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	return &Service{
		knowledge:     d.Knowledge,
		sessions:      d.Sessions,
		pronunciation: d.Pronunciation,
		queue:         d.Queue,
		snapshots:     d.Snapshots,
		levels:        d.Levels,
		sync:          d.Sync,
		engine:        d.Engine,
		clock:         d.Clock,
		queueLimit:    d.QueueLimit,
	}
}

// ReviewEvent is a graded answer reported by the tutoring agent
type ReviewEvent struct {
	UserID    int64
	Kind      models.ItemKind
	SubjectID int64
	Quality   int
	// Optional usage context and mistake details
	Context string
	Mistake *models.Mistake
}

// Review validates a graded answer, advances the item and persists it.
// The updated item is queued for remote sync.
func (s *Service) Review(ctx context.Context, ev ReviewEvent) (models.KnowledgeItem, error) {
	quality := spaced_repetition.QualityResponse(ev.Quality)
	if !quality.Valid() {
		return models.KnowledgeItem{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, ev.Quality)
	}
	if !ev.Kind.Valid() {
		return models.KnowledgeItem{}, fmt.Errorf("%w: %q", ErrInvalidKind, ev.Kind)
	}

	current, err := s.knowledge.Get(ctx, ev.Kind, ev.UserID, ev.SubjectID)
	if errors.Is(err, models.ErrNotFound) {
		return models.KnowledgeItem{}, fmt.Errorf("%w: %s %d", ErrUnknownItem, ev.Kind, ev.SubjectID)
	}
	if err != nil {
		return models.KnowledgeItem{}, fmt.Errorf("failed to get knowledge item: %w", err)
	}

	now := s.clock.Now()
	updated := s.engine.Advance(*current, quality, now)
	updated.AddContext(ev.Context)
	if quality < s.engine.PassThreshold && ev.Mistake != nil {
		m := *ev.Mistake
		if m.At.IsZero() {
			m.At = now
		}
		updated.AddMistake(m)
	}

	if err := s.save(ctx, &updated); err != nil {
		return models.KnowledgeItem{}, err
	}
	return updated, nil
}

// Encounter records that the user met a subject. A new item starts at level 0
// and stays unscheduled until its first review.
func (s *Service) Encounter(ctx context.Context, userID int64, kind models.ItemKind, subjectID int64, usage string) (models.KnowledgeItem, error) {
	if !kind.Valid() {
		return models.KnowledgeItem{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	now := s.clock.Now()
	var item models.KnowledgeItem
	current, err := s.knowledge.Get(ctx, kind, userID, subjectID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		item = models.NewKnowledgeItem(uuid.NewString(), userID, kind, subjectID, now)
	case err != nil:
		return models.KnowledgeItem{}, fmt.Errorf("failed to get knowledge item: %w", err)
	default:
		item = current.Clone()
		item.UpdatedAt = now
	}
	item.AddContext(usage)

	if err := s.save(ctx, &item); err != nil {
		return models.KnowledgeItem{}, err
	}
	return item, nil
}

// RecordPronunciation stores an assessed attempt
func (s *Service) RecordPronunciation(ctx context.Context, attempt *models.PronunciationAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.clock.Now()
	}
	if err := s.pronunciation.Create(ctx, attempt); err != nil {
		return fmt.Errorf("failed to save pronunciation attempt: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, item *models.KnowledgeItem) error {
	if err := s.knowledge.Upsert(ctx, item); err != nil {
		return fmt.Errorf("failed to save knowledge item: %w", err)
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode knowledge item: %w", err)
	}
	s.sync.For(item.UserID).Enqueue(item.ID, payload)
	return nil
}

// Session is one tutoring session in progress
type Session struct {
	ID             string
	UserID         int64
	StartedAt      time.Time
	Recommendation models.Recommendation
	Queue          []models.ReviewItem
	Snapshot       models.KnowledgeSnapshot

	mu       sync.Mutex
	reviewed int
	correct  int
}

// Counts returns how many answers were recorded in the session and how many passed
func (s *Session) Counts() (reviewed, correct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewed, s.correct
}

// StartSession prepares the review queue, the snapshot and the strategy.
// It never fails: missing data falls back to book reading.
func (s *Service) StartSession(ctx context.Context, userID int64) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartedAt: s.clock.Now(),
	}

	queue, err := s.queue.BuildQueue(ctx, userID, s.queueLimit)
	if err != nil {
		log.Printf("Error building review queue for user %d: %v", userID, err)
	}
	sess.Queue = queue

	snap, err := s.snapshots.Assemble(ctx, userID)
	if err != nil {
		log.Printf("Error assembling knowledge snapshot for user %d, using %s: %v", userID, models.StrategyLinearBook, err)
		sess.Recommendation = strategy.Fallback()
		sess.Snapshot = models.KnowledgeSnapshot{UserID: userID, GeneratedAt: sess.StartedAt, WeakPoints: []string{}, Recommended: sess.Recommendation}
		return sess
	}
	sess.Snapshot = snap
	sess.Recommendation = snap.Recommended
	return sess
}

// RecordReview applies a review inside a session and counts it
func (s *Service) RecordReview(ctx context.Context, sess *Session, ev ReviewEvent) (models.KnowledgeItem, error) {
	ev.UserID = sess.UserID
	item, err := s.Review(ctx, ev)
	if err != nil {
		return item, err
	}
	sess.mu.Lock()
	sess.reviewed++
	if spaced_repetition.QualityResponse(ev.Quality) >= s.engine.PassThreshold {
		sess.correct++
	}
	sess.mu.Unlock()
	return item, nil
}

// EndSession stores the session record, refreshes the CEFR level and flushes the
// user's sync queue. A failed flush keeps the entries for the next attempt.
func (s *Service) EndSession(ctx context.Context, sess *Session) (syncqueue.Status, error) {
	reviewed, correct := sess.Counts()
	record := &models.SessionRecord{
		ID:            sess.ID,
		UserID:        sess.UserID,
		Strategy:      sess.Recommendation.Primary,
		StartedAt:     sess.StartedAt,
		EndedAt:       s.clock.Now(),
		ItemsReviewed: reviewed,
		CorrectCount:  correct,
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		return syncqueue.StatusError, fmt.Errorf("failed to save session: %w", err)
	}

	if s.levels != nil && reviewed > 0 {
		if _, err := s.levels.Recompute(ctx, sess.UserID); err != nil {
			log.Printf("Error recomputing level for user %d: %v", sess.UserID, err)
		}
	}

	status := s.sync.For(sess.UserID).Flush(ctx)
	if status != syncqueue.StatusSuccess {
		log.Printf("Sync flush at end of session %s for user %d: %s", sess.ID, sess.UserID, status)
	}
	return status, nil
}
