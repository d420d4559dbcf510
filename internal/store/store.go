package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Resource catalog
	CreateResource(ctx context.Context, r *model.ReservableResource) error
	UpdateResource(ctx context.Context, r *model.ReservableResource) error
	GetResource(ctx context.Context, id int64) (*model.ReservableResource, error)
	ListResources(ctx context.Context, activeOnly bool) ([]model.ReservableResource, error)
	SetResourceActive(ctx context.Context, id int64, active bool) error

	// Key catalog
	CreateKey(ctx context.Context, k *model.DormitoryKey) error
	GetKey(ctx context.Context, id int64) (*model.DormitoryKey, error)
	ListKeys(ctx context.Context, status model.KeyStatus) ([]model.DormitoryKey, error)
	SetKeyStatus(ctx context.Context, id int64, to model.KeyStatus) error

	// Reservations
	CreateReservation(ctx context.Context, r *model.Reservation, dailyLimit int, dayStart, dayEnd time.Time) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, id string, mutate func(r *model.Reservation) error) (*model.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	ConflictingReservations(ctx context.Context, resourceID int64, w alloc.TimeWindow) ([]model.Reservation, error)
	CountUserReservationsForDay(ctx context.Context, userID string, resourceID int64, dayStart, dayEnd time.Time) (int64, error)
	OverdueReservations(ctx context.Context, now time.Time, unflaggedOnly bool) ([]model.Reservation, error)
	NoShowCandidates(ctx context.Context, cutoff time.Time, unflaggedOnly bool) ([]model.Reservation, error)
	FlagReservationOverdue(ctx context.Context, id string, at time.Time) error
	FlagReservationNoShow(ctx context.Context, id string, at time.Time) error
	ReservationStats(ctx context.Context) (*ReservationStats, error)

	// Key custody
	IssueKey(ctx context.Context, a *model.KeyAssignment) error
	GetAssignment(ctx context.Context, id string) (*model.KeyAssignment, error)
	CloseAssignment(ctx context.Context, id string, at time.Time, status model.AssignmentStatus, keyStatus model.KeyStatus) (*model.KeyAssignment, error)
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.KeyAssignment, error)
	OverdueAssignments(ctx context.Context, now time.Time, unflaggedOnly bool) ([]model.KeyAssignment, error)
	MarkAssignmentOverdue(ctx context.Context, id string) error

	// Event log
	RecordEvent(ctx context.Context, ev *model.Event) error
	ListEvents(ctx context.Context, topic string, since time.Time) ([]model.Event, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormStore creates a new GORM-backed store. Every operation runs under
// queryTimeout so a stalled database surfaces as a failure the caller can
// retry, not a hung request.
func NewGormStore(db *gorm.DB, queryTimeout time.Duration) Store {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &gormStore{db: db, timeout: queryTimeout}
}

// DB exposes the underlying connection for the handlers that manage
// subscriptions and for the notification worker.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// lockForUpdate adds a row lock on dialects that support it. SQLite (used in
// tests) serializes writers on its own and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// wrapErr translates driver errors into the engine taxonomy.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, alloc.ErrNotFound)
	}
	// Engine errors pass through untouched.
	if errors.Is(err, alloc.ErrConflict) ||
		errors.Is(err, alloc.ErrKeyUnavailable) ||
		errors.Is(err, alloc.ErrLimitExceeded) ||
		errors.Is(err, alloc.ErrInvalidTransition) ||
		errors.Is(err, alloc.ErrResourceUnavailable) ||
		errors.Is(err, alloc.ErrKeyOutstanding) ||
		errors.Is(err, alloc.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", op, err, alloc.ErrStorage)
}

// --- Event log ---

func (s *gormStore) RecordEvent(ctx context.Context, ev *model.Event) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("record event", s.db.WithContext(ctx).Create(ev).Error)
}

func (s *gormStore) ListEvents(ctx context.Context, topic string, since time.Time) ([]model.Event, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Model(&model.Event{}).Order("emitted_at DESC")
	if topic != "" {
		q = q.Where("topic = ?", topic)
	}
	if !since.IsZero() {
		q = q.Where("emitted_at >= ?", since)
	}

	var events []model.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, wrapErr("list events", err)
	}
	return events, nil
}
