// Package sweep runs the periodic overdue scan. The sweeper only flags and
// emits; it never cancels a reservation or returns a key. Resolution is
// always a user or admin action routed through the engines.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"dorm-booking-backend/internal/model"
	"dorm-booking-backend/internal/notification"
	"dorm-booking-backend/internal/store"
)

// Notifier receives the events the sweeper emits. The notification worker
// pool satisfies this.
type Notifier interface {
	Dispatch(ev notification.Event)
}

// Sweeper scans both engines' overdue sets on a fixed interval.
type Sweeper struct {
	store    store.Store
	notifier Notifier
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

// New creates a sweeper. grace is the no-show grace period after a
// reservation's start time.
func New(s store.Store, n Notifier, interval, grace time.Duration) *Sweeper {
	return &Sweeper{
		store:    s,
		notifier: n,
		interval: interval,
		grace:    grace,
		now:      time.Now,
	}
}

// Run loops until the context is cancelled. A failed scan is logged and the
// next tick proceeds normally.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("Overdue sweeper running every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SweepOnce(ctx, s.now()); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Overdue sweeper stopped")
			return
		}
	}
}

// SweepOnce performs one scan at the given instant. Each overdue item is
// flagged and emitted at most once: re-running without intervening state
// change emits nothing.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) error {
	var firstErr error

	if err := s.sweepOverdueReservations(ctx, now); err != nil {
		firstErr = err
	}
	if err := s.sweepNoShows(ctx, now); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.sweepOverdueKeys(ctx, now); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Sweeper) sweepOverdueReservations(ctx context.Context, now time.Time) error {
	overdue, err := s.store.OverdueReservations(ctx, now, true)
	if err != nil {
		return fmt.Errorf("overdue reservations scan: %w", err)
	}
	for _, r := range overdue {
		if err := s.store.FlagReservationOverdue(ctx, r.ID, now); err != nil {
			log.Printf("Failed to flag reservation %s overdue: %v", r.ID, err)
			continue
		}
		s.emit(ctx, notification.Event{
			Topic:     model.TopicReservationOverdue,
			SubjectID: r.ID,
			Message: fmt.Sprintf("Reservation %s on resource %d ended %s without checkout",
				r.ID, r.ResourceID, r.EndTime.Format(time.RFC3339)),
		}, now)
	}
	return nil
}

func (s *Sweeper) sweepNoShows(ctx context.Context, now time.Time) error {
	candidates, err := s.store.NoShowCandidates(ctx, now.Add(-s.grace), true)
	if err != nil {
		return fmt.Errorf("no-show scan: %w", err)
	}
	for _, r := range candidates {
		if err := s.store.FlagReservationNoShow(ctx, r.ID, now); err != nil {
			log.Printf("Failed to flag reservation %s as no-show candidate: %v", r.ID, err)
			continue
		}
		s.emit(ctx, notification.Event{
			Topic:     model.TopicReservationNoShow,
			SubjectID: r.ID,
			Message: fmt.Sprintf("Reservation %s on resource %d passed its start %s with no check-in",
				r.ID, r.ResourceID, r.StartTime.Format(time.RFC3339)),
		}, now)
	}
	return nil
}

func (s *Sweeper) sweepOverdueKeys(ctx context.Context, now time.Time) error {
	overdue, err := s.store.OverdueAssignments(ctx, now, true)
	if err != nil {
		return fmt.Errorf("overdue keys scan: %w", err)
	}
	for _, a := range overdue {
		if err := s.store.MarkAssignmentOverdue(ctx, a.ID); err != nil {
			log.Printf("Failed to mark assignment %s overdue: %v", a.ID, err)
			continue
		}
		s.emit(ctx, notification.Event{
			Topic:     model.TopicKeyOverdue,
			SubjectID: a.ID,
			Message: fmt.Sprintf("Key %s held by user %s was due back %s",
				a.Key.Code, a.UserID, a.ExpectedReturnAt.Format(time.RFC3339)),
		}, now)
	}
	return nil
}

// emit records the event and hands it to the notifier. A failed log write
// does not block delivery.
func (s *Sweeper) emit(ctx context.Context, ev notification.Event, now time.Time) {
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:     ev.Topic,
		SubjectID: ev.SubjectID,
		Message:   ev.Message,
		EmittedAt: now,
	}); err != nil {
		log.Printf("Failed to record %s event for %s: %v", ev.Topic, ev.SubjectID, err)
	}
	if s.notifier != nil {
		s.notifier.Dispatch(ev)
	}
}
