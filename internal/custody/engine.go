// Package custody tracks physical key possession: issuance, return, loss
// and damage reports, and administrative reinstatement. Custody is
// independent of reservation time-boxing; a key may be held indefinitely.
package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
	"dorm-booking-backend/internal/store"
)

// Engine orchestrates key custody against the store. Per-key serialization
// is done with a guard around the check-and-commit section; the store's
// locked transaction and the partial unique index back it up.
type Engine struct {
	store store.Store
	guard *alloc.Guard
	now   func() time.Time
}

// NewEngine creates a custody engine.
func NewEngine(s store.Store) *Engine {
	return &Engine{
		store: s,
		guard: alloc.NewGuard(),
		now:   time.Now,
	}
}

// IssueKey hands the key to the user and opens a custody record.
// expectedReturn may be nil for open-ended custody. Exactly one of two
// concurrent issues for the same key wins; the loser gets
// alloc.ErrKeyUnavailable.
func (e *Engine) IssueKey(ctx context.Context, userID string, keyID int64, expectedReturn *time.Time) (*model.KeyAssignment, error) {
	unlock := e.guard.Lock(fmt.Sprintf("key/%d", keyID))
	defer unlock()

	a := &model.KeyAssignment{
		ID:               uuid.NewString(),
		KeyID:            keyID,
		UserID:           userID,
		IssuedAt:         e.now().UTC(),
		ExpectedReturnAt: expectedReturn,
		Status:           model.AssignmentActive,
	}
	if err := e.store.IssueKey(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Return closes the assignment and puts the key back in circulation.
// Returning an already-returned assignment is a no-op.
func (e *Engine) Return(ctx context.Context, assignmentID string) (*model.KeyAssignment, error) {
	return e.close(ctx, assignmentID, model.AssignmentReturned, model.KeyAvailable)
}

// ReportLost closes the assignment as lost. The key is out of circulation
// until an administrator reinstates it.
func (e *Engine) ReportLost(ctx context.Context, assignmentID string) (*model.KeyAssignment, error) {
	return e.close(ctx, assignmentID, model.AssignmentLost, model.KeyLost)
}

// ReportDamaged closes the assignment as damaged; the key needs
// administrative reinstatement before it can be issued again.
func (e *Engine) ReportDamaged(ctx context.Context, assignmentID string) (*model.KeyAssignment, error) {
	return e.close(ctx, assignmentID, model.AssignmentDamaged, model.KeyDamaged)
}

func (e *Engine) close(ctx context.Context, assignmentID string, status model.AssignmentStatus, keyStatus model.KeyStatus) (*model.KeyAssignment, error) {
	a, err := e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	unlock := e.guard.Lock(fmt.Sprintf("key/%d", a.KeyID))
	defer unlock()

	return e.store.CloseAssignment(ctx, assignmentID, e.now().UTC(), status, keyStatus)
}

// Reinstate brings a lost, damaged or out-of-service key back to available.
// This is the only path out of those states.
func (e *Engine) Reinstate(ctx context.Context, keyID int64) (*model.DormitoryKey, error) {
	unlock := e.guard.Lock(fmt.Sprintf("key/%d", keyID))
	defer unlock()

	key, err := e.store.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	switch key.Status {
	case model.KeyLost, model.KeyDamaged, model.KeyOutOfService:
	default:
		return nil, &alloc.TransitionError{
			Entity: "key",
			ID:     key.Code,
			From:   string(key.Status),
			To:     string(model.KeyAvailable),
		}
	}
	if err := e.store.SetKeyStatus(ctx, keyID, model.KeyAvailable); err != nil {
		return nil, err
	}
	key.Status = model.KeyAvailable
	return key, nil
}

// PlaceOutOfService withdraws an available key from circulation.
func (e *Engine) PlaceOutOfService(ctx context.Context, keyID int64) (*model.DormitoryKey, error) {
	unlock := e.guard.Lock(fmt.Sprintf("key/%d", keyID))
	defer unlock()

	key, err := e.store.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !key.Status.CanTransition(model.KeyOutOfService) {
		return nil, &alloc.TransitionError{
			Entity: "key",
			ID:     key.Code,
			From:   string(key.Status),
			To:     string(model.KeyOutOfService),
		}
	}
	if err := e.store.SetKeyStatus(ctx, keyID, model.KeyOutOfService); err != nil {
		return nil, err
	}
	key.Status = model.KeyOutOfService
	return key, nil
}

// FindActiveForUser lists the user's open custody records.
func (e *Engine) FindActiveForUser(ctx context.Context, userID string) ([]model.KeyAssignment, error) {
	return e.store.ListAssignments(ctx, store.AssignmentFilter{UserID: userID, OpenOnly: true})
}

// FindActiveForUserAndKeyType narrows the open custody records to one key
// type; the booking engine uses this for its pickup coupling.
func (e *Engine) FindActiveForUserAndKeyType(ctx context.Context, userID string, t model.KeyType) ([]model.KeyAssignment, error) {
	return e.store.ListAssignments(ctx, store.AssignmentFilter{UserID: userID, KeyType: t, OpenOnly: true})
}

// Overdue lists open assignments past their expected return at now,
// whether or not the sweeper has already flagged them.
func (e *Engine) Overdue(ctx context.Context, now time.Time) ([]model.KeyAssignment, error) {
	return e.store.OverdueAssignments(ctx, now, false)
}
