package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
)

// IssueKey creates a custody record atomically with respect to the key's
// availability check: the key row is locked, the status and any open
// assignment are verified, the key moves to assigned and the record is
// written, all in one transaction. A partial unique index on open
// assignments backs this up at the storage layer.
func (s *gormStore) IssueKey(ctx context.Context, a *model.KeyAssignment) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key model.DormitoryKey
		if err := lockForUpdate(tx).First(&key, "id = ?", a.KeyID).Error; err != nil {
			return err
		}
		if key.Status != model.KeyAvailable {
			return fmt.Errorf("key %s is %s: %w", key.Code, key.Status, alloc.ErrKeyUnavailable)
		}

		var open int64
		if err := tx.Model(&model.KeyAssignment{}).
			Where("key_id = ? AND status IN ?", a.KeyID, model.OpenAssignmentStatuses).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("key %s already has an open assignment: %w", key.Code, alloc.ErrKeyUnavailable)
		}

		if err := tx.Model(&model.DormitoryKey{}).
			Where("id = ?", key.ID).
			Update("status", model.KeyAssigned).Error; err != nil {
			return err
		}
		return tx.Create(a).Error
	})
	return wrapErr("issue key", err)
}

func (s *gormStore) GetAssignment(ctx context.Context, id string) (*model.KeyAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var a model.KeyAssignment
	if err := s.db.WithContext(ctx).Preload("Key").First(&a, "id = ?", id).Error; err != nil {
		return nil, wrapErr(fmt.Sprintf("get assignment %s", id), err)
	}
	return &a, nil
}

// CloseAssignment ends an open custody record and moves the key to
// keyStatus in the same transaction. Closing an already-returned assignment
// with status returned is a no-op, so retried returns are safe.
func (s *gormStore) CloseAssignment(ctx context.Context, id string, at time.Time, status model.AssignmentStatus, keyStatus model.KeyStatus) (*model.KeyAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var a model.KeyAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&a, "id = ?", id).Error; err != nil {
			return err
		}
		if !a.Status.Open() {
			if a.Status == status {
				return nil
			}
			return &alloc.TransitionError{
				Entity: "key assignment",
				ID:     a.ID,
				From:   string(a.Status),
				To:     string(status),
			}
		}

		a.Status = status
		if status == model.AssignmentReturned {
			a.ReturnedAt = &at
		}
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		return tx.Model(&model.DormitoryKey{}).
			Where("id = ?", a.KeyID).
			Update("status", keyStatus).Error
	})
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("close assignment %s", id), err)
	}
	return &a, nil
}

func (s *gormStore) ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.KeyAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Model(&model.KeyAssignment{}).
		Preload("Key").
		Order("issued_at DESC")
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.KeyID != 0 {
		q = q.Where("key_id = ?", f.KeyID)
	}
	if f.OpenOnly {
		q = q.Where("key_assignments.status IN ?", model.OpenAssignmentStatuses)
	}
	if f.KeyType != "" {
		q = q.Select("key_assignments.*").
			Joins("JOIN dormitory_keys ON dormitory_keys.id = key_assignments.key_id").
			Where("dormitory_keys.type = ?", f.KeyType)
	}

	var out []model.KeyAssignment
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr("list assignments", err)
	}
	return out, nil
}

// OverdueAssignments lists open assignments past their expected return.
// Open-ended custody (no expected return) is never overdue. With
// unflaggedOnly, assignments already moved to the overdue state are
// excluded.
func (s *gormStore) OverdueAssignments(ctx context.Context, now time.Time, unflaggedOnly bool) ([]model.KeyAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Preload("Key")
	if unflaggedOnly {
		q = q.Where("status = ?", model.AssignmentActive)
	} else {
		q = q.Where("status IN ?", model.OpenAssignmentStatuses)
	}

	var out []model.KeyAssignment
	err := q.
		Where("expected_return_at IS NOT NULL AND expected_return_at < ?", now).
		Order("expected_return_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, wrapErr("overdue assignments", err)
	}
	return out, nil
}

// MarkAssignmentOverdue moves an active assignment to the overdue state.
// The key stays out with the holder; only the engines resolve custody.
func (s *gormStore) MarkAssignmentOverdue(ctx context.Context, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("mark assignment overdue", s.db.WithContext(ctx).
		Model(&model.KeyAssignment{}).
		Where("id = ? AND status = ?", id, model.AssignmentActive).
		Update("status", model.AssignmentOverdue).Error)
}
