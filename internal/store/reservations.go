package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
)

// CreateReservation commits a new hold atomically with respect to the
// availability check. The resource row is locked for the duration of the
// transaction, so two concurrent requests for overlapping windows on the
// same resource resolve to exactly one winner.
func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation, dailyLimit int, dayStart, dayEnd time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res model.ReservableResource
		if err := lockForUpdate(tx).First(&res, "id = ?", r.ResourceID).Error; err != nil {
			return err
		}
		if !res.Active {
			return fmt.Errorf("resource %d is deactivated: %w", res.ID, alloc.ErrResourceUnavailable)
		}

		conflicts, err := conflictingReservations(tx, r.ResourceID, alloc.TimeWindow{Start: r.StartTime, End: r.EndTime})
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			ids := make([]string, len(conflicts))
			for i, c := range conflicts {
				ids[i] = c.ID
			}
			return &alloc.ConflictError{
				ResourceID:  r.ResourceID,
				Window:      alloc.TimeWindow{Start: r.StartTime, End: r.EndTime},
				Conflicting: ids,
			}
		}

		if dailyLimit > 0 {
			var n int64
			if err := countUserReservationsForDay(tx, r.UserID, r.ResourceID, dayStart, dayEnd, &n); err != nil {
				return err
			}
			if n >= int64(dailyLimit) {
				return &alloc.LimitError{
					UserID:     r.UserID,
					ResourceID: r.ResourceID,
					Day:        dayStart,
					Limit:      dailyLimit,
				}
			}
		}

		return tx.Create(r).Error
	})
	return wrapErr("create reservation", err)
}

// GetReservation loads a reservation with its resource.
func (s *gormStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var r model.Reservation
	if err := s.db.WithContext(ctx).Preload("Resource").First(&r, "id = ?", id).Error; err != nil {
		return nil, wrapErr(fmt.Sprintf("get reservation %s", id), err)
	}
	return &r, nil
}

// UpdateReservation loads the row under lock, applies mutate, and saves it.
// Engines put their transition checks inside mutate so an illegal move
// aborts the transaction.
func (s *gormStore) UpdateReservation(ctx context.Context, id string, mutate func(r *model.Reservation) error) (*model.Reservation, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var r model.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Preload("Resource").First(&r, "id = ?", id).Error; err != nil {
			return err
		}
		if err := mutate(&r); err != nil {
			return err
		}
		return tx.Omit("Resource").Save(&r).Error
	})
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("update reservation %s", id), err)
	}
	return &r, nil
}

func (s *gormStore) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Model(&model.Reservation{}).Order("start_time DESC")
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ResourceID != 0 {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.From.IsZero() {
		q = q.Where("end_time > ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("start_time < ?", f.To)
	}

	var out []model.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr("list reservations", err)
	}
	return out, nil
}

// ConflictingReservations returns the active reservations whose half-open
// windows intersect w on the given resource.
func (s *gormStore) ConflictingReservations(ctx context.Context, resourceID int64, w alloc.TimeWindow) ([]model.Reservation, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	out, err := conflictingReservations(s.db.WithContext(ctx), resourceID, w)
	if err != nil {
		return nil, wrapErr("conflicting reservations", err)
	}
	return out, nil
}

func conflictingReservations(tx *gorm.DB, resourceID int64, w alloc.TimeWindow) ([]model.Reservation, error) {
	var out []model.Reservation
	// Half-open overlap: s1 < e2 AND s2 < e1.
	err := tx.
		Where("resource_id = ?", resourceID).
		Where("status IN ?", model.ActiveReservationStatuses).
		Where("start_time < ? AND ? < end_time", w.End, w.Start).
		Order("start_time ASC").
		Find(&out).Error
	return out, err
}

func (s *gormStore) CountUserReservationsForDay(ctx context.Context, userID string, resourceID int64, dayStart, dayEnd time.Time) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var n int64
	if err := countUserReservationsForDay(s.db.WithContext(ctx), userID, resourceID, dayStart, dayEnd, &n); err != nil {
		return 0, wrapErr("count user reservations", err)
	}
	return n, nil
}

func countUserReservationsForDay(tx *gorm.DB, userID string, resourceID int64, dayStart, dayEnd time.Time, n *int64) error {
	return tx.Model(&model.Reservation{}).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Where("status IN ?", model.ActiveReservationStatuses).
		Where("start_time >= ? AND start_time < ?", dayStart, dayEnd).
		Count(n).Error
}

// OverdueReservations lists checked-in reservations whose end time has
// passed. With unflaggedOnly the sweeper-seen ones are excluded.
func (s *gormStore) OverdueReservations(ctx context.Context, now time.Time, unflaggedOnly bool) ([]model.Reservation, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).
		Where("status = ?", model.ReservationCheckedIn).
		Where("end_time < ?", now).
		Order("end_time ASC")
	if unflaggedOnly {
		q = q.Where("flagged_overdue_at IS NULL")
	}

	var out []model.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr("overdue reservations", err)
	}
	return out, nil
}

// NoShowCandidates lists confirmed reservations whose start time passed the
// grace cutoff without a check-in.
func (s *gormStore) NoShowCandidates(ctx context.Context, cutoff time.Time, unflaggedOnly bool) ([]model.Reservation, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).
		Where("status = ?", model.ReservationConfirmed).
		Where("start_time < ?", cutoff).
		Order("start_time ASC")
	if unflaggedOnly {
		q = q.Where("flagged_no_show_at IS NULL")
	}

	var out []model.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr("no-show candidates", err)
	}
	return out, nil
}

func (s *gormStore) FlagReservationOverdue(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("flag reservation overdue", s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND flagged_overdue_at IS NULL", id).
		Update("flagged_overdue_at", at).Error)
}

func (s *gormStore) FlagReservationNoShow(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("flag reservation no-show", s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND flagged_no_show_at IS NULL", id).
		Update("flagged_no_show_at", at).Error)
}

// ReservationStats aggregates counts by status and the mean duration of
// completed reservations, computed on demand.
func (s *gormStore) ReservationStats(ctx context.Context) (*ReservationStats, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	type statusRow struct {
		Status model.ReservationStatus
		N      int64
	}
	var rows []statusRow
	if err := s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Select("status, COUNT(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, wrapErr("reservation stats", err)
	}

	stats := &ReservationStats{ByStatus: make(map[model.ReservationStatus]int64, len(rows))}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.N
		stats.Total += row.N
	}

	type windowRow struct {
		StartTime time.Time
		EndTime   time.Time
	}
	var windows []windowRow
	if err := s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Select("start_time, end_time").
		Where("status = ?", model.ReservationCompleted).
		Scan(&windows).Error; err != nil {
		return nil, wrapErr("reservation stats", err)
	}
	if len(windows) > 0 {
		var total time.Duration
		for _, w := range windows {
			total += w.EndTime.Sub(w.StartTime)
		}
		stats.AverageDurationMinutes = total.Minutes() / float64(len(windows))
	}

	return stats, nil
}
