package store

import (
	"context"
	"fmt"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
)

// The catalog is read-mostly: writes happen through administrative actions
// only, so plain transactional reads/writes are enough here.

func (s *gormStore) CreateResource(ctx context.Context, r *model.ReservableResource) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("create resource", s.db.WithContext(ctx).Create(r).Error)
}

func (s *gormStore) UpdateResource(ctx context.Context, r *model.ReservableResource) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("update resource", s.db.WithContext(ctx).Save(r).Error)
}

func (s *gormStore) GetResource(ctx context.Context, id int64) (*model.ReservableResource, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var r model.ReservableResource
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, wrapErr(fmt.Sprintf("get resource %d", id), err)
	}
	return &r, nil
}

func (s *gormStore) ListResources(ctx context.Context, activeOnly bool) ([]model.ReservableResource, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var out []model.ReservableResource
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr("list resources", err)
	}
	return out, nil
}

// SetResourceActive soft-deactivates or reactivates a catalog entry.
// Resources referenced by reservations are never deleted.
func (s *gormStore) SetResourceActive(ctx context.Context, id int64, active bool) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).
		Model(&model.ReservableResource{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return wrapErr("set resource active", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("resource %d: %w", id, alloc.ErrNotFound)
	}
	return nil
}

func (s *gormStore) CreateKey(ctx context.Context, k *model.DormitoryKey) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr("create key", s.db.WithContext(ctx).Create(k).Error)
}

func (s *gormStore) GetKey(ctx context.Context, id int64) (*model.DormitoryKey, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var k model.DormitoryKey
	if err := s.db.WithContext(ctx).First(&k, "id = ?", id).Error; err != nil {
		return nil, wrapErr(fmt.Sprintf("get key %d", id), err)
	}
	return &k, nil
}

func (s *gormStore) ListKeys(ctx context.Context, status model.KeyStatus) ([]model.DormitoryKey, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Order("code ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []model.DormitoryKey
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr("list keys", err)
	}
	return out, nil
}

func (s *gormStore) SetKeyStatus(ctx context.Context, id int64, to model.KeyStatus) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).
		Model(&model.DormitoryKey{}).
		Where("id = ?", id).
		Update("status", to)
	if res.Error != nil {
		return wrapErr("set key status", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("key %d: %w", id, alloc.ErrNotFound)
	}
	return nil
}
