package availability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/db"
	"dorm-booking-backend/internal/model"
	"dorm-booking-backend/internal/store"
)

func newTestIndex(t *testing.T, loc *time.Location) (*Index, store.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB, 5*time.Second)
	return New(s, loc), s
}

func seedReservation(t *testing.T, s store.Store, resourceID int64, userID string, start, end time.Time, status model.ReservationStatus) {
	t.Helper()
	require.NoError(t, s.CreateReservation(context.Background(), &model.Reservation{
		ID:         fmt.Sprintf("res-%s-%d", userID, start.Unix()),
		ResourceID: resourceID,
		UserID:     userID,
		StartTime:  start,
		EndTime:    end,
		Status:     status,
	}, 0, time.Time{}, time.Time{}))
}

func TestIsAvailable(t *testing.T) {
	ix, s := newTestIndex(t, time.UTC)
	ctx := context.Background()

	res := &model.ReservableResource{Name: "Projector", Category: model.CategoryEquipment, Active: true}
	require.NoError(t, s.CreateResource(ctx, res))

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	seedReservation(t, s, res.ID, "alice", day.Add(9*time.Hour), day.Add(10*time.Hour), model.ReservationConfirmed)

	mustWindow := func(start, end time.Time) alloc.TimeWindow {
		w, err := alloc.NewWindow(start, end)
		require.NoError(t, err)
		return w
	}

	free, err := ix.IsAvailable(ctx, res.ID, mustWindow(day.Add(9*time.Hour+30*time.Minute), day.Add(10*time.Hour+30*time.Minute)))
	require.NoError(t, err)
	assert.False(t, free)

	// The window ending exactly at the reservation's start is free.
	free, err = ix.IsAvailable(ctx, res.ID, mustWindow(day.Add(8*time.Hour), day.Add(9*time.Hour)))
	require.NoError(t, err)
	assert.True(t, free)

	// Another resource is unaffected.
	free, err = ix.IsAvailable(ctx, res.ID+1, mustWindow(day.Add(9*time.Hour), day.Add(10*time.Hour)))
	require.NoError(t, err)
	assert.True(t, free)

	conflicts, err := ix.Conflicts(ctx, res.ID, mustWindow(day.Add(8*time.Hour), day.Add(12*time.Hour)))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "alice", conflicts[0].UserID)
}

func TestCountForDayUsesLocalCalendar(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	ix, s := newTestIndex(t, berlin)
	ctx := context.Background()

	res := &model.ReservableResource{Name: "Music Room", Category: model.CategoryRoom, Active: true}
	require.NoError(t, s.CreateResource(ctx, res))

	// 23:00 UTC on March 1 is already March 2 in Berlin.
	lateUTC := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	seedReservation(t, s, res.ID, "alice", lateUTC, lateUTC.Add(time.Hour), model.ReservationConfirmed)

	// Stored in UTC; the index buckets it back into the Berlin calendar.
	morning := time.Date(2026, 3, 2, 9, 0, 0, 0, berlin).UTC()
	seedReservation(t, s, res.ID, "alice", morning, morning.Add(time.Hour), model.ReservationConfirmed)

	n, err := ix.CountForDay(ctx, "alice", res.ID, morning)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The previous Berlin day holds neither.
	n, err = ix.CountForDay(ctx, "alice", res.ID, time.Date(2026, 3, 1, 12, 0, 0, 0, berlin))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
