package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/db"
	"dorm-booking-backend/internal/model"
)

// newTestStore opens a fresh in-memory SQLite database, migrated with the
// full schema. The DSN is keyed by test name so parallel tests do not share
// state.
func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB, 5*time.Second), gormDB
}

func seedResource(t *testing.T, s Store, active bool) *model.ReservableResource {
	t.Helper()
	r := &model.ReservableResource{
		Name:     "Music Room",
		Category: model.CategoryRoom,
		Capacity: 4,
		Active:   true,
	}
	require.NoError(t, s.CreateResource(context.Background(), r))
	if !active {
		// An explicit update writes the false; a zero value on create would
		// be overridden by the column default.
		require.NoError(t, s.SetResourceActive(context.Background(), r.ID, false))
		r.Active = false
	}
	return r
}

func seedKey(t *testing.T, s Store, code string, status model.KeyStatus) *model.DormitoryKey {
	t.Helper()
	k := &model.DormitoryKey{
		Code:     code,
		Type:     model.KeyTypeRoom,
		Status:   status,
		Building: "B2",
		Room:     "0312",
		Copy:     1,
	}
	require.NoError(t, s.CreateKey(context.Background(), k))
	return k
}

func mustCreateReservation(t *testing.T, s Store, resourceID int64, userID string, start, end time.Time, status model.ReservationStatus) *model.Reservation {
	t.Helper()
	r := &model.Reservation{
		ID:         fmt.Sprintf("res-%s-%d", userID, start.Unix()),
		ResourceID: resourceID,
		UserID:     userID,
		StartTime:  start,
		EndTime:    end,
		Status:     status,
	}
	require.NoError(t, s.CreateReservation(context.Background(), r, 0, time.Time{}, time.Time{}))
	return r
}

func TestCreateReservationConflicts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	res := seedResource(t, s, true)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	first := mustCreateReservation(t, s, res.ID, "alice", at(9, 0), at(10, 0), model.ReservationConfirmed)

	// Overlapping window loses with a conflict naming the holder.
	overlap := &model.Reservation{
		ID: "res-overlap", ResourceID: res.ID, UserID: "bob",
		StartTime: at(9, 30), EndTime: at(10, 30), Status: model.ReservationConfirmed,
	}
	err := s.CreateReservation(ctx, overlap, 0, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, alloc.ErrConflict)
	var ce *alloc.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Conflicting, first.ID)

	// Touching endpoints do not conflict: [9,10) then [10,11).
	mustCreateReservation(t, s, res.ID, "bob", at(10, 0), at(11, 0), model.ReservationConfirmed)

	// A cancelled reservation releases its window.
	_, err = s.UpdateReservation(ctx, first.ID, func(r *model.Reservation) error {
		r.Status = model.ReservationCancelled
		return nil
	})
	require.NoError(t, err)
	mustCreateReservation(t, s, res.ID, "carol", at(9, 0), at(10, 0), model.ReservationConfirmed)
}

func TestCreateReservationDailyLimit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	res := seedResource(t, s, true)
	other := seedResource(t, s, true)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	dayStart, dayEnd := alloc.DayBounds(day.Add(9*time.Hour), time.UTC)

	for i := 0; i < 3; i++ {
		r := &model.Reservation{
			ID:         fmt.Sprintf("res-limit-%d", i),
			ResourceID: res.ID,
			UserID:     "alice",
			StartTime:  day.Add(time.Duration(9+2*i) * time.Hour),
			EndTime:    day.Add(time.Duration(10+2*i) * time.Hour),
			Status:     model.ReservationConfirmed,
		}
		require.NoError(t, s.CreateReservation(ctx, r, 3, dayStart, dayEnd))
	}

	fourth := &model.Reservation{
		ID: "res-limit-3", ResourceID: res.ID, UserID: "alice",
		StartTime: day.Add(16 * time.Hour), EndTime: day.Add(17 * time.Hour),
		Status: model.ReservationConfirmed,
	}
	err := s.CreateReservation(ctx, fourth, 3, dayStart, dayEnd)
	require.Error(t, err)
	assert.ErrorIs(t, err, alloc.ErrLimitExceeded)
	var le *alloc.LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 3, le.Limit)

	// The cap is per resource: the same slot count on another resource is fine.
	onOther := &model.Reservation{
		ID: "res-other", ResourceID: other.ID, UserID: "alice",
		StartTime: day.Add(16 * time.Hour), EndTime: day.Add(17 * time.Hour),
		Status: model.ReservationConfirmed,
	}
	require.NoError(t, s.CreateReservation(ctx, onOther, 3, dayStart, dayEnd))
}

func TestCreateReservationInactiveResource(t *testing.T) {
	s, _ := newTestStore(t)
	res := seedResource(t, s, false)

	r := &model.Reservation{
		ID: "res-inactive", ResourceID: res.ID, UserID: "alice",
		StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		Status: model.ReservationConfirmed,
	}
	err := s.CreateReservation(context.Background(), r, 0, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, alloc.ErrResourceUnavailable)
}

func TestUpdateReservationAbortsOnMutateError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	res := seedResource(t, s, true)
	r := mustCreateReservation(t, s, res.ID, "alice",
		time.Now(), time.Now().Add(time.Hour), model.ReservationPending)

	boom := errors.New("rejected")
	_, err := s.UpdateReservation(ctx, r.ID, func(r *model.Reservation) error {
		r.Status = model.ReservationCompleted
		return boom
	})
	require.Error(t, err)

	got, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, got.Status)
}

func TestGetReservationNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetReservation(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, alloc.ErrNotFound)
}

func TestOverdueReservationFlagging(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	res := seedResource(t, s, true)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := mustCreateReservation(t, s, res.ID, "alice",
		now.Add(-2*time.Hour), now.Add(-1*time.Hour), model.ReservationCheckedIn)
	mustCreateReservation(t, s, res.ID, "bob",
		now.Add(time.Hour), now.Add(2*time.Hour), model.ReservationCheckedIn)

	unflagged, err := s.OverdueReservations(ctx, now, true)
	require.NoError(t, err)
	require.Len(t, unflagged, 1)
	assert.Equal(t, r.ID, unflagged[0].ID)

	require.NoError(t, s.FlagReservationOverdue(ctx, r.ID, now))

	// Flagged rows drop out of the unflagged view but stay in the full one.
	unflagged, err = s.OverdueReservations(ctx, now, true)
	require.NoError(t, err)
	assert.Empty(t, unflagged)

	all, err := s.OverdueReservations(ctx, now, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Re-flagging does not move the original timestamp.
	require.NoError(t, s.FlagReservationOverdue(ctx, r.ID, now.Add(time.Hour)))
	got, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FlaggedOverdueAt)
	assert.True(t, got.FlaggedOverdueAt.Equal(now))
}

func TestNoShowCandidates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	res := seedResource(t, s, true)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	missed := mustCreateReservation(t, s, res.ID, "alice",
		now.Add(-time.Hour), now.Add(time.Hour), model.ReservationConfirmed)
	mustCreateReservation(t, s, res.ID, "bob",
		now.Add(time.Hour), now.Add(2*time.Hour), model.ReservationConfirmed)

	cutoff := now.Add(-15 * time.Minute)
	candidates, err := s.NoShowCandidates(ctx, cutoff, true)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, missed.ID, candidates[0].ID)

	require.NoError(t, s.FlagReservationNoShow(ctx, missed.ID, now))
	candidates, err = s.NoShowCandidates(ctx, cutoff, true)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestIssueKey(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := seedKey(t, s, "B2-0312-01", model.KeyAvailable)

	a := &model.KeyAssignment{
		ID: "asg-1", KeyID: key.ID, UserID: "alice",
		IssuedAt: time.Now().UTC(), Status: model.AssignmentActive,
	}
	require.NoError(t, s.IssueKey(ctx, a))

	got, err := s.GetKey(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyAssigned, got.Status)

	// A second issue against the same key loses.
	b := &model.KeyAssignment{
		ID: "asg-2", KeyID: key.ID, UserID: "bob",
		IssuedAt: time.Now().UTC(), Status: model.AssignmentActive,
	}
	err = s.IssueKey(ctx, b)
	assert.ErrorIs(t, err, alloc.ErrKeyUnavailable)

	lost := seedKey(t, s, "B2-0313-01", model.KeyLost)
	c := &model.KeyAssignment{
		ID: "asg-3", KeyID: lost.ID, UserID: "carol",
		IssuedAt: time.Now().UTC(), Status: model.AssignmentActive,
	}
	err = s.IssueKey(ctx, c)
	assert.ErrorIs(t, err, alloc.ErrKeyUnavailable)
}

func TestCloseAssignment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := seedKey(t, s, "B2-0312-01", model.KeyAvailable)

	a := &model.KeyAssignment{
		ID: "asg-1", KeyID: key.ID, UserID: "alice",
		IssuedAt: time.Now().UTC(), Status: model.AssignmentActive,
	}
	require.NoError(t, s.IssueKey(ctx, a))

	at := time.Now().UTC()
	closed, err := s.CloseAssignment(ctx, a.ID, at, model.AssignmentReturned, model.KeyAvailable)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentReturned, closed.Status)
	require.NotNil(t, closed.ReturnedAt)

	gotKey, err := s.GetKey(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyAvailable, gotKey.Status)

	// Closing again with the same status is a no-op.
	_, err = s.CloseAssignment(ctx, a.ID, at.Add(time.Minute), model.AssignmentReturned, model.KeyAvailable)
	assert.NoError(t, err)

	// Closing a returned assignment as lost is an invalid transition.
	_, err = s.CloseAssignment(ctx, a.ID, at, model.AssignmentLost, model.KeyLost)
	assert.ErrorIs(t, err, alloc.ErrInvalidTransition)
}

func TestCloseOverdueAssignment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := seedKey(t, s, "B2-0312-01", model.KeyAvailable)

	due := time.Now().UTC().Add(-time.Hour)
	a := &model.KeyAssignment{
		ID: "asg-1", KeyID: key.ID, UserID: "alice",
		IssuedAt: due.Add(-time.Hour), ExpectedReturnAt: &due,
		Status: model.AssignmentActive,
	}
	require.NoError(t, s.IssueKey(ctx, a))
	require.NoError(t, s.MarkAssignmentOverdue(ctx, a.ID))

	// Overdue is still open: a late return closes it normally.
	closed, err := s.CloseAssignment(ctx, a.ID, time.Now().UTC(), model.AssignmentReturned, model.KeyAvailable)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentReturned, closed.Status)
}

func TestOverdueAssignments(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	k1 := seedKey(t, s, "B2-0312-01", model.KeyAvailable)
	k2 := seedKey(t, s, "B2-0313-01", model.KeyAvailable)

	due := now.Add(-time.Hour)
	overdue := &model.KeyAssignment{
		ID: "asg-due", KeyID: k1.ID, UserID: "alice",
		IssuedAt: now.Add(-3 * time.Hour), ExpectedReturnAt: &due,
		Status: model.AssignmentActive,
	}
	require.NoError(t, s.IssueKey(ctx, overdue))

	// Open-ended custody is never overdue.
	openEnded := &model.KeyAssignment{
		ID: "asg-open", KeyID: k2.ID, UserID: "bob",
		IssuedAt: now.Add(-3 * time.Hour), Status: model.AssignmentActive,
	}
	require.NoError(t, s.IssueKey(ctx, openEnded))

	got, err := s.OverdueAssignments(ctx, now, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)

	require.NoError(t, s.MarkAssignmentOverdue(ctx, overdue.ID))

	got, err = s.OverdueAssignments(ctx, now, true)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.OverdueAssignments(ctx, now, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.AssignmentOverdue, got[0].Status)
}

func TestListAssignmentsFilters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	room := seedKey(t, s, "B2-0312-01", model.KeyAvailable)
	master := &model.DormitoryKey{
		Code: "B2-MASTER-01", Type: model.KeyTypeMaster,
		Status: model.KeyAvailable, Building: "B2", Room: "MASTER", Copy: 1,
	}
	require.NoError(t, s.CreateKey(ctx, master))

	require.NoError(t, s.IssueKey(ctx, &model.KeyAssignment{
		ID: "asg-room", KeyID: room.ID, UserID: "alice",
		IssuedAt: time.Now().UTC(), Status: model.AssignmentActive,
	}))
	require.NoError(t, s.IssueKey(ctx, &model.KeyAssignment{
		ID: "asg-master", KeyID: master.ID, UserID: "alice",
		IssuedAt: time.Now().UTC(), Status: model.AssignmentActive,
	}))

	open, err := s.ListAssignments(ctx, AssignmentFilter{UserID: "alice", OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	masters, err := s.ListAssignments(ctx, AssignmentFilter{UserID: "alice", KeyType: model.KeyTypeMaster, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, masters, 1)
	assert.Equal(t, "asg-master", masters[0].ID)

	_, err = s.CloseAssignment(ctx, "asg-room", time.Now().UTC(), model.AssignmentReturned, model.KeyAvailable)
	require.NoError(t, err)

	open, err = s.ListAssignments(ctx, AssignmentFilter{UserID: "alice", OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSetResourceActiveNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SetResourceActive(context.Background(), 999, false)
	assert.ErrorIs(t, err, alloc.ErrNotFound)
}

func TestEventLog(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordEvent(ctx, &model.Event{
		Topic: model.TopicReservationOverdue, SubjectID: "res-1", EmittedAt: now,
	}))
	require.NoError(t, s.RecordEvent(ctx, &model.Event{
		Topic: model.TopicKeyOverdue, SubjectID: "asg-1", EmittedAt: now.Add(time.Minute),
	}))

	all, err := s.ListEvents(ctx, "", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	keys, err := s.ListEvents(ctx, model.TopicKeyOverdue, time.Time{})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "asg-1", keys[0].SubjectID)
}

// TestReservationStatsQueries pins the aggregate queries against a mocked
// Postgres connection.
func TestReservationStatsQueries(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) as n FROM "reservations"`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).
			AddRow("confirmed", 2).
			AddRow("completed", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT start_time, end_time FROM "reservations"`)).
		WithArgs("completed").
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}).
			AddRow(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)))

	s := NewGormStore(gormDB, 5*time.Second)
	stats, err := s.ReservationStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus[model.ReservationConfirmed])
	assert.InDelta(t, 120.0, stats.AverageDurationMinutes, 0.01)
	assert.NoError(t, mock.ExpectationsWereMet())
}
