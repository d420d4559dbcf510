package alloc

import (
	"fmt"
	"time"
)

// TimeWindow is a half-open interval [Start, End). Two windows that touch at
// an endpoint do not overlap.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a validated window. Both endpoints are required and the
// start must precede the end. Endpoints are normalized to UTC.
func NewWindow(start, end time.Time) (TimeWindow, error) {
	if start.IsZero() || end.IsZero() {
		return TimeWindow{}, fmt.Errorf("window endpoints are required: %w", ErrInvalidWindow)
	}
	if !start.Before(end) {
		return TimeWindow{}, fmt.Errorf("window start %s is not before end %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), ErrInvalidWindow)
	}
	return TimeWindow{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two half-open intervals intersect.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the length of the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// DayBounds returns the half-open local calendar day [midnight, next
// midnight) that contains t. Daily booking limits are bucketed by the start
// time's local date. Both bounds come back in UTC so stored instants compare
// uniformly regardless of the driver's text encoding.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC()
}
