package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/pagecraft/backend/internal/models"
)

const (
	StrategyEvenly  = "EVENLY"
	StrategyOptimal = "OPTIMAL"
	StrategyManual  = "MANUAL"
)

// Wall-clock hours used when a range bound is given as a bare date.
const (
	DateOnlyStartHour = 9
	DateOnlyEndHour   = 21
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseLocalTime reads a user-supplied instant. Values with an offset (RFC 3339) are
// absolute. Values without one are wall-clock times in loc. A bare date resolves to
// dateOnlyHour:00 local time on that day.
func ParseLocalTime(value string, loc *time.Location, dateOnlyHour int) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if d, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), dateOnlyHour, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, expected RFC 3339, YYYY-MM-DDTHH:MM or YYYY-MM-DD", value)
}

// DistributeEvenly spaces count instants from start to end inclusive. The step is
// truncated to whole minutes and never drops below one minute or minGap. When the
// step is raised the schedule runs past end.
func DistributeEvenly(start, end time.Time, count int, minGap time.Duration) []time.Time {
	if count <= 0 {
		return nil
	}
	if count == 1 {
		return []time.Time{start}
	}

	step := (end.Sub(start) / time.Duration(count-1)).Truncate(time.Minute)
	step = max(step, time.Minute, minGap)

	out := make([]time.Time, count)
	for i := range out {
		out[i] = start.Add(step * time.Duration(i))
	}
	return out
}

// NextOccurrence returns the first time at or after from that falls on the given
// weekday and hour in loc.
func NextOccurrence(from time.Time, loc *time.Location, day time.Weekday, hour int) time.Time {
	f := from.In(loc)
	ahead := (int(day) - int(f.Weekday()) + 7) % 7
	c := time.Date(f.Year(), f.Month(), f.Day()+ahead, hour, 0, 0, 0, loc)
	if c.Before(from) {
		c = time.Date(f.Year(), f.Month(), f.Day()+ahead+7, hour, 0, 0, 0, loc)
	}
	return c
}

// StartOfTomorrow is local midnight after now.
func StartOfTomorrow(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// DistributeOptimal assigns count instants from ranked weekly slots. Slots are walked in
// rank order; each contributes its next occurrence at or after from unless that lands
// within minGap of an instant already taken. The result is sorted ascending.
func DistributeOptimal(platform models.Platform, slots []models.OptimalTime, count int, from time.Time, loc *time.Location, minGap time.Duration) ([]time.Time, error) {
	if len(slots) < count {
		return nil, &InsufficientOptimalTimesError{Platform: platform, Available: len(slots), Required: count}
	}

	ranked := make([]models.OptimalTime, len(slots))
	copy(ranked, slots)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Rank, ranked[j].Rank
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		}
		return *ri < *rj
	})

	assigned := make([]time.Time, 0, count)
	for _, slot := range ranked {
		if len(assigned) == count {
			break
		}
		c := NextOccurrence(from, loc, time.Weekday(slot.DayOfWeek), slot.HourOfDay)
		if conflicts(c, assigned, minGap) {
			continue
		}
		assigned = append(assigned, c)
	}

	if len(assigned) < count {
		return nil, &InsufficientOptimalTimesError{Platform: platform, Available: len(assigned), Required: count}
	}
	sort.Slice(assigned, func(i, j int) bool { return assigned[i].Before(assigned[j]) })
	return assigned, nil
}

func conflicts(c time.Time, taken []time.Time, minGap time.Duration) bool {
	for _, t := range taken {
		d := c.Sub(t)
		if d < 0 {
			d = -d
		}
		if d == 0 || d < minGap {
			return true
		}
	}
	return false
}

// ValidateManual checks user-chosen instants: no two posts at the same instant and,
// in chronological order, at least minGap between neighbours.
func ValidateManual(times []time.Time, minGap time.Duration) []FieldError {
	idx := make([]int, len(times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return times[idx[a]].Before(times[idx[b]]) })

	var errs []FieldError
	for k := 1; k < len(idx); k++ {
		prev, cur := idx[k-1], idx[k]
		gap := times[cur].Sub(times[prev])
		field := fmt.Sprintf("posts[%d].scheduledFor", cur)
		switch {
		case gap == 0:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("is the same instant as posts[%d]", prev)})
		case gap < minGap:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("must be at least %s after posts[%d]", formatGap(minGap), prev)})
		}
	}
	return errs
}

func formatGap(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
