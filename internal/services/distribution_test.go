package services

import (
	"errors"
	"testing"
	"time"

	"github.com/pagecraft/backend/internal/models"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestParseLocalTime(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name     string
		input    string
		hour     int
		expected time.Time
		wantErr  bool
	}{
		{"rfc3339 utc", "2030-03-04T15:00:00Z", 9, time.Date(2030, 3, 4, 15, 0, 0, 0, time.UTC), false},
		{"rfc3339 offset", "2030-03-04T10:00:00-05:00", 9, time.Date(2030, 3, 4, 15, 0, 0, 0, time.UTC), false},
		{"local minutes", "2030-03-04T10:00", 9, time.Date(2030, 3, 4, 10, 0, 0, 0, ny), false},
		{"local seconds", "2030-07-04T10:30:15", 9, time.Date(2030, 7, 4, 10, 30, 15, 0, ny), false},
		{"date only start", "2030-03-04", DateOnlyStartHour, time.Date(2030, 3, 4, 9, 0, 0, 0, ny), false},
		{"date only end", "2030-03-04", DateOnlyEndHour, time.Date(2030, 3, 4, 21, 0, 0, 0, ny), false},
		{"garbage", "next tuesday", 9, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocalTime(tt.input, ny, tt.hour)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLocalTime(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("ParseLocalTime(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseLocalTimeRoundTripsThroughUTC(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	got, err := ParseLocalTime("2030-03-04T10:00", ny, DateOnlyStartHour)
	if err != nil {
		t.Fatal(err)
	}
	utc := got.UTC()
	if utc.Hour() != 15 {
		t.Errorf("10:00 EST stored as %v, want 15:00 UTC", utc)
	}
	if back := utc.In(ny); back.Hour() != 10 || back.Minute() != 0 {
		t.Errorf("round trip = %v, want 10:00 local", back)
	}
}

func TestDistributeEvenly(t *testing.T) {
	start := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		end      time.Time
		count    int
		minGap   time.Duration
		wantStep time.Duration
		wantLast time.Time
	}{
		{"spans range", start.Add(12 * time.Hour), 7, 0, 2 * time.Hour, start.Add(12 * time.Hour)},
		{"min gap extends end", start.Add(2 * time.Hour), 3, 4 * time.Hour, 4 * time.Hour, start.Add(8 * time.Hour)},
		{"step truncated to minutes", start.Add(10*time.Hour + time.Minute), 4, 0, 3*time.Hour + 20*time.Minute, start.Add(10 * time.Hour)},
		{"same start and end", start, 2, time.Hour, time.Hour, start.Add(time.Hour)},
		{"tight window keeps one minute apart", start.Add(10 * time.Minute), 20, 0, time.Minute, start.Add(19 * time.Minute)},
		{"zero span without gap", start, 3, 0, time.Minute, start.Add(2 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistributeEvenly(start, tt.end, tt.count, tt.minGap)
			if len(got) != tt.count {
				t.Fatalf("got %d instants, want %d", len(got), tt.count)
			}
			if !got[0].Equal(start) {
				t.Errorf("first = %v, want %v", got[0], start)
			}
			for i := 1; i < len(got); i++ {
				if step := got[i].Sub(got[i-1]); step != tt.wantStep {
					t.Errorf("step %d = %v, want %v", i, step, tt.wantStep)
				}
				if got[i].Sub(got[i-1]) < tt.minGap {
					t.Errorf("gap %d below minimum", i)
				}
			}
			if last := got[len(got)-1]; !last.Equal(tt.wantLast) {
				t.Errorf("last = %v, want %v", last, tt.wantLast)
			}
		})
	}
}

func rankedSlot(platform models.Platform, rank int, day time.Weekday, hour int) models.OptimalTime {
	return models.OptimalTime{Platform: platform, Rank: &rank, DayOfWeek: int(day), HourOfDay: hour}
}

func TestNextOccurrence(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// Wednesday 2030-03-06 00:00 local
	from := time.Date(2030, 3, 6, 0, 0, 0, 0, ny)

	tests := []struct {
		name     string
		day      time.Weekday
		hour     int
		expected time.Time
	}{
		{"same day later hour", time.Wednesday, 9, time.Date(2030, 3, 6, 9, 0, 0, 0, ny)},
		{"later in week", time.Friday, 14, time.Date(2030, 3, 8, 14, 0, 0, 0, ny)},
		{"wraps to next week", time.Monday, 8, time.Date(2030, 3, 11, 8, 0, 0, 0, ny)},
		{"exactly from", time.Wednesday, 0, from},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextOccurrence(from, ny, tt.day, tt.hour); !got.Equal(tt.expected) {
				t.Errorf("NextOccurrence = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDistributeOptimalUsesRankOrderAndSortsResult(t *testing.T) {
	loc := time.UTC
	from := time.Date(2030, 3, 6, 0, 0, 0, 0, loc) // Wednesday
	slots := []models.OptimalTime{
		rankedSlot(models.PlatformTwitter, 3, time.Monday, 12),
		rankedSlot(models.PlatformTwitter, 1, time.Friday, 9),
		rankedSlot(models.PlatformTwitter, 2, time.Wednesday, 18),
	}

	got, err := DistributeOptimal(models.PlatformTwitter, slots, 2, from, loc, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{
		time.Date(2030, 3, 6, 18, 0, 0, 0, loc),
		time.Date(2030, 3, 8, 9, 0, 0, 0, loc),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("instant %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDistributeOptimalSkipsSlotsInsideMinGap(t *testing.T) {
	loc := time.UTC
	from := time.Date(2030, 3, 6, 0, 0, 0, 0, loc)
	slots := []models.OptimalTime{
		rankedSlot(models.PlatformTwitter, 1, time.Wednesday, 9),
		rankedSlot(models.PlatformTwitter, 2, time.Wednesday, 10),
		rankedSlot(models.PlatformTwitter, 3, time.Thursday, 9),
	}

	got, err := DistributeOptimal(models.PlatformTwitter, slots, 2, from, loc, 4*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !got[1].Equal(time.Date(2030, 3, 7, 9, 0, 0, 0, loc)) {
		t.Errorf("second instant = %v, want Thursday 09:00", got[1])
	}
	if got[1].Sub(got[0]) < 4*time.Hour {
		t.Error("min gap violated")
	}
}

func TestDistributeOptimalInsufficientSlots(t *testing.T) {
	from := time.Date(2030, 3, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		slots     []models.OptimalTime
		count     int
		minGap    time.Duration
		available int
	}{
		{"fewer slots than posts", []models.OptimalTime{rankedSlot(models.PlatformTikTok, 1, time.Monday, 9)}, 2, 0, 1},
		{"gap rejects candidates", []models.OptimalTime{
			rankedSlot(models.PlatformTikTok, 1, time.Monday, 9),
			rankedSlot(models.PlatformTikTok, 2, time.Monday, 10),
		}, 2, 3 * time.Hour, 1},
		{"duplicate slot", []models.OptimalTime{
			rankedSlot(models.PlatformTikTok, 1, time.Monday, 9),
			rankedSlot(models.PlatformTikTok, 2, time.Monday, 9),
		}, 2, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DistributeOptimal(models.PlatformTikTok, tt.slots, tt.count, from, time.UTC, tt.minGap)
			var ins *InsufficientOptimalTimesError
			if !errors.As(err, &ins) {
				t.Fatalf("err = %v, want InsufficientOptimalTimesError", err)
			}
			if ins.Available != tt.available || ins.Required != tt.count {
				t.Errorf("got %d/%d, want %d/%d", ins.Available, ins.Required, tt.available, tt.count)
			}
		})
	}
}

func TestValidateManual(t *testing.T) {
	base := time.Date(2030, 3, 6, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		times  []time.Time
		minGap time.Duration
		fields []string
	}{
		{"spaced", []time.Time{base, base.Add(3 * time.Hour)}, 2 * time.Hour, nil},
		{"unordered but spaced", []time.Time{base.Add(5 * time.Hour), base}, 2 * time.Hour, nil},
		{"duplicate", []time.Time{base, base}, 0, []string{"posts[1].scheduledFor"}},
		{"too close", []time.Time{base.Add(time.Hour), base}, 2 * time.Hour, []string{"posts[0].scheduledFor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateManual(tt.times, tt.minGap)
			if len(errs) != len(tt.fields) {
				t.Fatalf("got %v, want fields %v", errs, tt.fields)
			}
			for i, fe := range errs {
				if fe.Field != tt.fields[i] {
					t.Errorf("field %d = %q, want %q", i, fe.Field, tt.fields[i])
				}
			}
		})
	}
}
