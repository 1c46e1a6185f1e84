package models

import (
	"time"

	"github.com/google/uuid"
)

// OptimalTime is one ranked weekly posting slot. DayOfWeek follows time.Weekday (Sunday=0).
// Rank is unique per (user, platform) and 1 is best.
type OptimalTime struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Platform       Platform   `json:"platform"`
	DayOfWeek      int        `json:"day_of_week"`
	HourOfDay      int        `json:"hour_of_day"`
	EngagementRate *float64   `json:"engagement_rate"`
	Confidence     int        `json:"confidence"`
	Rank           *int       `json:"rank"`
	SampleSize     int        `json:"sample_size"`
	IsDefault      bool       `json:"is_default"`
	AnalyzedAt     *time.Time `json:"analyzed_at,omitempty"`
}

// DefaultConfidence marks generic best-practice slots: better than nothing, not data-backed.
const DefaultConfidence = 25

type weeklySlot struct {
	day  time.Weekday
	hour int
}

var genericSlots = []weeklySlot{
	{time.Tuesday, 10}, {time.Wednesday, 12}, {time.Thursday, 9}, {time.Friday, 11},
	{time.Monday, 12}, {time.Saturday, 10}, {time.Sunday, 19},
}

var platformSlots = map[Platform][]weeklySlot{
	PlatformTwitter:   {{time.Wednesday, 9}, {time.Tuesday, 10}, {time.Thursday, 12}, {time.Friday, 9}, {time.Monday, 12}},
	PlatformInstagram: {{time.Wednesday, 11}, {time.Tuesday, 14}, {time.Friday, 10}, {time.Thursday, 19}, {time.Sunday, 10}},
	PlatformFacebook:  {{time.Wednesday, 13}, {time.Thursday, 13}, {time.Friday, 11}, {time.Tuesday, 9}, {time.Saturday, 12}},
	PlatformLinkedIn:  {{time.Tuesday, 8}, {time.Wednesday, 10}, {time.Thursday, 9}, {time.Tuesday, 12}, {time.Monday, 17}},
	PlatformTikTok:    {{time.Tuesday, 19}, {time.Thursday, 20}, {time.Friday, 17}, {time.Saturday, 11}, {time.Sunday, 20}},
	PlatformEmail:     {{time.Tuesday, 10}, {time.Thursday, 10}, {time.Wednesday, 14}},
}

// DefaultOptimalTimes returns best-practice slots for a platform, ranked. Used until an
// analysis has produced data-backed slots, so the caller never sees an empty list.
func DefaultOptimalTimes(p Platform) []OptimalTime {
	slots, ok := platformSlots[p]
	if !ok {
		slots = genericSlots
	}

	out := make([]OptimalTime, 0, len(slots))
	for i, s := range slots {
		rank := i + 1
		out = append(out, OptimalTime{
			Platform:   p,
			DayOfWeek:  int(s.day),
			HourOfDay:  s.hour,
			Confidence: DefaultConfidence,
			Rank:       &rank,
			IsDefault:  true,
		})
	}
	return out
}

// AnalysisJob statuses
const (
	AnalysisStatusPending   = "PENDING"
	AnalysisStatusRunning   = "RUNNING"
	AnalysisStatusCompleted = "COMPLETED"
	AnalysisStatusFailed    = "FAILED"
)

type AnalysisJob struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Status         string     `json:"status"`
	Timezone       string     `json:"timezone"`
	EventsAnalyzed int        `json:"events_analyzed"`
	SlotsProduced  int        `json:"slots_produced"`
	Partial        bool       `json:"partial"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == AnalysisStatusCompleted || j.Status == AnalysisStatusFailed
}

// Engagement event types written by the analytics collaborator.
const (
	EngagementView       = "VIEW"
	EngagementClick      = "CLICK"
	EngagementConversion = "CONVERSION"
)

// EngagementSlot is the aggregate of engagement events in one weekly hour for one platform.
type EngagementSlot struct {
	Platform    Platform
	DayOfWeek   int
	HourOfDay   int
	Views       int
	Clicks      int
	Conversions int
}

func (s EngagementSlot) Total() int {
	return s.Views + s.Clicks + s.Conversions
}
