package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/jobs"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	SlotsPerPlatform = 10
	// Events in one slot needed for full confidence.
	fullConfidenceEvents = 50
)

// AnalysisJobPayload is the payload of a schedule.analyze job.
type AnalysisJobPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

type AnalysisAccepted struct {
	Job              *models.AnalysisJob `json:"job"`
	AlreadyRunning   bool                `json:"alreadyRunning"`
	ReplacesExisting bool                `json:"replacesExisting"`
	Warning          string              `json:"warning,omitempty"`
}

type OptimalTimeService struct {
	engagement EngagementStore
	optimal    OptimalTimeStore
	analyses   AnalysisJobStore
	queue      jobs.Queue
	publisher  events.Publisher
	log        *zap.Logger

	lookbackDays int
	minEvents    int
	timeout      time.Duration
	now          func() time.Time
}

func NewOptimalTimeService(
	engagement EngagementStore,
	optimal OptimalTimeStore,
	analyses AnalysisJobStore,
	queue jobs.Queue,
	publisher events.Publisher,
	lookbackDays, minEvents int,
	timeout time.Duration,
	log *zap.Logger,
) *OptimalTimeService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	if minEvents <= 0 {
		minEvents = 30
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &OptimalTimeService{
		engagement:   engagement,
		optimal:      optimal,
		analyses:     analyses,
		queue:        queue,
		publisher:    publisher,
		log:          log,
		lookbackDays: lookbackDays,
		minEvents:    minEvents,
		timeout:      timeout,
		now:          time.Now,
	}
}

func (s *OptimalTimeService) since() time.Time {
	return s.now().AddDate(0, 0, -s.lookbackDays)
}

// RequestAnalysis queues an engagement analysis. A job that is already pending or
// running for the user is returned instead of starting a second one.
func (s *OptimalTimeService) RequestAnalysis(ctx context.Context, userID uuid.UUID, timezone string) (*AnalysisAccepted, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	verr := &ValidationError{}
	if loadLocation(timezone, "timezone", verr) == nil {
		return nil, verr
	}

	active, err := s.analyses.GetActiveForUser(ctx, userID)
	switch {
	case err == nil:
		return &AnalysisAccepted{Job: active, AlreadyRunning: true}, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("check active analysis: %w", err)
	}

	n, err := s.engagement.CountSince(ctx, userID, s.since())
	if err != nil {
		return nil, fmt.Errorf("count engagement events: %w", err)
	}
	if n < s.minEvents {
		return nil, &InsufficientDataError{Found: n, Required: s.minEvents, LookbackDays: s.lookbackDays}
	}

	existing, err := s.optimal.CountForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count stored optimal times: %w", err)
	}

	job := &models.AnalysisJob{UserID: userID, Status: models.AnalysisStatusPending, Timezone: timezone}
	if err := s.analyses.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create analysis job: %w", err)
	}
	if _, err := jobs.Enqueue(ctx, s.queue, jobs.TypeScheduleAnalyze, AnalysisJobPayload{JobID: job.ID}); err != nil {
		if ferr := s.analyses.Fail(ctx, job.ID, "could not queue analysis"); ferr != nil {
			s.log.Error("failed to mark analysis failed", zap.String("job_id", job.ID.String()), zap.Error(ferr))
		}
		return nil, fmt.Errorf("queue analysis: %w", err)
	}

	accepted := &AnalysisAccepted{Job: job}
	if existing > 0 {
		accepted.ReplacesExisting = true
		accepted.Warning = fmt.Sprintf("completing this analysis replaces your %d stored optimal time slots", existing)
	}
	s.log.Info("analysis queued",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("events", n),
	)
	return accepted, nil
}

func (s *OptimalTimeService) HandleAnalysisJob(ctx context.Context, job jobs.Job) error {
	var payload AnalysisJobPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return s.RunAnalysis(ctx, payload.JobID)
}

// RunAnalysis aggregates engagement into weekly slots, ranks them per platform and
// replaces the user's stored slots. When the deadline hits mid-way the platforms
// finished so far are kept and the job is marked partial.
func (s *OptimalTimeService) RunAnalysis(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.analyses.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load analysis job: %w", err)
	}
	if err := s.analyses.MarkRunning(ctx, jobID); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			s.log.Info("analysis job already handled", zap.String("job_id", jobID.String()))
			return nil
		}
		return fmt.Errorf("start analysis job: %w", err)
	}

	persistCtx := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slots, err := s.engagement.AggregateSlots(runCtx, job.UserID, s.since(), job.Timezone)
	if err != nil {
		s.fail(persistCtx, job, fmt.Sprintf("aggregate engagement: %v", err))
		return fmt.Errorf("aggregate engagement: %w", err)
	}

	analyzedAt := s.now().UTC()
	ranked, partial := RankSlots(runCtx, slots, SlotsPerPlatform)
	if len(ranked) == 0 {
		msg := "no engagement slots to rank"
		if partial {
			msg = "analysis timed out before any platform was ranked"
		}
		s.fail(persistCtx, job, msg)
		return nil
	}
	for i := range ranked {
		ranked[i].UserID = job.UserID
		ranked[i].AnalyzedAt = &analyzedAt
	}

	if err := s.optimal.ReplaceForUser(persistCtx, job.UserID, ranked); err != nil {
		s.fail(persistCtx, job, fmt.Sprintf("store optimal times: %v", err))
		return fmt.Errorf("store optimal times: %w", err)
	}

	total := 0
	for _, sl := range slots {
		total += sl.Total()
	}
	job.EventsAnalyzed = total
	job.SlotsProduced = len(ranked)
	job.Partial = partial
	job.Status = models.AnalysisStatusCompleted
	if err := s.analyses.Complete(persistCtx, job); err != nil {
		return fmt.Errorf("complete analysis job: %w", err)
	}

	s.publishCompleted(persistCtx, job)
	s.log.Info("analysis completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("events", total),
		zap.Int("slots", len(ranked)),
		zap.Bool("partial", partial),
	)
	return nil
}

// fail moves job to FAILED and announces it. It reports false when the job had
// already finished or the update could not be stored; nothing is published then.
func (s *OptimalTimeService) fail(ctx context.Context, job *models.AnalysisJob, msg string) bool {
	if err := s.analyses.Fail(ctx, job.ID, msg); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			s.log.Debug("analysis already finished", zap.String("job_id", job.ID.String()))
		} else {
			s.log.Error("failed to mark analysis failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		return false
	}
	job.Status = models.AnalysisStatusFailed
	job.Error = &msg
	s.publishCompleted(ctx, job)
	return true
}

func (s *OptimalTimeService) publishCompleted(ctx context.Context, job *models.AnalysisJob) {
	err := s.publisher.Publish(ctx, events.StreamSchedule, events.Event{
		Type:   events.EventAnalysisCompleted,
		UserID: job.UserID,
		Payload: map[string]any{
			"job_id":         job.ID.String(),
			"status":         job.Status,
			"slots_produced": job.SlotsProduced,
			"partial":        job.Partial,
		},
	})
	if err != nil {
		s.log.Warn("failed to publish analysis event", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

// SlotScore computes the engagement rate (nil without views) and confidence of a slot.
func SlotScore(sl models.EngagementSlot) (*float64, int) {
	var rate *float64
	if sl.Views > 0 {
		r := math.Round(float64(sl.Clicks)/float64(sl.Views)*100*100) / 100
		rate = &r
	}
	confidence := int(math.Round(100 * float64(sl.Total()) / fullConfidenceEvents))
	if confidence > 100 {
		confidence = 100
	}
	return rate, confidence
}

// RankSlots ranks each platform's slots and keeps the best perPlatform of them. Ranks
// run 1..n within a platform. Platforms are processed in name order; when ctx ends
// the remaining platforms are skipped and partial is true.
func RankSlots(ctx context.Context, slots []models.EngagementSlot, perPlatform int) (out []models.OptimalTime, partial bool) {
	byPlatform := map[models.Platform][]models.OptimalTime{}
	for _, sl := range slots {
		if sl.Total() == 0 {
			continue
		}
		rate, confidence := SlotScore(sl)
		byPlatform[sl.Platform] = append(byPlatform[sl.Platform], models.OptimalTime{
			Platform:       sl.Platform,
			DayOfWeek:      sl.DayOfWeek,
			HourOfDay:      sl.HourOfDay,
			EngagementRate: rate,
			Confidence:     confidence,
			SampleSize:     sl.Total(),
		})
	}

	platforms := make([]models.Platform, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	for _, p := range platforms {
		if ctx.Err() != nil {
			return out, true
		}
		ranked := byPlatform[p]
		sort.Slice(ranked, func(i, j int) bool { return slotLess(ranked[i], ranked[j]) })
		if len(ranked) > perPlatform {
			ranked = ranked[:perPlatform]
		}
		for i := range ranked {
			rank := i + 1
			ranked[i].Rank = &rank
		}
		out = append(out, ranked...)
	}
	return out, false
}

func slotLess(a, b models.OptimalTime) bool {
	switch {
	case a.EngagementRate != nil && b.EngagementRate == nil:
		return true
	case a.EngagementRate == nil && b.EngagementRate != nil:
		return false
	case a.EngagementRate != nil && *a.EngagementRate != *b.EngagementRate:
		return *a.EngagementRate > *b.EngagementRate
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.SampleSize != b.SampleSize {
		return a.SampleSize > b.SampleSize
	}
	if a.DayOfWeek != b.DayOfWeek {
		return a.DayOfWeek < b.DayOfWeek
	}
	return a.HourOfDay < b.HourOfDay
}

// GetOptimalTimes returns the stored ranking, or the platform defaults when the user
// has never been analyzed. The result is never empty.
func (s *OptimalTimeService) GetOptimalTimes(ctx context.Context, userID uuid.UUID, platform *models.Platform) ([]models.OptimalTime, error) {
	stored, err := s.optimal.ListForUser(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("load optimal times: %w", err)
	}
	if len(stored) > 0 {
		return stored, nil
	}

	if platform != nil {
		return models.DefaultOptimalTimes(*platform), nil
	}
	var out []models.OptimalTime
	for _, p := range models.SocialPlatforms() {
		out = append(out, models.DefaultOptimalTimes(p)...)
	}
	return out, nil
}

func (s *OptimalTimeService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.analyses.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *OptimalTimeService) LatestJob(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	return s.analyses.LatestForUser(ctx, userID)
}

// WaitForJob polls the job until it is terminal. When attempts run out the last
// observed job is returned with jobs.ErrStillProcessing.
func (s *OptimalTimeService) WaitForJob(ctx context.Context, userID, jobID uuid.UUID, cfg jobs.PollConfig) (*models.AnalysisJob, error) {
	return jobs.Poll(ctx, func(ctx context.Context) (*models.AnalysisJob, error) {
		return s.GetJob(ctx, userID, jobID)
	}, cfg)
}

// ReapStale fails analysis jobs that stayed pending or running past olderThan.
func (s *OptimalTimeService) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.analyses.ListStale(ctx, s.now().Add(-olderThan), 100)
	if err != nil {
		return 0, fmt.Errorf("list stale analysis jobs: %w", err)
	}
	reaped := 0
	for i := range stale {
		if s.fail(ctx, &stale[i], "analysis timed out") {
			reaped++
		}
	}
	return reaped, nil
}
