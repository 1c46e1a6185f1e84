package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	MinBulkPosts = 2
	MaxBulkPosts = 20
)

type BulkPostInput struct {
	Content      string   `json:"content" validate:"min_nonspace=10,max=5000"`
	MediaURLs    []string `json:"mediaUrls" validate:"max=10,dive,url"`
	ScheduledFor string   `json:"scheduledFor"`
}

type BulkScheduleConfig struct {
	Strategy        string `json:"strategy" validate:"required,oneof=EVENLY OPTIMAL MANUAL"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	MinHoursBetween int    `json:"minHoursBetween" validate:"min=0,max=168"`
	AutoPost        bool   `json:"autoPost"`
	Timezone        string `json:"timezone" validate:"required"`
}

type BulkScheduleInput struct {
	Posts    []BulkPostInput    `json:"posts" validate:"min=2,max=20,dive"`
	Platform string             `json:"platform" validate:"required"`
	PostType string             `json:"postType"`
	Config   BulkScheduleConfig `json:"config"`
}

type ScheduleSummary struct {
	Total        int                     `json:"total"`
	ByPlatform   map[models.Platform]int `json:"byPlatform"`
	StrategyUsed string                  `json:"strategyUsed"`
	FirstAt      time.Time               `json:"firstAt"`
	LastAt       time.Time               `json:"lastAt"`
}

type BulkScheduleResult struct {
	Summary ScheduleSummary         `json:"summary"`
	Posts   []*models.ScheduledPost `json:"posts"`
}

type SchedulePostInput struct {
	Content         string     `json:"content" validate:"min_nonspace=1,max=5000"`
	Platform        string     `json:"platform" validate:"required"`
	PostType        string     `json:"postType"`
	ScheduledFor    string     `json:"scheduledFor" validate:"required"`
	Timezone        string     `json:"timezone"`
	AutoPost        bool       `json:"autoPost"`
	MediaURLs       []string   `json:"mediaUrls" validate:"max=10,dive,url"`
	CampaignAssetID *uuid.UUID `json:"campaignAssetId"`
}

type ScheduleService struct {
	posts     ScheduledPostStore
	assets    AssetStore
	optimal   OptimalTimeStore
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewScheduleService(
	posts ScheduledPostStore,
	assets AssetStore,
	optimal OptimalTimeStore,
	audit AuditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *ScheduleService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ScheduleService{
		posts:     posts,
		assets:    assets,
		optimal:   optimal,
		audit:     audit,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

type bulkPlan struct {
	platform models.Platform
	postType models.PostType
	loc      *time.Location
	minGap   time.Duration
	start    time.Time
	end      time.Time
	manual   []time.Time
}

func parsePostType(raw string, field string, verr *ValidationError) models.PostType {
	if strings.TrimSpace(raw) == "" {
		return models.PostTypePost
	}
	pt, ok := models.ParsePostType(raw)
	if !ok {
		verr.Add(field, "must be one of: POST, STORY, REEL, VIDEO, THREAD, CAROUSEL")
	}
	return pt
}

func loadLocation(name string, field string, verr *ValidationError) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil || name == "" || strings.EqualFold(name, "local") {
		if name != "" {
			verr.Add(field, "must be a valid IANA time zone, got %q", name)
		}
		return nil
	}
	return loc
}

// validateBulk collects every violation of the request into one ValidationError.
func (s *ScheduleService) validateBulk(in *BulkScheduleInput) (*bulkPlan, error) {
	verr := &ValidationError{}
	validateStruct(in, verr)

	plan := &bulkPlan{minGap: time.Duration(in.Config.MinHoursBetween) * time.Hour}
	if in.Platform != "" {
		p, err := models.ParsePlatform(in.Platform)
		if err != nil {
			verr.Add("platform", "must be a supported platform, got %q", in.Platform)
		}
		plan.platform = p
	}
	plan.postType = parsePostType(in.PostType, "postType", verr)
	plan.loc = loadLocation(in.Config.Timezone, "config.timezone", verr)
	if plan.loc == nil {
		return nil, verr
	}

	now := s.now()
	switch in.Config.Strategy {
	case StrategyEvenly:
		plan.start = s.parseRangeBound(in.Config.StartDate, "config.startDate", plan.loc, DateOnlyStartHour, verr)
		plan.end = s.parseRangeBound(in.Config.EndDate, "config.endDate", plan.loc, DateOnlyEndHour, verr)
		if !plan.start.IsZero() && !plan.start.After(now) {
			verr.Add("config.startDate", "must be in the future")
		}
		if !plan.start.IsZero() && !plan.end.IsZero() && plan.end.Before(plan.start) {
			verr.Add("config.endDate", "must not be before startDate")
		}

	case StrategyOptimal:
		if in.Config.StartDate != "" {
			plan.start = s.parseRangeBound(in.Config.StartDate, "config.startDate", plan.loc, 0, verr)
			if !plan.start.IsZero() && !plan.start.After(now) {
				verr.Add("config.startDate", "must be in the future")
			}
		}

	case StrategyManual:
		plan.manual = make([]time.Time, len(in.Posts))
		valid := true
		for i, p := range in.Posts {
			field := fmt.Sprintf("posts[%d].scheduledFor", i)
			if p.ScheduledFor == "" {
				verr.Add(field, "is required for the MANUAL strategy")
				valid = false
				continue
			}
			t, err := ParseLocalTime(p.ScheduledFor, plan.loc, DateOnlyStartHour)
			if err != nil {
				verr.Add(field, "%v", err)
				valid = false
				continue
			}
			if t.Before(now.Add(models.MinScheduleLead)) {
				verr.Add(field, "must be at least 5 minutes in the future")
			}
			plan.manual[i] = t
		}
		if valid {
			verr.Fields = append(verr.Fields, ValidateManual(plan.manual, plan.minGap)...)
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *ScheduleService) parseRangeBound(value, field string, loc *time.Location, dateOnlyHour int, verr *ValidationError) time.Time {
	if value == "" {
		verr.Add(field, "is required for the EVENLY strategy")
		return time.Time{}
	}
	t, err := ParseLocalTime(value, loc, dateOnlyHour)
	if err != nil {
		verr.Add(field, "%v", err)
		return time.Time{}
	}
	return t
}

// BulkSchedule validates a batch, computes one instant per post with the chosen
// strategy and stores all posts atomically.
func (s *ScheduleService) BulkSchedule(ctx context.Context, userID uuid.UUID, in BulkScheduleInput) (*BulkScheduleResult, error) {
	plan, err := s.validateBulk(&in)
	if err != nil {
		return nil, err
	}

	var times []time.Time
	switch in.Config.Strategy {
	case StrategyEvenly:
		times = DistributeEvenly(plan.start, plan.end, len(in.Posts), plan.minGap)
	case StrategyOptimal:
		times, err = s.optimalTimes(ctx, userID, plan, len(in.Posts))
		if err != nil {
			return nil, err
		}
	case StrategyManual:
		times = plan.manual
	}

	posts := make([]*models.ScheduledPost, len(in.Posts))
	for i, p := range in.Posts {
		posts[i] = &models.ScheduledPost{
			UserID:       userID,
			Content:      strings.TrimSpace(p.Content),
			Platform:     plan.platform,
			PostType:     plan.postType,
			ScheduledFor: times[i].UTC(),
			Timezone:     plan.loc.String(),
			Status:       models.PostStatusPending,
			AutoPost:     in.Config.AutoPost,
			MediaURLs:    p.MediaURLs,
		}
	}

	if err := s.posts.InsertBatch(ctx, posts); err != nil {
		return nil, fmt.Errorf("store scheduled posts: %w", err)
	}

	summary := summarize(posts, in.Config.Strategy)
	s.log.Info("bulk schedule created",
		zap.String("user_id", userID.String()),
		zap.String("platform", string(plan.platform)),
		zap.String("strategy", in.Config.Strategy),
		zap.Int("posts", summary.Total),
	)
	s.publish(ctx, userID, map[string]any{
		"total":    summary.Total,
		"strategy": summary.StrategyUsed,
		"first_at": summary.FirstAt,
		"last_at":  summary.LastAt,
	})
	s.logAudit(ctx, userID, "posts_bulk_scheduled", nil, map[string]any{
		"platform": plan.platform,
		"strategy": in.Config.Strategy,
		"total":    summary.Total,
	})

	return &BulkScheduleResult{Summary: summary, Posts: posts}, nil
}

func (s *ScheduleService) optimalTimes(ctx context.Context, userID uuid.UUID, plan *bulkPlan, count int) ([]time.Time, error) {
	platform := plan.platform
	stored, err := s.optimal.ListForUser(ctx, userID, &platform)
	if err != nil {
		return nil, fmt.Errorf("load optimal times: %w", err)
	}

	var ranked []models.OptimalTime
	for _, slot := range stored {
		if slot.Rank != nil && !slot.IsDefault {
			ranked = append(ranked, slot)
		}
	}

	from := StartOfTomorrow(s.now(), plan.loc)
	if plan.start.After(from) {
		from = plan.start
	}
	return DistributeOptimal(platform, ranked, count, from, plan.loc, plan.minGap)
}

func summarize(posts []*models.ScheduledPost, strategy string) ScheduleSummary {
	sum := ScheduleSummary{
		Total:        len(posts),
		ByPlatform:   map[models.Platform]int{},
		StrategyUsed: strategy,
	}
	for i, p := range posts {
		sum.ByPlatform[p.Platform]++
		if i == 0 || p.ScheduledFor.Before(sum.FirstAt) {
			sum.FirstAt = p.ScheduledFor
		}
		if i == 0 || p.ScheduledFor.After(sum.LastAt) {
			sum.LastAt = p.ScheduledFor
		}
	}
	return sum
}

// SchedulePost stores one post. A linked campaign asset must belong to the user and
// moves to SCHEDULED together with the insert.
func (s *ScheduleService) SchedulePost(ctx context.Context, userID uuid.UUID, in SchedulePostInput) (*models.ScheduledPost, error) {
	verr := &ValidationError{}
	validateStruct(&in, verr)

	var platform models.Platform
	if in.Platform != "" {
		p, err := models.ParsePlatform(in.Platform)
		if err != nil {
			verr.Add("platform", "must be a supported platform, got %q", in.Platform)
		}
		platform = p
	}
	postType := parsePostType(in.PostType, "postType", verr)

	tz := in.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc := loadLocation(tz, "timezone", verr)

	var at time.Time
	if loc != nil && in.ScheduledFor != "" {
		t, err := ParseLocalTime(in.ScheduledFor, loc, DateOnlyStartHour)
		switch {
		case err != nil:
			verr.Add("scheduledFor", "%v", err)
		case t.Before(s.now().Add(models.MinScheduleLead)):
			verr.Add("scheduledFor", "must be at least 5 minutes in the future")
		}
		at = t
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var assetStatus *models.AssetStatus
	if in.CampaignAssetID != nil {
		if _, err := s.assets.GetForUser(ctx, *in.CampaignAssetID, userID); err != nil {
			return nil, fmt.Errorf("load campaign asset: %w", err)
		}
		scheduled := models.AssetStatusScheduled
		assetStatus = &scheduled
	}

	post := &models.ScheduledPost{
		UserID:          userID,
		CampaignAssetID: in.CampaignAssetID,
		Content:         strings.TrimSpace(in.Content),
		Platform:        platform,
		PostType:        postType,
		ScheduledFor:    at.UTC(),
		Timezone:        loc.String(),
		Status:          models.PostStatusPending,
		AutoPost:        in.AutoPost,
		MediaURLs:       in.MediaURLs,
	}
	if err := s.posts.Create(ctx, post, assetStatus); err != nil {
		return nil, fmt.Errorf("store scheduled post: %w", err)
	}

	s.publish(ctx, userID, map[string]any{
		"total":    1,
		"strategy": StrategyManual,
		"first_at": post.ScheduledFor,
		"last_at":  post.ScheduledFor,
	})
	s.logAudit(ctx, userID, "post_scheduled", &post.ID, map[string]any{"platform": platform})
	return post, nil
}

func (s *ScheduleService) ListPosts(ctx context.Context, userID uuid.UUID, f repositories.PostFilter) ([]models.ScheduledPost, error) {
	f.UserID = userID
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}
	return s.posts.List(ctx, f)
}

// CancelPost moves a PENDING post to CANCELLED. Posts already picked up by the
// publisher cannot be cancelled.
func (s *ScheduleService) CancelPost(ctx context.Context, userID, id uuid.UUID) (*models.ScheduledPost, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrNotFound
	}
	if !post.Status.CanCancel() {
		return nil, fmt.Errorf("%w: post is %s", ErrInvalidTransition, post.Status)
	}

	err = s.posts.UpdateStatus(ctx, id, models.PostStatusPending, models.PostStatusCancelled)
	if errors.Is(err, repositories.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: post is no longer %s", ErrInvalidTransition, models.PostStatusPending)
	}
	if err != nil {
		return nil, err
	}

	post.Status = models.PostStatusCancelled
	s.logAudit(ctx, userID, "post_cancelled", &post.ID, nil)
	return post, nil
}

func (s *ScheduleService) publish(ctx context.Context, userID uuid.UUID, payload map[string]any) {
	err := s.publisher.Publish(ctx, events.StreamSchedule, events.Event{
		Type:    events.EventPostsScheduled,
		UserID:  userID,
		Payload: payload,
	})
	if err != nil {
		s.log.Warn("failed to publish schedule event", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func (s *ScheduleService) logAudit(ctx context.Context, userID uuid.UUID, action string, postID *uuid.UUID, meta any) {
	err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      action,
		EntityType:  "scheduled_post",
		EntityID:    postID,
		Meta:        meta,
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
