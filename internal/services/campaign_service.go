package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/jobs"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
	"go.uber.org/zap"
)

var campaignTones = []string{"professional", "casual", "playful", "urgent", "inspirational"}

type GenerateCampaignInput struct {
	Name            string     `json:"name" validate:"max=120"`
	ProductID       *uuid.UUID `json:"productId"`
	BlockID         *uuid.UUID `json:"blockId"`
	CustomContent   *string    `json:"customContent" validate:"omitempty,min_nonspace=10,max=10000"`
	Goal            string     `json:"goal" validate:"required,max=500"`
	TargetAudience  *string    `json:"targetAudience" validate:"omitempty,max=300"`
	Tone            string     `json:"tone" validate:"omitempty,oneof=professional casual playful urgent inspirational"`
	Platforms       []string   `json:"platforms" validate:"max=5"`
	SocialPostCount int        `json:"socialPostCount" validate:"min=0,max=30"`
	EmailCount      int        `json:"emailCount" validate:"min=0,max=7"`
	PageVariants    int        `json:"pageVariants" validate:"min=0,max=5"`
}

type GenerateCampaignResult struct {
	CampaignID uuid.UUID             `json:"campaignId"`
	Status     models.CampaignStatus `json:"status"`
}

// GenerationJob is the payload of a campaign.generate job.
type GenerationJob struct {
	CampaignID uuid.UUID              `json:"campaign_id"`
	UserID     uuid.UUID              `json:"user_id"`
	Source     SourceContent          `json:"source"`
	Config     GenerateCampaignConfig `json:"config"`
}

type CampaignService struct {
	campaigns  CampaignStore
	assets     AssetStore
	audit      AuditStore
	limiter    *RateLimiter
	sources    *SourceResolver
	pipeline   *AssetPipeline
	queue      jobs.Queue
	publisher  events.Publisher
	log        *zap.Logger
	runTimeout time.Duration
	now        func() time.Time
}

func NewCampaignService(
	campaigns CampaignStore,
	assets AssetStore,
	audit AuditStore,
	limiter *RateLimiter,
	sources *SourceResolver,
	pipeline *AssetPipeline,
	queue jobs.Queue,
	publisher events.Publisher,
	log *zap.Logger,
) *CampaignService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CampaignService{
		campaigns:  campaigns,
		assets:     assets,
		audit:      audit,
		limiter:    limiter,
		sources:    sources,
		pipeline:   pipeline,
		queue:      queue,
		publisher:  publisher,
		log:        log,
		runTimeout: 15 * time.Minute,
		now:        time.Now,
	}
}

func (in *GenerateCampaignInput) validate() (GenerateCampaignConfig, error) {
	verr := &ValidationError{}
	validateStruct(in, verr)

	src := CampaignSource{ProductID: in.ProductID, BlockID: in.BlockID, CustomContent: in.CustomContent}
	if n := src.count(); n != 1 {
		verr.Add("source", "exactly one of productId, blockId or customContent is required (got %d)", n)
	}

	cfg := GenerateCampaignConfig{
		SocialPostCount: in.SocialPostCount,
		EmailCount:      in.EmailCount,
		PageVariants:    in.PageVariants,
		Goal:            strings.TrimSpace(in.Goal),
		TargetAudience:  in.TargetAudience,
		Tone:            in.Tone,
	}
	if cfg.Tone == "" {
		cfg.Tone = campaignTones[0]
	}

	seen := map[models.Platform]bool{}
	for i, raw := range in.Platforms {
		p, err := models.ParsePlatform(raw)
		if err != nil || !p.IsSocial() {
			verr.Add(fmt.Sprintf("platforms[%d]", i), "must be one of: TWITTER, INSTAGRAM, FACEBOOK, LINKEDIN, TIKTOK")
			continue
		}
		if !seen[p] {
			seen[p] = true
			cfg.Platforms = append(cfg.Platforms, p)
		}
	}
	// Without platforms there is nowhere to post, so the social slice is skipped.
	if len(in.Platforms) == 0 {
		cfg.SocialPostCount = 0
	}
	if cfg.SocialPostCount+cfg.EmailCount+cfg.PageVariants == 0 {
		verr.Add("assets", "at least one of socialPostCount (with platforms), emailCount or pageVariants must be positive")
	}

	return cfg, verr.Err()
}

// Generate validates the request, enforces the per-user rate limit, records the campaign
// as GENERATING and queues the asset pipeline. It returns without waiting for generation.
func (s *CampaignService) Generate(ctx context.Context, userID uuid.UUID, in GenerateCampaignInput) (*GenerateCampaignResult, error) {
	cfg, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Enforce(ctx, userID); err != nil {
		return nil, err
	}

	src, err := s.sources.Resolve(ctx, userID, CampaignSource{
		ProductID:     in.ProductID,
		BlockID:       in.BlockID,
		CustomContent: in.CustomContent,
	})
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = src.Title
	}
	if name == "" {
		name = truncateRunes(cfg.Goal, 120)
	}

	c := &models.Campaign{
		UserID:         userID,
		Name:           name,
		ProductID:      in.ProductID,
		BlockID:        in.BlockID,
		CustomContent:  in.CustomContent,
		Goal:           cfg.Goal,
		TargetAudience: cfg.TargetAudience,
		Tone:           cfg.Tone,
		Status:         models.CampaignStatusGenerating,
	}
	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	payload := GenerationJob{CampaignID: c.ID, UserID: userID, Source: *src, Config: cfg}
	if _, err := jobs.Enqueue(ctx, s.queue, jobs.TypeCampaignGenerate, payload); err != nil {
		msg := "could not queue generation: " + err.Error()
		if uerr := s.campaigns.UpdateStatus(ctx, c.ID, models.CampaignStatusGenerating, models.CampaignStatusFailed, &msg); uerr != nil {
			s.log.Error("failed to mark campaign failed", zap.String("campaign_id", c.ID.String()), zap.Error(uerr))
		}
		return nil, fmt.Errorf("queue campaign generation: %w", err)
	}

	s.logAudit(ctx, &userID, models.ActorUser, "campaign_created", c.ID, map[string]any{
		"source":            c.SourceKind(),
		"social_post_count": cfg.SocialPostCount,
		"email_count":       cfg.EmailCount,
		"page_variants":     cfg.PageVariants,
		"platforms":         cfg.Platforms,
	})

	s.log.Info("campaign queued",
		zap.String("campaign_id", c.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return &GenerateCampaignResult{CampaignID: c.ID, Status: c.Status}, nil
}

// HandleGenerationJob adapts RunGeneration to the job runner.
func (s *CampaignService) HandleGenerationJob(ctx context.Context, job jobs.Job) error {
	var payload GenerationJob
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return s.RunGeneration(ctx, payload)
}

// RunGeneration executes the pipeline and settles the campaign on READY or FAILED.
// It is the only writer of those transitions apart from the stale reaper.
func (s *CampaignService) RunGeneration(ctx context.Context, job GenerationJob) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &PipelineFailure{CampaignID: job.CampaignID, Err: fmt.Errorf("panic: %v", r)}
			s.settle(context.WithoutCancel(ctx), job, models.CampaignStatusFailed, err)
		}
	}()

	res, genErr := s.pipeline.Generate(ctx, job.CampaignID, &job.Source, job.Config)
	if genErr == nil && res.Inserted == 0 {
		genErr = errors.New("no assets could be generated")
	}
	if genErr != nil {
		failure := &PipelineFailure{CampaignID: job.CampaignID, Err: genErr}
		s.log.Error("campaign generation failed",
			zap.String("campaign_id", job.CampaignID.String()),
			zap.Error(genErr),
		)
		s.settle(context.WithoutCancel(ctx), job, models.CampaignStatusFailed, failure)
		return failure
	}

	if len(res.Failed) > 0 {
		s.log.Warn("campaign ready with skipped slices",
			zap.String("campaign_id", job.CampaignID.String()),
			zap.Strings("skipped", res.Failed),
		)
	}
	s.settle(ctx, job, models.CampaignStatusReady, nil)
	s.log.Info("campaign ready",
		zap.String("campaign_id", job.CampaignID.String()),
		zap.Int("assets", res.Inserted),
	)
	return nil
}

func (s *CampaignService) settle(ctx context.Context, job GenerationJob, to models.CampaignStatus, cause error) {
	var msg *string
	if cause != nil {
		m := cause.Error()
		msg = &m
	}

	err := s.transition(ctx, job.CampaignID, models.CampaignStatusGenerating, to, msg)
	if err != nil {
		s.log.Warn("campaign status not updated",
			zap.String("campaign_id", job.CampaignID.String()),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return
	}

	s.publishStatus(ctx, job.UserID, job.CampaignID, to, msg)
	s.logAudit(ctx, nil, models.ActorWorker, "campaign_"+strings.ToLower(string(to)), job.CampaignID, nil)
}

// transition applies a guarded status change and reports illegal or lost races as
// ErrInvalidTransition.
func (s *CampaignService) transition(ctx context.Context, id uuid.UUID, from, to models.CampaignStatus, msg *string) error {
	if !models.IsValidCampaignTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	err := s.campaigns.UpdateStatus(ctx, id, from, to, msg)
	if errors.Is(err, repositories.ErrStatusConflict) {
		return fmt.Errorf("%w: campaign is no longer %s", ErrInvalidTransition, from)
	}
	return err
}

func (s *CampaignService) publishStatus(ctx context.Context, userID, campaignID uuid.UUID, status models.CampaignStatus, msg *string) {
	payload := map[string]any{
		"campaign_id": campaignID.String(),
		"status":      status,
	}
	if msg != nil {
		payload["error"] = *msg
	}
	err := s.publisher.Publish(ctx, events.StreamCampaign, events.Event{
		Type:    events.EventCampaignStatusChanged,
		UserID:  userID,
		Payload: payload,
	})
	if err != nil {
		s.log.Warn("failed to publish campaign event", zap.String("campaign_id", campaignID.String()), zap.Error(err))
	}
}

func (s *CampaignService) logAudit(ctx context.Context, actor *uuid.UUID, actorType, action string, campaignID uuid.UUID, meta any) {
	err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actor,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "campaign",
		EntityID:    &campaignID,
		Meta:        meta,
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *CampaignService) List(ctx context.Context, userID uuid.UUID, f repositories.CampaignFilter) ([]models.CampaignSummary, error) {
	f.UserID = &userID
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.campaigns.List(ctx, f)
}

func (s *CampaignService) owned(ctx context.Context, id, userID uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}

// Get returns the campaign with its assets.
func (s *CampaignService) Get(ctx context.Context, id, userID uuid.UUID) (*models.Campaign, error) {
	c, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	c.Assets, err = s.assets.ListByCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list campaign assets: %w", err)
	}
	return c, nil
}

func (s *CampaignService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, &userID, models.ActorUser, "campaign_deleted", id, nil)
	return nil
}

// History returns the audit trail of a campaign, newest first.
func (s *CampaignService) History(ctx context.Context, id, userID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.audit.GetByEntity(ctx, "campaign", id, limit, offset)
}

// ReapStale fails campaigns stuck in GENERATING for longer than olderThan, which
// happens when a worker dies mid-generation.
func (s *CampaignService) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.campaigns.ListStale(ctx, s.now().Add(-olderThan), 100)
	if err != nil {
		return 0, fmt.Errorf("list stale campaigns: %w", err)
	}

	reaped := 0
	msg := "generation timed out"
	for _, c := range stale {
		err := s.transition(ctx, c.ID, models.CampaignStatusGenerating, models.CampaignStatusFailed, &msg)
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		reaped++
		s.publishStatus(ctx, c.UserID, c.ID, models.CampaignStatusFailed, &msg)
		s.logAudit(ctx, nil, models.ActorSystem, "campaign_reaped", c.ID, nil)
	}
	return reaped, nil
}
