package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/ai"
	"github.com/pagecraft/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GenerateCampaignConfig controls what the pipeline produces for one campaign.
type GenerateCampaignConfig struct {
	Platforms       []models.Platform `json:"platforms"`
	SocialPostCount int               `json:"socialPostCount"`
	EmailCount      int               `json:"emailCount"`
	PageVariants    int               `json:"pageVariants"`
	Goal            string            `json:"goal"`
	TargetAudience  *string           `json:"targetAudience,omitempty"`
	Tone            string            `json:"tone"`
}

// PerPlatformCount splits the requested social posts across platforms, rounding up.
func (c GenerateCampaignConfig) PerPlatformCount() int {
	if len(c.Platforms) == 0 || c.SocialPostCount <= 0 {
		return 0
	}
	return (c.SocialPostCount + len(c.Platforms) - 1) / len(c.Platforms)
}

type socialPostOutput struct {
	Content  string   `json:"content"`
	Hook     string   `json:"hook"`
	Hashtags []string `json:"hashtags"`
}

// EmailAsset and PageVariantAsset are stored JSON-encoded in CampaignAsset.Content.
type EmailAsset struct {
	Subject       string `json:"subject"`
	PreviewText   string `json:"previewText"`
	Body          string `json:"body"`
	Stage         string `json:"stage"`
	SendDayOffset int    `json:"sendDayOffset"`
	Sequence      int    `json:"sequence"`
}

type PageVariantAsset struct {
	Approach    string `json:"approach"`
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	Body        string `json:"body"`
	CTA         string `json:"cta"`
}

type assetSlice struct {
	name string
	run  func(ctx context.Context) ([]models.CampaignAsset, error)
}

// PipelineResult reports what was stored and which slices were skipped.
type PipelineResult struct {
	Inserted int
	Failed   []string
}

type AssetPipeline struct {
	generator  ai.ContentGenerator
	assets     AssetStore
	maxRetries int
	maxTokens  int
	log        *zap.Logger
}

func NewAssetPipeline(generator ai.ContentGenerator, assets AssetStore, maxRetries, maxTokens int, log *zap.Logger) *AssetPipeline {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &AssetPipeline{
		generator:  generator,
		assets:     assets,
		maxRetries: maxRetries,
		maxTokens:  maxTokens,
		log:        log,
	}
}

// Generate runs every requested slice concurrently and stores whatever succeeded as
// DRAFT assets in one batch. A failing slice never cancels its siblings.
func (p *AssetPipeline) Generate(ctx context.Context, campaignID uuid.UUID, src *SourceContent, cfg GenerateCampaignConfig) (*PipelineResult, error) {
	slices := p.plan(campaignID, src, cfg)
	produced := make([][]models.CampaignAsset, len(slices))
	failed := make([]bool, len(slices))

	var g errgroup.Group
	for i, sl := range slices {
		g.Go(func() (err error) {
			var assets []models.CampaignAsset
			defer func() {
				if r := recover(); r != nil {
					err = nil
					failed[i] = true
					p.log.Error("asset slice panicked",
						zap.String("campaign_id", campaignID.String()),
						zap.String("slice", sl.name),
						zap.Any("panic", r),
					)
				}
			}()

			assets, err = sl.run(ctx)
			if err != nil {
				failed[i] = true
				p.log.Warn("asset slice skipped",
					zap.String("campaign_id", campaignID.String()),
					zap.String("slice", sl.name),
					zap.Error(&GenerationFailure{Slice: sl.name, Err: err}),
				)
				return nil
			}
			produced[i] = assets
			return nil
		})
	}
	_ = g.Wait()

	res := &PipelineResult{}
	var all []models.CampaignAsset
	for i := range slices {
		if failed[i] {
			res.Failed = append(res.Failed, slices[i].name)
			continue
		}
		all = append(all, produced[i]...)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("generation interrupted: %w", err)
	}

	if err := p.assets.InsertBatch(ctx, all); err != nil {
		return res, fmt.Errorf("store campaign assets: %w", err)
	}
	res.Inserted = len(all)
	return res, nil
}

func (p *AssetPipeline) plan(campaignID uuid.UUID, src *SourceContent, cfg GenerateCampaignConfig) []assetSlice {
	var out []assetSlice

	if per := cfg.PerPlatformCount(); per > 0 {
		for _, platform := range cfg.Platforms {
			out = append(out, assetSlice{
				name: strings.ToLower(string(platform)),
				run: func(ctx context.Context) ([]models.CampaignAsset, error) {
					return p.socialPosts(ctx, campaignID, platform, per, src, cfg)
				},
			})
		}
	}
	if cfg.EmailCount > 0 {
		out = append(out, assetSlice{
			name: "email",
			run: func(ctx context.Context) ([]models.CampaignAsset, error) {
				return p.emails(ctx, campaignID, src, cfg)
			},
		})
	}
	if cfg.PageVariants > 0 {
		out = append(out, assetSlice{
			name: "page_variants",
			run: func(ctx context.Context) ([]models.CampaignAsset, error) {
				return p.pageVariants(ctx, campaignID, src, cfg)
			},
		})
	}
	return out
}

func (p *AssetPipeline) socialPosts(ctx context.Context, campaignID uuid.UUID, platform models.Platform, count int, src *SourceContent, cfg GenerateCampaignConfig) ([]models.CampaignAsset, error) {
	var posts []socialPostOutput
	req := p.request(buildSocialPrompt(platform, count, src, cfg))
	if err := p.generator.GenerateJSON(ctx, req, ai.GenerateOptions{MaxRetries: p.maxRetries}, &posts); err != nil {
		return nil, err
	}

	out := make([]models.CampaignAsset, 0, count)
	for _, post := range posts {
		if len(out) == count {
			break
		}
		text := composePost(post)
		if text == "" {
			continue
		}
		pl := platform
		out = append(out, models.CampaignAsset{
			CampaignID: campaignID,
			Type:       models.AssetTypeSocialPost,
			Platform:   &pl,
			Content:    clampToPlatform(platform, text),
			Status:     models.AssetStatusDraft,
		})
	}
	if len(out) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	return out, nil
}

// composePost appends hashtags the model listed separately but did not put in the text.
func composePost(post socialPostOutput) string {
	text := strings.TrimSpace(post.Content)
	if text == "" {
		return ""
	}
	var missing []string
	for _, tag := range post.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		if !strings.Contains(text, tag) {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		text += "\n\n" + strings.Join(missing, " ")
	}
	return text
}

func (p *AssetPipeline) emails(ctx context.Context, campaignID uuid.UUID, src *SourceContent, cfg GenerateCampaignConfig) ([]models.CampaignAsset, error) {
	var emails []EmailAsset
	req := p.request(buildEmailPrompt(cfg.EmailCount, src, cfg))
	if err := p.generator.GenerateJSON(ctx, req, ai.GenerateOptions{MaxRetries: p.maxRetries}, &emails); err != nil {
		return nil, err
	}

	email := models.PlatformEmail
	out := make([]models.CampaignAsset, 0, cfg.EmailCount)
	for _, e := range emails {
		if len(out) == cfg.EmailCount {
			break
		}
		if strings.TrimSpace(e.Subject) == "" && strings.TrimSpace(e.Body) == "" {
			continue
		}
		// Stage follows the stored position so blank entries leave no gap.
		idx := len(out)
		e.Sequence = idx + 1
		e.Stage = emailStage(idx, cfg.EmailCount)
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode email: %w", err)
		}
		out = append(out, models.CampaignAsset{
			CampaignID: campaignID,
			Type:       models.AssetTypeEmail,
			Platform:   &email,
			Content:    string(data),
			Status:     models.AssetStatusDraft,
		})
	}
	if len(out) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	return out, nil
}

func (p *AssetPipeline) pageVariants(ctx context.Context, campaignID uuid.UUID, src *SourceContent, cfg GenerateCampaignConfig) ([]models.CampaignAsset, error) {
	var variants []PageVariantAsset
	req := p.request(buildPageVariantPrompt(cfg.PageVariants, src, cfg))
	if err := p.generator.GenerateJSON(ctx, req, ai.GenerateOptions{MaxRetries: p.maxRetries}, &variants); err != nil {
		return nil, err
	}

	out := make([]models.CampaignAsset, 0, cfg.PageVariants)
	for i, v := range variants {
		if i == cfg.PageVariants {
			break
		}
		if strings.TrimSpace(v.Headline) == "" {
			continue
		}
		if v.Approach == "" {
			v.Approach = variantApproach(i)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode page variant: %w", err)
		}
		out = append(out, models.CampaignAsset{
			CampaignID: campaignID,
			Type:       models.AssetTypePageVariant,
			Content:    string(data),
			Status:     models.AssetStatusDraft,
		})
	}
	if len(out) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	return out, nil
}
