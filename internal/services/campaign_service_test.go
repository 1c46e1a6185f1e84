package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/jobs"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type campaignFixture struct {
	svc       *CampaignService
	campaigns *fakeCampaignStore
	assets    *fakeAssetStore
	audit     *fakeAuditStore
	queue     *jobs.MemoryQueue
	gen       *promptGenerator
	pub       *recordingPublisher
	userID    uuid.UUID
	productID uuid.UUID
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()
	f := &campaignFixture{
		campaigns: newFakeCampaignStore(),
		assets:    newFakeAssetStore(),
		audit:     &fakeAuditStore{},
		queue:     jobs.NewMemoryQueue(10),
		gen:       &promptGenerator{},
		pub:       &recordingPublisher{},
		userID:    uuid.New(),
		productID: uuid.New(),
	}
	sources := &fakeSourceStore{
		owner: f.userID,
		products: map[uuid.UUID]*repositories.ProductRecord{
			f.productID: {ID: f.productID, Title: "Trail Runner 2", Description: "<p>Light <b>shoe</b></p>", Price: ptr("89.00"), Currency: ptr("USD")},
		},
	}
	log := zap.NewNop()
	f.svc = NewCampaignService(
		f.campaigns,
		f.assets,
		f.audit,
		NewRateLimiter(f.campaigns, 5, time.Hour),
		NewSourceResolver(sources),
		NewAssetPipeline(f.gen, f.assets, 3, 2048, log),
		f.queue,
		f.pub,
		log,
	)
	return f
}

func (f *campaignFixture) validInput() GenerateCampaignInput {
	return GenerateCampaignInput{
		ProductID:       &f.productID,
		Goal:            "Drive pre-orders for the spring release",
		Tone:            "playful",
		Platforms:       []string{"twitter", "instagram", "linkedin"},
		SocialPostCount: 7,
		EmailCount:      3,
		PageVariants:    2,
	}
}

func TestGenerateQueuesCampaign(t *testing.T) {
	f := newCampaignFixture(t)

	res, err := f.svc.Generate(context.Background(), f.userID, f.validInput())
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusGenerating, res.Status)

	c, err := f.campaigns.GetByID(context.Background(), res.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, "Trail Runner 2", c.Name)
	assert.Equal(t, f.userID, c.UserID)

	job, err := f.queue.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, jobs.TypeCampaignGenerate, job.Type)

	var payload GenerationJob
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, res.CampaignID, payload.CampaignID)
	assert.Equal(t, "Light shoe", payload.Source.Description)
	assert.Equal(t, 3, payload.Config.PerPlatformCount())
	assert.Contains(t, f.audit.actions(), "campaign_created")
}

func TestGenerateRateLimitBoundary(t *testing.T) {
	tests := []struct {
		name    string
		prior   int
		wantErr bool
	}{
		{"four in window", 4, false},
		{"five in window", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCampaignFixture(t)
			for i := 0; i < tt.prior; i++ {
				f.campaigns.seed(f.userID, models.CampaignStatusReady, time.Now().Add(-time.Duration(i+1)*time.Minute))
			}
			// Outside the window; never counted.
			f.campaigns.seed(f.userID, models.CampaignStatusReady, time.Now().Add(-2*time.Hour))

			_, err := f.svc.Generate(context.Background(), f.userID, f.validInput())
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var rl *RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, 5, rl.Limit)
			assert.Contains(t, err.Error(), "5 campaigns per hour")
		})
	}
}

func TestGenerateValidation(t *testing.T) {
	f := newCampaignFixture(t)
	blockID := uuid.New()

	tests := []struct {
		name   string
		mutate func(in *GenerateCampaignInput)
		field  string
	}{
		{"two sources", func(in *GenerateCampaignInput) { in.BlockID = &blockID }, "source"},
		{"no source", func(in *GenerateCampaignInput) { in.ProductID = nil }, "source"},
		{"too many posts", func(in *GenerateCampaignInput) { in.SocialPostCount = 31 }, "socialPostCount"},
		{"too many emails", func(in *GenerateCampaignInput) { in.EmailCount = 8 }, "emailCount"},
		{"too many variants", func(in *GenerateCampaignInput) { in.PageVariants = 6 }, "pageVariants"},
		{"unknown tone", func(in *GenerateCampaignInput) { in.Tone = "angry" }, "tone"},
		{"missing goal", func(in *GenerateCampaignInput) { in.Goal = "" }, "goal"},
		{"email is not social", func(in *GenerateCampaignInput) { in.Platforms = []string{"EMAIL"} }, "platforms[0]"},
		{"only posts and no platforms", func(in *GenerateCampaignInput) {
			in.Platforms, in.EmailCount, in.PageVariants = nil, 0, 0
		}, "assets"},
		{"nothing requested", func(in *GenerateCampaignInput) {
			in.SocialPostCount, in.EmailCount, in.PageVariants = 0, 0, 0
		}, "assets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.validInput()
			tt.mutate(&in)

			_, err := f.svc.Generate(context.Background(), f.userID, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			var fields []string
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestGenerateWithoutPlatformsSkipsSocialPosts(t *testing.T) {
	f := newCampaignFixture(t)
	in := f.validInput()
	in.Platforms = nil

	res, err := f.svc.Generate(context.Background(), f.userID, in)
	require.NoError(t, err)

	job, err := f.queue.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)

	var payload GenerationJob
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, res.CampaignID, payload.CampaignID)
	assert.Zero(t, payload.Config.SocialPostCount)
	assert.Zero(t, payload.Config.PerPlatformCount())
	assert.Equal(t, 3, payload.Config.EmailCount)
	assert.Equal(t, 2, payload.Config.PageVariants)

	require.NoError(t, f.svc.RunGeneration(context.Background(), payload))
	assert.Empty(t, f.assets.byPlatform())
	assert.Zero(t, f.assets.countType(models.AssetTypeSocialPost))
	assert.Equal(t, 3, f.assets.countType(models.AssetTypeEmail))
	assert.Equal(t, 2, f.assets.countType(models.AssetTypePageVariant))
}

func TestGenerateForeignProductIsNotFound(t *testing.T) {
	f := newCampaignFixture(t)

	_, err := f.svc.Generate(context.Background(), uuid.New(), f.validInput())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateEnqueueFailureMarksCampaignFailed(t *testing.T) {
	f := newCampaignFixture(t)
	f.svc.queue = failingQueue{}

	_, err := f.svc.Generate(context.Background(), f.userID, f.validInput())
	require.Error(t, err)

	summaries, err := f.campaigns.List(context.Background(), repositories.CampaignFilter{UserID: &f.userID})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, models.CampaignStatusFailed, summaries[0].Status)
}

func (f *campaignFixture) generationJob(t *testing.T, cfg GenerateCampaignConfig) GenerationJob {
	t.Helper()
	c := f.campaigns.seed(f.userID, models.CampaignStatusGenerating, time.Now())
	return GenerationJob{
		CampaignID: c.ID,
		UserID:     f.userID,
		Source:     SourceContent{Kind: "custom", Title: "Spring sale", Description: "Everything 20% off"},
		Config:     cfg,
	}
}

func TestRunGenerationIsolatesPlatformFailure(t *testing.T) {
	f := newCampaignFixture(t)
	f.gen.failing = []string{"INSTAGRAM posts"}

	job := f.generationJob(t, GenerateCampaignConfig{
		Platforms:       []models.Platform{models.PlatformTwitter, models.PlatformInstagram, models.PlatformLinkedIn},
		SocialPostCount: 7,
		EmailCount:      3,
		PageVariants:    2,
		Goal:            "sell",
		Tone:            "casual",
	})

	require.NoError(t, f.svc.RunGeneration(context.Background(), job))
	assert.Equal(t, models.CampaignStatusReady, f.campaigns.status(job.CampaignID))

	byPlatform := f.assets.byPlatform()
	assert.Equal(t, 3, byPlatform[models.PlatformTwitter])
	assert.Equal(t, 3, byPlatform[models.PlatformLinkedIn])
	assert.Zero(t, byPlatform[models.PlatformInstagram])
	assert.Equal(t, 3, f.assets.countType(models.AssetTypeEmail))
	assert.Equal(t, 2, f.assets.countType(models.AssetTypePageVariant))
	assert.Equal(t, 5, f.gen.calls)

	for _, a := range f.assets.assets {
		assert.Equal(t, models.AssetStatusDraft, a.Status)
	}
	require.NotEmpty(t, f.pub.events)
	assert.Equal(t, models.CampaignStatusReady, f.pub.events[len(f.pub.events)-1].Payload["status"])
}

func TestRunGenerationEmailSequenceStages(t *testing.T) {
	f := newCampaignFixture(t)
	job := f.generationJob(t, GenerateCampaignConfig{EmailCount: 3, Goal: "sell", Tone: "casual"})

	require.NoError(t, f.svc.RunGeneration(context.Background(), job))

	var stages []string
	for _, a := range f.assets.assets {
		var e EmailAsset
		require.NoError(t, json.Unmarshal([]byte(a.Content), &e))
		stages = append(stages, e.Stage)
	}
	assert.Equal(t, []string{EmailStageAwareness, EmailStageConsideration, EmailStageConversion}, stages)
}

func TestRunGenerationFailsWhenStorageFails(t *testing.T) {
	f := newCampaignFixture(t)
	f.assets.err = errors.New("connection reset")
	job := f.generationJob(t, GenerateCampaignConfig{PageVariants: 1, Goal: "sell", Tone: "casual"})

	err := f.svc.RunGeneration(context.Background(), job)

	var pf *PipelineFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, job.CampaignID, pf.CampaignID)
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.status(job.CampaignID))

	c, _ := f.campaigns.GetByID(context.Background(), job.CampaignID)
	require.NotNil(t, c.ErrorMessage)
	assert.Contains(t, *c.ErrorMessage, "connection reset")
}

func TestRunGenerationFailsWhenEverySliceFails(t *testing.T) {
	f := newCampaignFixture(t)
	f.gen.failing = []string{"TWITTER posts", "marketing emails"}
	job := f.generationJob(t, GenerateCampaignConfig{
		Platforms:       []models.Platform{models.PlatformTwitter},
		SocialPostCount: 2,
		EmailCount:      2,
		Goal:            "sell",
		Tone:            "casual",
	})

	err := f.svc.RunGeneration(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.status(job.CampaignID))
}

func TestRunGenerationRecoversSlicePanic(t *testing.T) {
	f := newCampaignFixture(t)
	f.gen.panics = []string{"TWITTER posts"}
	job := f.generationJob(t, GenerateCampaignConfig{
		Platforms:       []models.Platform{models.PlatformTwitter},
		SocialPostCount: 1,
		PageVariants:    1,
		Goal:            "sell",
		Tone:            "casual",
	})

	require.NoError(t, f.svc.RunGeneration(context.Background(), job))
	assert.Equal(t, models.CampaignStatusReady, f.campaigns.status(job.CampaignID))
	assert.Equal(t, 1, f.assets.countType(models.AssetTypePageVariant))
}

func TestRunGenerationDoesNotOverwriteTerminalCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	job := f.generationJob(t, GenerateCampaignConfig{PageVariants: 1, Goal: "sell", Tone: "casual"})
	msg := "generation timed out"
	require.NoError(t, f.campaigns.UpdateStatus(context.Background(), job.CampaignID,
		models.CampaignStatusGenerating, models.CampaignStatusFailed, &msg))

	require.NoError(t, f.svc.RunGeneration(context.Background(), job))
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.status(job.CampaignID))
}

func TestReapStaleCampaigns(t *testing.T) {
	f := newCampaignFixture(t)
	stale := f.campaigns.seed(f.userID, models.CampaignStatusGenerating, time.Now().Add(-45*time.Minute))
	fresh := f.campaigns.seed(f.userID, models.CampaignStatusGenerating, time.Now().Add(-5*time.Minute))
	done := f.campaigns.seed(f.userID, models.CampaignStatusReady, time.Now().Add(-2*time.Hour))

	n, err := f.svc.ReapStale(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.status(stale.ID))
	assert.Equal(t, models.CampaignStatusGenerating, f.campaigns.status(fresh.ID))
	assert.Equal(t, models.CampaignStatusReady, f.campaigns.status(done.ID))
}

func TestGetHidesForeignCampaigns(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.campaigns.seed(uuid.New(), models.CampaignStatusReady, time.Now())

	_, err := f.svc.Get(context.Background(), c.ID, f.userID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), c.ID, f.userID), ErrNotFound)
}
