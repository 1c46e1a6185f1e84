package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
)

// Persistence contracts consumed by the services. The repositories package implements
// them on Postgres; tests use in-memory fakes.

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.CampaignSummary, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CampaignStatus, errMsg *string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.Campaign, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AssetStore interface {
	InsertBatch(ctx context.Context, assets []models.CampaignAsset) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.CampaignAsset, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.CampaignAsset, error)
}

type ScheduledPostStore interface {
	InsertBatch(ctx context.Context, posts []*models.ScheduledPost) error
	Create(ctx context.Context, p *models.ScheduledPost, assetStatus *models.AssetStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduledPost, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.PostStatus) error
	List(ctx context.Context, f repositories.PostFilter) ([]models.ScheduledPost, error)
}

type OptimalTimeStore interface {
	ListForUser(ctx context.Context, userID uuid.UUID, platform *models.Platform) ([]models.OptimalTime, error)
	ReplaceForUser(ctx context.Context, userID uuid.UUID, slots []models.OptimalTime) error
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type EngagementStore interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	AggregateSlots(ctx context.Context, userID uuid.UUID, since time.Time, timezone string) ([]models.EngagementSlot, error)
}

type AnalysisJobStore interface {
	Create(ctx context.Context, j *models.AnalysisJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	GetActiveForUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error)
	LatestForUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, j *models.AnalysisJob) error
	Fail(ctx context.Context, id uuid.UUID, msg string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.AnalysisJob, error)
}

type SourceStore interface {
	GetProduct(ctx context.Context, id, userID uuid.UUID) (*repositories.ProductRecord, error)
	GetBlock(ctx context.Context, id, userID uuid.UUID) (*repositories.BlockRecord, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}
