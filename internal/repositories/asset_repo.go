package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/models"
)

type AssetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// InsertBatch stores all assets in one transaction. IDs are assigned client-side
// when missing so callers can reference the rows without a round trip.
func (r *AssetRepo) InsertBatch(ctx context.Context, assets []models.CampaignAsset) error {
	if len(assets) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range assets {
			a := &assets[i]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			if a.Status == "" {
				a.Status = models.AssetStatusDraft
			}
			batch.Queue(`
				INSERT INTO campaign_assets (id, campaign_id, type, platform, content, status)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING created_at
			`, a.ID, a.CampaignID, a.Type, a.Platform, a.Content, a.Status).QueryRow(func(row pgx.Row) error {
				return row.Scan(&a.CreatedAt)
			})
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *AssetRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.CampaignAsset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, type, platform, content, status, views, clicks, conversions, created_at
		FROM campaign_assets WHERE campaign_id = $1
		ORDER BY type, platform NULLS LAST, created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []models.CampaignAsset{}
	for rows.Next() {
		var a models.CampaignAsset
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Type, &a.Platform, &a.Content, &a.Status,
			&a.Views, &a.Clicks, &a.Conversions, &a.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// GetForUser loads an asset only if its campaign belongs to userID.
func (r *AssetRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.CampaignAsset, error) {
	var a models.CampaignAsset
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.campaign_id, a.type, a.platform, a.content, a.status,
		       a.views, a.clicks, a.conversions, a.created_at
		FROM campaign_assets a JOIN campaigns c ON c.id = a.campaign_id
		WHERE a.id = $1 AND c.user_id = $2
	`, id, userID).Scan(&a.ID, &a.CampaignID, &a.Type, &a.Platform, &a.Content, &a.Status,
		&a.Views, &a.Clicks, &a.Conversions, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *AssetRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.AssetStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE campaign_assets SET status = $1 WHERE id = $2`, status, id)
	return err
}
