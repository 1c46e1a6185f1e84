package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned by guarded status updates when the row is not in the expected state.
	ErrStatusConflict = errors.New("status conflict")
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignColumns = `id, user_id, name, product_id, block_id, custom_content, goal,
	target_audience, tone, status, error_message, created_at, updated_at`

func scanCampaign(row pgx.Row, c *models.Campaign) error {
	return row.Scan(&c.ID, &c.UserID, &c.Name, &c.ProductID, &c.BlockID, &c.CustomContent,
		&c.Goal, &c.TargetAudience, &c.Tone, &c.Status, &c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (user_id, name, product_id, block_id, custom_content, goal, target_audience, tone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, c.UserID, c.Name, c.ProductID, c.BlockID, c.CustomContent, c.Goal,
		c.TargetAudience, c.Tone, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id), &c)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CountCreatedSince counts campaigns the user created at or after since.
func (r *CampaignRepo) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM campaigns WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&n)
	return n, err
}

// UpdateStatus moves a campaign from one status to another. The WHERE clause on the
// current status makes the transition single-shot under concurrent writers.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CampaignStatus, errMsg *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, to, errMsg, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListStale returns campaigns still GENERATING whose last update is older than before.
func (r *CampaignRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at LIMIT $3
	`, models.CampaignStatusGenerating, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type CampaignFilter struct {
	UserID *uuid.UUID
	Status *models.CampaignStatus
	Limit  int
	Offset int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.CampaignSummary, error) {
	query := `
		SELECT c.id, c.name, c.goal, c.product_id, c.block_id, c.status, c.created_at,
		       (SELECT count(*) FROM campaign_assets a WHERE a.campaign_id = c.id)
		FROM campaigns c
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.UserID != nil {
		where = append(where, fmt.Sprintf("c.user_id = $%d", argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("c.status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.CampaignSummary{}
	for rows.Next() {
		var s models.CampaignSummary
		var productID, blockID *uuid.UUID
		if err := rows.Scan(&s.ID, &s.Name, &s.Goal, &productID, &blockID, &s.Status,
			&s.CreatedAt, &s.AssetCount); err != nil {
			return nil, err
		}
		switch {
		case productID != nil:
			s.SourceKind = models.SourceProduct
		case blockID != nil:
			s.SourceKind = models.SourceBlock
		default:
			s.SourceKind = models.SourceCustom
		}
		campaigns = append(campaigns, s)
	}
	return campaigns, rows.Err()
}
