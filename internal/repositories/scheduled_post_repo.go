package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/models"
)

type ScheduledPostRepo struct {
	pool *pgxpool.Pool
}

func NewScheduledPostRepo(pool *pgxpool.Pool) *ScheduledPostRepo {
	return &ScheduledPostRepo{pool: pool}
}

const scheduledPostColumns = `id, user_id, campaign_asset_id, content, platform, post_type, scheduled_for,
	timezone, status, auto_post, media_urls, error_message, published_at, created_at, updated_at`

func scanScheduledPost(row pgx.Row, p *models.ScheduledPost) error {
	return row.Scan(&p.ID, &p.UserID, &p.CampaignAssetID, &p.Content, &p.Platform, &p.PostType,
		&p.ScheduledFor, &p.Timezone, &p.Status, &p.AutoPost, &p.MediaURLs, &p.ErrorMessage,
		&p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
}

func queueInsertPost(batch *pgx.Batch, p *models.ScheduledPost) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.MediaURLs == nil {
		p.MediaURLs = []string{}
	}
	batch.Queue(`
		INSERT INTO scheduled_posts (id, user_id, campaign_asset_id, content, platform, post_type,
		                             scheduled_for, timezone, status, auto_post, media_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.CampaignAssetID, p.Content, p.Platform, p.PostType,
		p.ScheduledFor, p.Timezone, p.Status, p.AutoPost, p.MediaURLs,
	).QueryRow(func(row pgx.Row) error {
		return row.Scan(&p.CreatedAt, &p.UpdatedAt)
	})
}

// InsertBatch stores every post or none of them.
func (r *ScheduledPostRepo) InsertBatch(ctx context.Context, posts []*models.ScheduledPost) error {
	if len(posts) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range posts {
			queueInsertPost(batch, p)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert scheduled posts: %w", err)
		}
		return nil
	})
}

// Create stores a single post and, when assetStatus is set, moves the linked asset in
// the same transaction.
func (r *ScheduledPostRepo) Create(ctx context.Context, p *models.ScheduledPost, assetStatus *models.AssetStatus) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		queueInsertPost(batch, p)
		if assetStatus != nil && p.CampaignAssetID != nil {
			batch.Queue(`UPDATE campaign_assets SET status = $1 WHERE id = $2`, *assetStatus, *p.CampaignAssetID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *ScheduledPostRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduledPost, error) {
	var p models.ScheduledPost
	err := scanScheduledPost(r.pool.QueryRow(ctx, `SELECT `+scheduledPostColumns+` FROM scheduled_posts WHERE id = $1`, id), &p)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// UpdateStatus is a guarded transition: it only applies when the post is still in from.
func (r *ScheduledPostRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.PostStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_posts SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

type PostFilter struct {
	UserID   uuid.UUID
	From     *time.Time
	To       *time.Time
	Platform *models.Platform
	Status   *models.PostStatus
	Limit    int
	Offset   int
}

func (r *ScheduledPostRepo) List(ctx context.Context, f PostFilter) ([]models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts`
	args := []any{f.UserID}
	argIdx := 2
	where := []string{"user_id = $1"}

	if f.From != nil {
		where = append(where, fmt.Sprintf("scheduled_for >= $%d", argIdx))
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("scheduled_for < $%d", argIdx))
		args = append(args, *f.To)
		argIdx++
	}
	if f.Platform != nil {
		where = append(where, fmt.Sprintf("platform = $%d", argIdx))
		args = append(args, *f.Platform)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " WHERE " + strings.Join(where, " AND ")
	query += fmt.Sprintf(" ORDER BY scheduled_for LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.ScheduledPost{}
	for rows.Next() {
		var p models.ScheduledPost
		if err := scanScheduledPost(rows, &p); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
