package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductRecord and BlockRecord are read from tables owned by the page builder.
type ProductRecord struct {
	ID          uuid.UUID
	Title       string
	Description string
	Price       *string
	Currency    *string
	ImageURL    *string
}

type BlockRecord struct {
	ID       uuid.UUID
	Type     string
	Title    *string
	Content  string // HTML or plain text, depending on block type
	ImageURL *string
}

type SourceRepo struct {
	pool *pgxpool.Pool
}

func NewSourceRepo(pool *pgxpool.Pool) *SourceRepo {
	return &SourceRepo{pool: pool}
}

func (r *SourceRepo) GetProduct(ctx context.Context, id, userID uuid.UUID) (*ProductRecord, error) {
	var p ProductRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, description, price::text, currency, image_url
		FROM products WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Currency, &p.ImageURL)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *SourceRepo) GetBlock(ctx context.Context, id, userID uuid.UUID) (*BlockRecord, error) {
	var b BlockRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, type, title, content, image_url
		FROM blocks WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&b.ID, &b.Type, &b.Title, &b.Content, &b.ImageURL)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}
