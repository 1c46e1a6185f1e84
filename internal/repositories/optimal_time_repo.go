package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/models"
)

type OptimalTimeRepo struct {
	pool *pgxpool.Pool
}

func NewOptimalTimeRepo(pool *pgxpool.Pool) *OptimalTimeRepo {
	return &OptimalTimeRepo{pool: pool}
}

// ListForUser returns stored slots ordered by platform then rank. platform nil means all.
func (r *OptimalTimeRepo) ListForUser(ctx context.Context, userID uuid.UUID, platform *models.Platform) ([]models.OptimalTime, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, platform, day_of_week, hour_of_day, engagement_rate, confidence,
		       rank, sample_size, analyzed_at
		FROM optimal_times
		WHERE user_id = $1 AND ($2::text IS NULL OR platform = $2)
		ORDER BY platform, rank NULLS LAST, confidence DESC
	`, userID, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []models.OptimalTime{}
	for rows.Next() {
		var s models.OptimalTime
		var analyzedAt time.Time
		if err := rows.Scan(&s.ID, &s.UserID, &s.Platform, &s.DayOfWeek, &s.HourOfDay,
			&s.EngagementRate, &s.Confidence, &s.Rank, &s.SampleSize, &analyzedAt); err != nil {
			return nil, err
		}
		s.AnalyzedAt = &analyzedAt
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// ReplaceForUser drops every stored slot of the user and writes the new ranking in one
// transaction. There is no merge with previous results.
func (r *OptimalTimeRepo) ReplaceForUser(ctx context.Context, userID uuid.UUID, slots []models.OptimalTime) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM optimal_times WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i := range slots {
			s := &slots[i]
			if s.ID == uuid.Nil {
				s.ID = uuid.New()
			}
			s.UserID = userID
			batch.Queue(`
				INSERT INTO optimal_times (id, user_id, platform, day_of_week, hour_of_day,
				                           engagement_rate, confidence, rank, sample_size)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, s.ID, s.UserID, s.Platform, s.DayOfWeek, s.HourOfDay, s.EngagementRate,
				s.Confidence, s.Rank, s.SampleSize)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *OptimalTimeRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM optimal_times WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
