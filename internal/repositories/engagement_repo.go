package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/models"
)

// EngagementRepo reads events written by the analytics collaborator.
type EngagementRepo struct {
	pool *pgxpool.Pool
}

func NewEngagementRepo(pool *pgxpool.Pool) *EngagementRepo {
	return &EngagementRepo{pool: pool}
}

func (r *EngagementRepo) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM engagement_events WHERE user_id = $1 AND occurred_at >= $2
	`, userID, since).Scan(&n)
	return n, err
}

// AggregateSlots buckets events by platform and weekly hour in the given IANA zone.
// Events without a platform are link-in-bio page traffic.
func (r *EngagementRepo) AggregateSlots(ctx context.Context, userID uuid.UUID, since time.Time, timezone string) ([]models.EngagementSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(platform, $4) AS platform,
		       EXTRACT(DOW FROM occurred_at AT TIME ZONE $3)::int AS dow,
		       EXTRACT(HOUR FROM occurred_at AT TIME ZONE $3)::int AS hour,
		       count(*) FILTER (WHERE event_type = 'VIEW'),
		       count(*) FILTER (WHERE event_type = 'CLICK'),
		       count(*) FILTER (WHERE event_type = 'CONVERSION')
		FROM engagement_events
		WHERE user_id = $1 AND occurred_at >= $2
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3
	`, userID, since, timezone, models.PlatformLinkInBio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.EngagementSlot
	for rows.Next() {
		var s models.EngagementSlot
		if err := rows.Scan(&s.Platform, &s.DayOfWeek, &s.HourOfDay, &s.Views, &s.Clicks, &s.Conversions); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
