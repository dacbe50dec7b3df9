package postgres

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/ports/repository"
)

var _ repository.DeliveryLogRepository = (*deliveryLogRepo)(nil)

type deliveryLogRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryLogRepo(pool *pgxpool.Pool) repository.DeliveryLogRepository {
	return &deliveryLogRepo{pool: pool}
}

// EnsureSchema creates the delivery log table when it does not exist yet.
// The relay owns this table alone, so migrations stay in-process.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
CREATE TABLE IF NOT EXISTS relay_deliveries (
    id         TEXT PRIMARY KEY,
    page_id    TEXT NOT NULL,
    event_type TEXT NOT NULL,
    chat_id    BIGINT NOT NULL,
    message_id INTEGER NOT NULL DEFAULT 0,
    status     TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS relay_deliveries_page_idx ON relay_deliveries (page_id, created_at DESC);`
	_, err := pool.Exec(ctx, q)
	return err
}

func (r *deliveryLogRepo) Save(ctx context.Context, d *repository.Delivery) error {
	if d == nil {
		return domain.ErrInvalidArgument
	}
	if d.ID == "" {
		d.ID = newDeliveryID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO relay_deliveries (id, page_id, event_type, chat_id, message_id, status, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, q, d.ID, d.PageID, d.EventType, d.ChatID, d.MessageID, d.Status, d.Detail, d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *deliveryLogRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	const q = `SELECT status, COUNT(*) FROM relay_deliveries GROUP BY status`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *deliveryLogRepo) Recent(ctx context.Context, limit int) ([]*repository.Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, page_id, event_type, chat_id, message_id, status, detail, created_at
  FROM relay_deliveries
 ORDER BY created_at DESC
 LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.Delivery
	for rows.Next() {
		var d repository.Delivery
		if err := rows.Scan(&d.ID, &d.PageID, &d.EventType, &d.ChatID, &d.MessageID, &d.Status, &d.Detail, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func newDeliveryID() string {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
