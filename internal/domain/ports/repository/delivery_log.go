// File: internal/domain/ports/repository/delivery_log.go
package repository

import (
	"context"
	"time"
)

// Delivery statuses recorded by the relay.
const (
	DeliveryStatusSent     = "sent"
	DeliveryStatusFailed   = "failed"
	DeliveryStatusApplied  = "applied"
	DeliveryStatusRejected = "rejected"
)

// Delivery is one relayed notification or callback outcome. The log is an
// audit trail only; the relay never reads it on the hot path.
type Delivery struct {
	ID        string
	PageID    string
	EventType string
	ChatID    int64
	MessageID int
	Status    string
	Detail    string
	CreatedAt time.Time
}

// DeliveryLogRepository persists relay outcomes. Implementations must be safe
// for concurrent use; Save is best-effort from the caller's point of view.
type DeliveryLogRepository interface {
	Save(ctx context.Context, d *Delivery) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Recent(ctx context.Context, limit int) ([]*Delivery, error)
}
