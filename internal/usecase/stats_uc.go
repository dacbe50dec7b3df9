// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"notion-telegram-relay/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase summarizes the delivery log for the admin API.
type StatsUseCase interface {
	Totals(ctx context.Context) (map[string]int64, error)
	Recent(ctx context.Context, limit int) ([]*repository.Delivery, error)
}

type statsUC struct {
	deliveries repository.DeliveryLogRepository
}

func NewStatsUseCase(deliveries repository.DeliveryLogRepository) *statsUC {
	return &statsUC{deliveries: deliveries}
}

func (s *statsUC) Totals(ctx context.Context) (map[string]int64, error) {
	return s.deliveries.CountByStatus(ctx)
}

func (s *statsUC) Recent(ctx context.Context, limit int) ([]*repository.Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.deliveries.Recent(ctx, limit)
}
