package postgres

import (
	"context"

	"notion-telegram-relay/internal/domain/ports/repository"
)

var _ repository.DeliveryLogRepository = (*noopDeliveryLogRepo)(nil)

// noopDeliveryLogRepo backs the relay when no database is configured.
type noopDeliveryLogRepo struct{}

func NewNoopDeliveryLogRepo() repository.DeliveryLogRepository {
	return noopDeliveryLogRepo{}
}

func (noopDeliveryLogRepo) Save(context.Context, *repository.Delivery) error {
	return nil
}

func (noopDeliveryLogRepo) CountByStatus(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (noopDeliveryLogRepo) Recent(context.Context, int) ([]*repository.Delivery, error) {
	return nil, nil
}
