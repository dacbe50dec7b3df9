// File: internal/usecase/status_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/domain/ports/repository"
	"notion-telegram-relay/internal/infra/metrics"
)

// PageLocker serializes status writes to one document. A nil locker disables
// serialization (dev / no Redis).
type PageLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const pageLockTTL = 10 * time.Second

// StatusUseCase validates and applies a status change requested through an
// inline button, walking Received → Validated → Applied; the Acknowledged and
// Reflected steps belong to the messaging adapter.
type StatusUseCase struct {
	notion     adapter.NotionAdapter
	locker     PageLocker
	deliveries repository.DeliveryLogRepository
	log        *zerolog.Logger
}

func NewStatusUseCase(
	notion adapter.NotionAdapter,
	locker PageLocker,
	deliveries repository.DeliveryLogRepository,
	logger *zerolog.Logger,
) *StatusUseCase {
	compLog := logger.With().Str("component", "StatusUC").Logger()
	return &StatusUseCase{notion: notion, locker: locker, deliveries: deliveries, log: &compLog}
}

// ApplyStatus resolves the requested status name against the document's
// current options and writes it back. It returns the exact option name that
// was applied, which may differ from the token by case or truncation.
func (u *StatusUseCase) ApplyStatus(ctx context.Context, token *model.CallbackToken) (string, error) {
	log := u.log.With().Str("page_id", token.PageID).Str("requested", token.Status).Logger()

	page, err := u.notion.GetPage(ctx, token.PageID)
	if err != nil {
		u.finish(ctx, token, repository.DeliveryStatusFailed, err)
		return "", fmt.Errorf("fetch page: %w", err)
	}
	dbID := page.Parent.DatabaseID
	if dbID == "" {
		err := fmt.Errorf("%w: page has no parent database", domain.ErrStatusUnknown)
		u.finish(ctx, token, repository.DeliveryStatusRejected, err)
		return "", err
	}
	db, err := u.notion.GetDatabase(ctx, dbID)
	if err != nil {
		u.finish(ctx, token, repository.DeliveryStatusFailed, err)
		return "", fmt.Errorf("fetch database: %w", err)
	}
	propName, schema, ok := db.StatusProperty()
	if !ok {
		err := fmt.Errorf("%w: database has no status property", domain.ErrStatusUnknown)
		u.finish(ctx, token, repository.DeliveryStatusRejected, err)
		return "", err
	}

	resolved := ResolveStatusName(token.Status, token.Truncated, db.StatusOptions())
	if resolved == "" {
		log.Info().Msg("requested status not among current options")
		err := fmt.Errorf("%w: %q", domain.ErrStatusUnknown, token.Status)
		u.finish(ctx, token, repository.DeliveryStatusRejected, err)
		return "", err
	}

	if u.locker != nil {
		lockKey := "page_lock:" + token.PageID
		lockToken, err := u.locker.TryLock(ctx, lockKey, pageLockTTL)
		if err != nil {
			u.finish(ctx, token, repository.DeliveryStatusRejected, err)
			return "", err
		}
		defer func() {
			if err := u.locker.Unlock(ctx, lockKey, lockToken); err != nil {
				log.Warn().Err(err).Msg("page unlock failed")
			}
		}()
	}

	write := adapter.StatusWrite{Property: propName, Kind: schema.Type, Value: resolved}
	if err := u.notion.UpdatePageStatus(ctx, token.PageID, write); err != nil {
		u.finish(ctx, token, repository.DeliveryStatusFailed, err)
		return "", fmt.Errorf("apply status: %w", err)
	}

	log.Info().Str("applied", resolved).Msg("status applied")
	u.finish(ctx, token, repository.DeliveryStatusApplied, nil)
	return resolved, nil
}

// ResolveStatusName matches a requested name against the current options:
// exact first, then case-insensitive, then — only for tokens that filled the
// callback byte budget — a unique case-insensitive prefix match. Ambiguity
// or absence yields "".
func ResolveStatusName(requested string, maybeTruncated bool, options []model.StatusOption) string {
	for _, o := range options {
		if o.Name == requested {
			return o.Name
		}
	}
	for _, o := range options {
		if strings.EqualFold(o.Name, requested) {
			return o.Name
		}
	}
	if maybeTruncated {
		match := ""
		lower := strings.ToLower(requested)
		for _, o := range options {
			if strings.HasPrefix(strings.ToLower(o.Name), lower) {
				if match != "" {
					return "" // ambiguous
				}
				match = o.Name
			}
		}
		return match
	}
	return ""
}

func (u *StatusUseCase) finish(ctx context.Context, token *model.CallbackToken, status string, cause error) {
	switch status {
	case repository.DeliveryStatusApplied:
		metrics.IncCallbackOutcome("applied")
	case repository.DeliveryStatusRejected:
		metrics.IncCallbackOutcome("rejected")
	default:
		metrics.IncCallbackOutcome("failed")
	}
	if u.deliveries == nil {
		return
	}
	detail := token.Status
	if cause != nil {
		detail = cause.Error()
	}
	d := &repository.Delivery{
		PageID:    token.PageID,
		EventType: "callback.status",
		Status:    status,
		Detail:    detail,
	}
	if err := u.deliveries.Save(ctx, d); err != nil {
		u.log.Warn().Err(err).Msg("delivery log write failed")
	}
}
