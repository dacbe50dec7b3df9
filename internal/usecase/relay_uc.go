// File: internal/usecase/relay_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/domain/ports/repository"
	"notion-telegram-relay/internal/infra/logging"
	"notion-telegram-relay/internal/infra/metrics"
)

// Outcome is the dispatcher's terminal state for one webhook delivery.
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeRelayed
)

func (o Outcome) String() string {
	if o == OutcomeRelayed {
		return "relayed"
	}
	return "dropped"
}

// RelayUseCase classifies webhook events and drives the
// fetch → extract → render → notify pipeline.
type RelayUseCase struct {
	notion     adapter.NotionAdapter
	bot        adapter.TelegramBotAdapter
	extractor  *Extractor
	deliveries repository.DeliveryLogRepository
	channelID  int64
	log        *zerolog.Logger
}

func NewRelayUseCase(
	notion adapter.NotionAdapter,
	bot adapter.TelegramBotAdapter,
	extractor *Extractor,
	deliveries repository.DeliveryLogRepository,
	channelID int64,
	logger *zerolog.Logger,
) *RelayUseCase {
	compLog := logger.With().Str("component", "RelayUC").Logger()
	return &RelayUseCase{
		notion:     notion,
		bot:        bot,
		extractor:  extractor,
		deliveries: deliveries,
		channelID:  channelID,
		log:        &compLog,
	}
}

// ProcessEnvelope handles one webhook delivery end to end. Dropped events
// return (OutcomeDropped, nil); pipeline failures return a classified error
// which the caller logs — Notion always gets its 200 regardless.
func (u *RelayUseCase) ProcessEnvelope(ctx context.Context, env *model.WebhookEnvelope) (Outcome, error) {
	defer logging.TraceDuration(logging.With(ctx, u.log), "RelayUC.ProcessEnvelope")()

	ev := model.ParseEvent(env)
	metrics.IncWebhookEvent(string(ev.Type))

	if ev.VerificationToken != "" {
		u.log.Info().Msg("verification token delivery ignored")
		metrics.IncWebhookDropped("verification")
		return OutcomeDropped, nil
	}
	if !ev.Type.Handled() {
		u.log.Info().Str("type", string(ev.Type)).Msg("event type ignored")
		metrics.IncWebhookDropped("unhandled_type")
		return OutcomeDropped, nil
	}
	if ev.EntityType != "page" || ev.EntityID == "" {
		u.log.Warn().Str("entity_type", ev.EntityType).Str("entity_id", ev.EntityID).
			Msg("malformed entity in handled event")
		metrics.IncWebhookDropped("bad_entity")
		return OutcomeDropped, fmt.Errorf("%w: entity type=%q id=%q", domain.ErrInvalidArgument, ev.EntityType, ev.EntityID)
	}

	if err := u.relayPage(ctx, ev); err != nil {
		metrics.IncNotification("failed")
		u.recordDelivery(ctx, ev, adapter.MessageRef{}, repository.DeliveryStatusFailed, err.Error())
		return OutcomeDropped, err
	}
	return OutcomeRelayed, nil
}

func (u *RelayUseCase) relayPage(ctx context.Context, ev *model.WebhookEvent) error {
	log := u.log.With().Str("page_id", ev.EntityID).Str("type", string(ev.Type)).Logger()
	if len(ev.ChangedProperties) > 0 {
		log.Info().Strs("updated_properties", ev.ChangedProperties).Msg("processing page event")
	} else {
		log.Info().Msg("processing page event")
	}

	page, err := u.notion.GetPage(ctx, ev.EntityID)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}

	rec := u.extractor.Extract(ctx, page)
	text := RenderNotification(rec, ev.Type)
	rows := u.statusKeyboard(ctx, ev, page)

	var ref adapter.MessageRef
	if len(rows) > 0 {
		ref, err = u.bot.SendButtons(ctx, u.channelID, text, rows)
	} else {
		ref, err = u.bot.SendMessage(ctx, u.channelID, text)
	}
	if err != nil {
		metrics.IncTelegramSendFailure()
		return domain.Transport(fmt.Errorf("send notification: %w", err))
	}

	metrics.IncNotification("sent")
	u.recordDelivery(ctx, ev, ref, repository.DeliveryStatusSent, "")
	log.Info().Int("message_id", ref.MessageID).Msg("notification sent")
	return nil
}

// statusKeyboard builds the 2-column status button grid from the page's
// database schema, queried fresh per notification. A page without status
// options gets no keyboard.
func (u *RelayUseCase) statusKeyboard(ctx context.Context, ev *model.WebhookEvent, page *model.Page) [][]adapter.InlineButton {
	dbID := ev.ParentDatabaseID
	if dbID == "" {
		dbID = page.Parent.DatabaseID
	}
	if dbID == "" {
		return nil
	}
	db, err := u.notion.GetDatabase(ctx, dbID)
	if err != nil {
		u.log.Warn().Err(err).Str("database_id", dbID).Msg("status options fetch failed")
		return nil
	}
	return BuildStatusKeyboard(page.ID, db.StatusOptions(), u.log)
}

// BuildStatusKeyboard lays out one button per status option, two per row.
// Names that would overflow the callback data limit are truncated and logged.
func BuildStatusKeyboard(pageID string, options []model.StatusOption, log *zerolog.Logger) [][]adapter.InlineButton {
	var rows [][]adapter.InlineButton
	var row []adapter.InlineButton
	for _, opt := range options {
		data, truncated, err := model.EncodeStatusCallback(pageID, opt.Name)
		if err != nil {
			log.Warn().Err(err).Str("status", opt.Name).Msg("status button skipped")
			continue
		}
		if truncated {
			metrics.IncCallbackTruncation()
			log.Warn().Str("status", opt.Name).Str("data", data).Msg("status name truncated for callback data")
		}
		row = append(row, adapter.InlineButton{Text: opt.Name, Data: data})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// recordDelivery is best-effort audit logging; failures never affect the relay.
func (u *RelayUseCase) recordDelivery(ctx context.Context, ev *model.WebhookEvent, ref adapter.MessageRef, status, detail string) {
	if u.deliveries == nil {
		return
	}
	d := &repository.Delivery{
		PageID:    ev.EntityID,
		EventType: string(ev.Type),
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
		Status:    status,
		Detail:    detail,
	}
	if err := u.deliveries.Save(ctx, d); err != nil {
		u.log.Warn().Err(err).Msg("delivery log write failed")
	}
}
