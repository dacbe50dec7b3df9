package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/application"
	"notion-telegram-relay/internal/config"
	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/infra/metrics"
	red "notion-telegram-relay/internal/infra/redis"
	"notion-telegram-relay/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter uses tgbotapi for channel notifications and for the
// inbound update stream (polling or webhook, never both).
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	log         *zerolog.Logger

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc

	// webhookUpdates feeds handler workers in webhook delivery mode. The
	// mutex serializes FeedUpdate against the shutdown close so a late HTTP
	// delivery never sends on a closed channel.
	webhookMu      sync.Mutex
	webhookClosed  bool
	webhookUpdates chan tgbotapi.Update
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}

	compLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		facade:        facade,
		rateLimiter:   rateLimiter,
		log:           &compLog,
		adminIDsMap:   adminMap,
		updateWorkers: workers,
	}, nil
}

// StartPolling begins long polling for updates; it runs until ctx is
// canceled. Any registered webhook is removed first since Telegram allows
// only one delivery mode per token.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn().Err(err).Msg("delete webhook before polling")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)
	r.spawnWorkers(ctx, &wg, updateChan)

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

// StartWebhook registers the webhook URL with Telegram and spawns handler
// workers. Updates are fed through WebhookHandler.
func (r *RealTelegramBotAdapter) StartWebhook(ctx context.Context) error {
	wh, err := tgbotapi.NewWebhook(r.cfg.WebhookURL)
	if err != nil {
		return err
	}
	if _, err := r.bot.Request(wh); err != nil {
		return err
	}
	r.webhookUpdates = make(chan tgbotapi.Update, 100)
	var wg sync.WaitGroup
	r.spawnWorkers(ctx, &wg, r.webhookUpdates)
	go func() {
		<-ctx.Done()
		r.closeWebhookQueue()
		wg.Wait()
	}()
	r.log.Info().Str("url", r.cfg.WebhookURL).Msg("telegram webhook registered")
	return nil
}

// FeedUpdate enqueues one webhook-delivered update; it drops when the queue
// is saturated so the HTTP handler never blocks.
func (r *RealTelegramBotAdapter) FeedUpdate(up tgbotapi.Update) {
	r.webhookMu.Lock()
	defer r.webhookMu.Unlock()
	if r.webhookUpdates == nil || r.webhookClosed {
		return
	}
	select {
	case r.webhookUpdates <- up:
	default:
		r.log.Warn().Msg("telegram update queue full, dropping update")
	}
}

func (r *RealTelegramBotAdapter) closeWebhookQueue() {
	r.webhookMu.Lock()
	defer r.webhookMu.Unlock()
	if r.webhookUpdates == nil || r.webhookClosed {
		return
	}
	r.webhookClosed = true
	close(r.webhookUpdates)
}

func (r *RealTelegramBotAdapter) spawnWorkers(ctx context.Context, wg *sync.WaitGroup, updates <-chan tgbotapi.Update) {
	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updates:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Error().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SendMessage sends HTML-formatted text to a chat or channel.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) (adapter.MessageRef, error) {
	select {
	case <-ctx.Done():
		return adapter.MessageRef{}, ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := r.bot.Send(msg)
	if err != nil {
		metrics.IncTelegramSendFailure()
		return adapter.MessageRef{}, err
	}
	return adapter.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// SendButtons sends a message with an inline keyboard.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else a safe fallback uses btn.Text as callback data
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) (adapter.MessageRef, error) {
	select {
	case <-ctx.Done():
		return adapter.MessageRef{}, ctx.Err()
	default:
	}

	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kbRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			var kb tgbotapi.InlineKeyboardButton
			switch {
			case btn.URL != "":
				kb = tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL)
			case btn.Data != "":
				kb = tgbotapi.NewInlineKeyboardButtonData(label, btn.Data)
			default:
				kb = tgbotapi.NewInlineKeyboardButtonData(label, label)
			}
			kbRow = append(kbRow, kb)
		}
		kbRows = append(kbRows, kbRow)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	sent, err := r.bot.Send(msg)
	if err != nil {
		metrics.IncTelegramSendFailure()
		return adapter.MessageRef{}, err
	}
	return adapter.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	// ----- Inline button callbacks -----
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	// ----- Regular messages -----
	if update.Message == nil {
		return nil
	}
	tgUser := update.Message.From
	if tgUser == nil {
		return nil
	}
	chatID := update.Message.Chat.ID

	fields := strings.Fields(update.Message.Text)
	command := "message"
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		command = fields[0]
	}
	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.SenderKey(tgUser.ID, command), 20, time.Minute)
		if err != nil {
			r.log.Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			return r.reply(ctx, chatID, "Rate limit exceeded. Please try again later.")
		}
	}

	switch command {
	case "/start":
		return r.reply(ctx, chatID, "Hello! I relay Notion task updates.\n"+r.facade.HandleHelp())
	case "/help":
		return r.reply(ctx, chatID, r.facade.HandleHelp())
	case "/tasks":
		text, err := r.facade.HandleTaskList(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("task list failed")
			text = "Failed to load tasks."
		}
		return r.reply(ctx, chatID, text)
	case "/stats":
		if _, ok := r.adminIDsMap[tgUser.ID]; !ok {
			return r.reply(ctx, chatID, "This command is restricted to admins.")
		}
		text, err := r.facade.HandleStats(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("stats failed")
			text = "Failed to load stats."
		}
		return r.reply(ctx, chatID, text)
	case "message":
		if strings.TrimSpace(update.Message.Text) == "" {
			return nil
		}
		text, err := r.facade.HandleNewTask(ctx, tgUser.UserName, update.Message.Text)
		if err != nil {
			r.log.Error().Err(err).Msg("task intake failed")
			text = "Failed to create the task. Please try again later."
		}
		return r.reply(ctx, chatID, text)
	default:
		return r.reply(ctx, chatID, "Unknown command. Send /help for the list of commands.")
	}
}

// handleQuery walks a button press through ack, apply and the in-place edit
// of the original notification.
func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Ack before any vendor call so the button never spins on slow paths.
	if _, err := r.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		r.log.Warn().Err(err).Msg("callback ack failed")
	}

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else {
		chatID = query.From.ID
	}
	if chatID == 0 {
		return nil
	}

	data := strings.TrimSpace(query.Data)
	if !strings.HasPrefix(data, "status:") {
		r.log.Warn().Str("data", data).Msg("unknown callback data")
		return nil
	}

	if r.rateLimiter != nil {
		if allowed, err := r.rateLimiter.Allow(ctx, red.SenderKey(query.From.ID, "callback"), 30, time.Minute); err == nil && !allowed {
			return r.reply(ctx, chatID, "Rate limit exceeded. Please try again later.")
		}
	}

	applied, err := r.facade.HandleStatusCallback(ctx, data)
	if err != nil {
		return r.reply(ctx, chatID, statusErrorNotice(err))
	}

	if query.Message != nil {
		newText, ok := usecase.ReplaceStatusLine(messageHTML(query.Message), applied)
		if ok {
			edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, newText)
			edit.ParseMode = tgbotapi.ModeHTML
			if query.Message.ReplyMarkup != nil {
				edit.ReplyMarkup = query.Message.ReplyMarkup
			}
			if _, err := r.bot.Send(edit); err != nil {
				metrics.IncTelegramSendFailure()
				r.log.Error().Err(err).Int("message_id", query.Message.MessageID).Msg("message edit failed")
			}
		}
	}
	return nil
}

// statusErrorNotice maps callback failures to short user-visible notices.
func statusErrorNotice(err error) string {
	switch {
	case errors.Is(err, domain.ErrStatusUnknown):
		return "⚠️ That status is no longer available for this task."
	case errors.Is(err, domain.ErrLockHeld):
		return "⚠️ Another update for this task is in progress. Try again in a moment."
	case errors.Is(err, domain.ErrBadCallbackData):
		return "⚠️ This button is no longer valid."
	case domain.IsRetryable(err):
		return "⚠️ Notion did not respond. Please try again later."
	default:
		return "⚠️ Failed to update the status."
	}
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, text string) error {
	_, err := r.SendMessage(ctx, chatID, text)
	return err
}
