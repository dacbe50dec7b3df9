package application

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/usecase"
)

// BotFacade composes usecases into high-level bot operations.
// Methods return ready-to-send strings so the Telegram adapter just forwards
// them to the chat.
type BotFacade struct {
	StatusUC *usecase.StatusUseCase
	IntakeUC *usecase.IntakeUseCase
	StatsUC  usecase.StatsUseCase
}

func NewBotFacade(statusUC *usecase.StatusUseCase, intakeUC *usecase.IntakeUseCase, statsUC usecase.StatsUseCase) *BotFacade {
	return &BotFacade{StatusUC: statusUC, IntakeUC: intakeUC, StatsUC: statsUC}
}

// HandleStatusCallback decodes a status button's opaque data and applies the
// change, returning the exact status name that was written.
func (b *BotFacade) HandleStatusCallback(ctx context.Context, data string) (string, error) {
	token, err := model.DecodeStatusCallback(data)
	if err != nil {
		return "", err
	}
	if b.StatusUC == nil {
		return "", fmt.Errorf("status usecase not available")
	}
	return b.StatusUC.ApplyStatus(ctx, token)
}

// HandleNewTask creates a document from a chat message and returns a
// confirmation string.
func (b *BotFacade) HandleNewTask(ctx context.Context, author, text string) (string, error) {
	if b.IntakeUC == nil {
		return "", fmt.Errorf("intake usecase not available")
	}
	page, err := b.IntakeUC.CreateTask(ctx, author, text)
	if err != nil {
		return "", err
	}
	reply := "✅ Task created: <b>" + html.EscapeString(page.Title()) + "</b>"
	if page.URL != "" {
		reply += "\n🔗 <a href=\"" + html.EscapeString(page.URL) + "\">Open in Notion</a>"
	}
	return reply, nil
}

// HandleTaskList renders the newest tasks of the target database.
func (b *BotFacade) HandleTaskList(ctx context.Context) (string, error) {
	if b.IntakeUC == nil {
		return "", fmt.Errorf("intake usecase not available")
	}
	pages, err := b.IntakeUC.RecentTasks(ctx, 10)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "No tasks found.", nil
	}
	var sb strings.Builder
	sb.WriteString("🗂 <b>Recent tasks:</b>\n")
	for i, p := range pages {
		title := p.Title()
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("%d) %s\n", i+1, html.EscapeString(title)))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleStats summarizes the delivery log, grouped by outcome.
func (b *BotFacade) HandleStats(ctx context.Context) (string, error) {
	if b.StatsUC == nil {
		return "", fmt.Errorf("stats usecase not available")
	}
	totals, err := b.StatsUC.Totals(ctx)
	if err != nil {
		return "", err
	}
	if len(totals) == 0 {
		return "No deliveries recorded yet.", nil
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("📊 <b>Deliveries:</b>\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s: %d\n", html.EscapeString(k), totals[k]))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleHelp lists the chat commands.
func (b *BotFacade) HandleHelp() string {
	return "Commands:\n/start - init\n/help - this message\n/tasks - recent tasks\n\nAny other text creates a new task: first line is the title, the rest becomes the description."
}
