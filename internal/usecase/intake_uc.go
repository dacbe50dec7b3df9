// File: internal/usecase/intake_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/infra/metrics"
)

const intakeTitleLimit = 200 // runes

// IntakeUseCase turns inbound chat messages into new documents in the target
// database.
type IntakeUseCase struct {
	notion     adapter.NotionAdapter
	databaseID string
	log        *zerolog.Logger
}

func NewIntakeUseCase(notion adapter.NotionAdapter, databaseID string, logger *zerolog.Logger) *IntakeUseCase {
	compLog := logger.With().Str("component", "IntakeUC").Logger()
	return &IntakeUseCase{notion: notion, databaseID: databaseID, log: &compLog}
}

// CreateTask builds a page from free text: first line becomes the title, the
// remainder is stored as Description and appended as paragraph blocks.
func (u *IntakeUseCase) CreateTask(ctx context.Context, author, text string) (*model.Page, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty task text", domain.ErrInvalidArgument)
	}
	title, body, _ := strings.Cut(text, "\n")
	title = cutRunesAt(strings.TrimSpace(title), intakeTitleLimit)
	body = strings.TrimSpace(body)

	page := adapter.NewPage{Title: title, Description: cutDescription(body)}
	if body != "" {
		page.Paragraphs = strings.Split(body, "\n")
	}
	if author != "" {
		page.Paragraphs = append(page.Paragraphs, "Reported by @"+author)
	}

	created, err := u.notion.CreatePage(ctx, u.databaseID, page)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	metrics.IncIntakePageCreated()
	u.log.Info().Str("page_id", created.ID).Str("author", author).Msg("task created from chat")
	return created, nil
}

// RecentTasks lists the newest pages of the target database.
func (u *IntakeUseCase) RecentTasks(ctx context.Context, limit int) ([]*model.Page, error) {
	pages, err := u.notion.QueryDatabase(ctx, u.databaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query database: %w", err)
	}
	return pages, nil
}

func cutRunesAt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
