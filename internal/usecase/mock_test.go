//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Adapters
// =============================

// ---- Mock NotionAdapter ----

type MockNotion struct {
	mu sync.Mutex

	Pages     map[string]*model.Page
	Databases map[string]*model.Database

	GetPageFunc          func(ctx context.Context, pageID string) (*model.Page, error)
	GetDatabaseFunc      func(ctx context.Context, databaseID string) (*model.Database, error)
	QueryDatabaseFunc    func(ctx context.Context, databaseID string, limit int) ([]*model.Page, error)
	CreatePageFunc       func(ctx context.Context, databaseID string, page adapter.NewPage) (*model.Page, error)
	UpdatePageStatusFunc func(ctx context.Context, pageID string, write adapter.StatusWrite) error

	Created []adapter.NewPage
	Writes  []adapter.StatusWrite
}

var _ adapter.NotionAdapter = (*MockNotion)(nil)

func NewMockNotion() *MockNotion {
	return &MockNotion{
		Pages:     map[string]*model.Page{},
		Databases: map[string]*model.Database{},
	}
}

func (m *MockNotion) GetPage(ctx context.Context, pageID string) (*model.Page, error) {
	if m.GetPageFunc != nil {
		return m.GetPageFunc(ctx, pageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Pages[pageID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockNotion) GetDatabase(ctx context.Context, databaseID string) (*model.Database, error) {
	if m.GetDatabaseFunc != nil {
		return m.GetDatabaseFunc(ctx, databaseID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.Databases[databaseID]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockNotion) QueryDatabase(ctx context.Context, databaseID string, limit int) ([]*model.Page, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, limit)
	}
	return nil, nil
}

func (m *MockNotion) CreatePage(ctx context.Context, databaseID string, page adapter.NewPage) (*model.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, page)
	return &model.Page{
		ID:  "created-page",
		URL: "https://notion.so/created-page",
		Properties: map[string]model.Property{
			"Name": {Type: "title", Title: []model.RichText{{PlainText: page.Title}}},
		},
	}, nil
}

func (m *MockNotion) AppendParagraphs(ctx context.Context, pageID string, paragraphs []string) error {
	return nil
}

func (m *MockNotion) UpdatePageStatus(ctx context.Context, pageID string, write adapter.StatusWrite) error {
	if m.UpdatePageStatusFunc != nil {
		return m.UpdatePageStatusFunc(ctx, pageID, write)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, write)
	return nil
}

// ---- Mock TelegramBotAdapter ----

type sentMessage struct {
	ChatID int64
	Text   string
	Rows   [][]adapter.InlineButton
}

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []sentMessage

	SendMessageFunc func(ctx context.Context, chatID int64, text string) (adapter.MessageRef, error)
	SendButtonsFunc func(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) (adapter.MessageRef, error)
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) (adapter.MessageRef, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text})
	return adapter.MessageRef{ChatID: chatID, MessageID: len(m.Sent)}, nil
}

func (m *MockTelegramBot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) (adapter.MessageRef, error) {
	if m.SendButtonsFunc != nil {
		return m.SendButtonsFunc(ctx, chatID, text, rows)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text, Rows: rows})
	return adapter.MessageRef{ChatID: chatID, MessageID: len(m.Sent)}, nil
}

// =============================
// Repositories
// =============================

type MockDeliveryLog struct {
	mu    sync.Mutex
	Saved []*repository.Delivery

	SaveFunc func(ctx context.Context, d *repository.Delivery) error
}

var _ repository.DeliveryLogRepository = (*MockDeliveryLog)(nil)

func (m *MockDeliveryLog) Save(ctx context.Context, d *repository.Delivery) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, d)
	return nil
}

func (m *MockDeliveryLog) CountByStatus(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, d := range m.Saved {
		out[d.Status]++
	}
	return out, nil
}

func (m *MockDeliveryLog) Recent(ctx context.Context, limit int) ([]*repository.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.Saved) {
		limit = len(m.Saved)
	}
	return m.Saved[:limit], nil
}

// =============================
// Locks
// =============================

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return "", domain.ErrLockHeld
	}
	m.held[key] = "token-" + key
	return m.held[key], nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

// =============================
// Fixtures
// =============================

const (
	fixturePageID = "11111111222233334444555555555555"
	fixtureDBID   = "aaaaaaaabbbbccccddddeeeeeeeeeeee"
)

func fixtureDatabase(statuses ...string) *model.Database {
	opts := make([]model.Option, 0, len(statuses))
	for _, s := range statuses {
		opts = append(opts, model.Option{Name: s})
	}
	return &model.Database{
		ID:    fixtureDBID,
		Title: []model.RichText{{PlainText: "Tasks"}},
		Properties: map[string]model.PropertySchema{
			"Status": {
				Type: "status",
				Status: &struct {
					Options []model.Option `json:"options"`
				}{Options: opts},
			},
		},
	}
}

func fixturePage() *model.Page {
	return &model.Page{
		ID:  fixturePageID,
		URL: "https://notion.so/" + fixturePageID,
		Parent: model.Parent{
			Type:       "database_id",
			DatabaseID: fixtureDBID,
		},
		Properties: map[string]model.Property{
			"Name":   {Type: "title", Title: []model.RichText{{PlainText: "Fix the login flow"}}},
			"Status": {Type: "status", Status: &model.Option{Name: "In Progress"}},
			"Description": {Type: "rich_text", RichText: []model.RichText{
				{PlainText: "Users get logged out after refresh."},
			}},
			"Executor": {Type: "people", People: []model.Person{{ID: "u1", Name: "Dana"}}},
			"Tags":     {Type: "multi_select", MultiSelect: []model.Option{{Name: "bug"}, {Name: "auth"}}},
		},
	}
}
