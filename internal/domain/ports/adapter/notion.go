// File: internal/domain/ports/adapter/notion.go
package adapter

import (
	"context"

	"notion-telegram-relay/internal/domain/model"
)

// NewPage is the input for document creation from the chat intake path.
type NewPage struct {
	Title       string
	Description string
	// Paragraphs are appended as child blocks after creation.
	Paragraphs []string
}

// StatusWrite is a property-type-aware status update. Kind must be one of
// status | select | title | rich_text; anything else is rejected by the
// implementation.
type StatusWrite struct {
	Property string
	Kind     string
	Value    string
}

// NotionAdapter is the outbound port to the document store.
type NotionAdapter interface {
	GetPage(ctx context.Context, pageID string) (*model.Page, error)
	GetDatabase(ctx context.Context, databaseID string) (*model.Database, error)
	// QueryDatabase returns up to limit pages of the database, newest first.
	QueryDatabase(ctx context.Context, databaseID string, limit int) ([]*model.Page, error)
	CreatePage(ctx context.Context, databaseID string, page NewPage) (*model.Page, error)
	AppendParagraphs(ctx context.Context, pageID string, paragraphs []string) error
	UpdatePageStatus(ctx context.Context, pageID string, write StatusWrite) error
}
