// File: internal/usecase/extract.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
)

// Property names are matched exactly against the database schema.
const (
	propDescription = "Description"
	propStatus      = "Status"
	propDeadline    = "Deadline"
	propExecutor    = "Executor"
	propAssignedBy  = "Assigned By"
	propTelegram    = "Telegram Username"
	propProject     = "Projects (1)"
	propTags        = "Tags"
)

const displayTimeLayout = "02.01.2006 15:04"

// Extractor flattens a page's typed property bag into a PageRecord.
// Relation and hierarchy fields need secondary fetches; those are dependent
// calls on purpose, not a batched resolver.
type Extractor struct {
	notion adapter.NotionAdapter
	log    *zerolog.Logger
}

func NewExtractor(notion adapter.NotionAdapter, logger *zerolog.Logger) *Extractor {
	compLog := logger.With().Str("component", "Extractor").Logger()
	return &Extractor{notion: notion, log: &compLog}
}

// Extract never fails: fields whose properties are missing or whose secondary
// fetches error are left empty.
func (e *Extractor) Extract(ctx context.Context, page *model.Page) *model.PageRecord {
	props := page.Properties
	rec := &model.PageRecord{
		ID:            page.ID,
		Title:         page.Title(),
		Description:   extractRichText(props, propDescription),
		Status:        extractStatus(props, propStatus),
		Deadline:      extractDate(props, propDeadline),
		Executor:      extractPerson(props, propExecutor),
		AssignedBy:    extractPerson(props, propAssignedBy),
		TelegramUsers: extractMultiSelect(props, propTelegram),
		Tags:          extractMultiSelect(props, propTags),
		Files:         extractFiles(props),
		URL:           page.URL,
	}
	if rec.Title == "" {
		rec.Title = "No Title"
	}
	if !page.CreatedTime.IsZero() {
		rec.CreatedTime = page.CreatedTime.Local().Format(displayTimeLayout)
	}
	if !page.LastEditedTime.IsZero() {
		rec.LastEditedTime = page.LastEditedTime.Local().Format(displayTimeLayout)
	}
	rec.Project = e.resolveRelation(ctx, props, propProject)
	rec.Hierarchy = e.resolveHierarchy(ctx, page.Parent)
	return rec
}

// resolveRelation fetches the related page to turn its id into a display title.
func (e *Extractor) resolveRelation(ctx context.Context, props map[string]model.Property, name string) string {
	prop, ok := props[name]
	if !ok || prop.Type != "relation" || len(prop.Relation) == 0 {
		return ""
	}
	relatedID := prop.Relation[0].ID
	related, err := e.notion.GetPage(ctx, relatedID)
	if err != nil {
		e.log.Warn().Err(err).Str("related_id", relatedID).Msg("relation title fetch failed")
		return "Project (ID: " + relatedID + ")"
	}
	if title := related.Title(); title != "" {
		return title
	}
	return "Project (ID: " + relatedID + ")"
}

// resolveHierarchy walks parent links at most two levels up (database, then
// the database's parent page), tolerating missing links.
func (e *Extractor) resolveHierarchy(ctx context.Context, parent model.Parent) []string {
	if parent.Type != "database_id" && parent.Type != "database" {
		return nil
	}
	dbID := parent.DatabaseID
	if dbID == "" {
		return nil
	}
	db, err := e.notion.GetDatabase(ctx, dbID)
	if err != nil {
		e.log.Warn().Err(err).Str("database_id", dbID).Msg("hierarchy database fetch failed")
		return nil
	}
	chain := []string{}
	if db.Parent.Type == "page_id" && db.Parent.PageID != "" {
		if owner, err := e.notion.GetPage(ctx, db.Parent.PageID); err == nil {
			if t := owner.Title(); t != "" {
				chain = append(chain, t)
			}
		}
	}
	if n := db.Name(); n != "" {
		chain = append(chain, n)
	}
	return chain
}

func extractRichText(props map[string]model.Property, name string) string {
	prop, ok := props[name]
	if !ok || prop.Type != "rich_text" {
		return ""
	}
	return model.JoinRichText(prop.RichText)
}

func extractStatus(props map[string]model.Property, name string) string {
	prop, ok := props[name]
	if !ok {
		return ""
	}
	switch {
	case prop.Type == "status" && prop.Status != nil:
		return prop.Status.Name
	case prop.Type == "select" && prop.Select != nil:
		return prop.Select.Name
	}
	return ""
}

func extractDate(props map[string]model.Property, name string) string {
	prop, ok := props[name]
	if !ok || prop.Type != "date" || prop.Date == nil {
		return ""
	}
	start := prop.Date.Start
	// Date-only values stay as-is; timestamps are reformatted for display.
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		return t.Local().Format(displayTimeLayout)
	}
	return start
}

func extractPerson(props map[string]model.Property, name string) string {
	prop, ok := props[name]
	if !ok || prop.Type != "people" || len(prop.People) == 0 {
		return ""
	}
	return prop.People[0].Name
}

func extractMultiSelect(props map[string]model.Property, name string) []string {
	prop, ok := props[name]
	if !ok || prop.Type != "multi_select" {
		return nil
	}
	out := make([]string, 0, len(prop.MultiSelect))
	for _, o := range prop.MultiSelect {
		out = append(out, o.Name)
	}
	return out
}

func extractFiles(props map[string]model.Property) []string {
	for _, prop := range props {
		if prop.Type != "files" || len(prop.Files) == 0 {
			continue
		}
		out := make([]string, 0, len(prop.Files))
		for _, f := range prop.Files {
			out = append(out, f.Name)
		}
		return out
	}
	return nil
}
