// File: internal/infra/adapters/notion/client.go
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"notion-telegram-relay/internal/config"
	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/infra/metrics"
)

var _ adapter.NotionAdapter = (*Client)(nil)

// Client implements adapter.NotionAdapter against the Notion REST API.
// All calls share a client-side rate limiter; Notion rejects bursts above
// roughly three requests per second.
type Client struct {
	token   string
	baseURL string
	version string
	http    *http.Client
	limiter *rate.Limiter
	log     *zerolog.Logger
}

func NewClient(cfg *config.NotionConfig, logger *zerolog.Logger) (*Client, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("notion token is empty")
	}
	compLog := logger.With().Str("component", "NotionClient").Logger()
	return &Client{
		token:   cfg.Token,
		baseURL: cfg.BaseURL,
		version: cfg.Version,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), 1),
		log:     &compLog,
	}, nil
}

// call performs one API request with auth headers, rate limiting and error
// classification. out may be nil when the response body is irrelevant.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Transport(err)
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode %s body: %v", domain.ErrInvalidArgument, op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNotionCall(op, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return domain.Transport(fmt.Errorf("%s: %w", op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode).
			Str("code", apiErr.Code).Msg("notion api error")
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return domain.Transport(fmt.Errorf("%s: notion returned %d (%s)", op, resp.StatusCode, apiErr.Code))
		default:
			return fmt.Errorf("%w: %s: notion returned %d (%s)", domain.ErrInvalidArgument, op, resp.StatusCode, apiErr.Message)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Transport(fmt.Errorf("%s: decode response: %w", op, err))
	}
	return nil
}

func (c *Client) GetPage(ctx context.Context, pageID string) (*model.Page, error) {
	var page model.Page
	if err := c.call(ctx, "pages.retrieve", http.MethodGet, "/pages/"+pageID, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*model.Database, error) {
	var db model.Database
	if err := c.call(ctx, "databases.retrieve", http.MethodGet, "/databases/"+databaseID, nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) QueryDatabase(ctx context.Context, databaseID string, limit int) ([]*model.Page, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	payload := map[string]any{
		"page_size": limit,
		"sorts": []map[string]string{
			{"timestamp": "created_time", "direction": "descending"},
		},
	}
	var out struct {
		Results []*model.Page `json:"results"`
	}
	if err := c.call(ctx, "databases.query", http.MethodPost, "/databases/"+databaseID+"/query", payload, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) CreatePage(ctx context.Context, databaseID string, page adapter.NewPage) (*model.Page, error) {
	if page.Title == "" {
		return nil, fmt.Errorf("%w: empty page title", domain.ErrInvalidArgument)
	}
	props := map[string]any{
		// "title" is the fixed id of whatever the database names its title property.
		"title": map[string]any{
			"title": []map[string]any{textFragment(page.Title)},
		},
	}
	if page.Description != "" {
		props["Description"] = map[string]any{
			"rich_text": []map[string]any{textFragment(page.Description)},
		}
	}
	payload := map[string]any{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": props,
	}
	var created model.Page
	if err := c.call(ctx, "pages.create", http.MethodPost, "/pages", payload, &created); err != nil {
		return nil, err
	}
	if len(page.Paragraphs) > 0 {
		if err := c.AppendParagraphs(ctx, created.ID, page.Paragraphs); err != nil {
			// The page exists; report the partial failure but return it.
			c.log.Warn().Err(err).Str("page_id", created.ID).Msg("append blocks after create failed")
		}
	}
	return &created, nil
}

func (c *Client) AppendParagraphs(ctx context.Context, pageID string, paragraphs []string) error {
	if len(paragraphs) == 0 {
		return nil
	}
	children := make([]map[string]any, 0, len(paragraphs))
	for _, p := range paragraphs {
		children = append(children, map[string]any{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]any{
				"rich_text": []map[string]any{textFragment(p)},
			},
		})
	}
	payload := map[string]any{"children": children}
	return c.call(ctx, "blocks.children.append", http.MethodPatch, "/blocks/"+pageID+"/children", payload, nil)
}

// UpdatePageStatus writes a status value with the shape the property type
// demands. Only status, select, title and rich_text are writable this way.
func (c *Client) UpdatePageStatus(ctx context.Context, pageID string, write adapter.StatusWrite) error {
	if write.Property == "" {
		return fmt.Errorf("%w: empty property name", domain.ErrInvalidArgument)
	}
	var value map[string]any
	switch write.Kind {
	case "status":
		value = map[string]any{"status": map[string]string{"name": write.Value}}
	case "select":
		value = map[string]any{"select": map[string]string{"name": write.Value}}
	case "title":
		value = map[string]any{"title": []map[string]any{textFragment(write.Value)}}
	case "rich_text":
		value = map[string]any{"rich_text": []map[string]any{textFragment(write.Value)}}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedProperty, write.Kind)
	}
	payload := map[string]any{
		"properties": map[string]any{write.Property: value},
	}
	return c.call(ctx, "pages.update", http.MethodPatch, "/pages/"+pageID, payload, nil)
}

func textFragment(s string) map[string]any {
	return map[string]any{
		"type": "text",
		"text": map[string]string{"content": s},
	}
}
