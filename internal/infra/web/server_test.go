//go:build !integration

package web_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/config"
	"notion-telegram-relay/internal/domain"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/domain/ports/adapter"
	"notion-telegram-relay/internal/infra/web"
	"notion-telegram-relay/internal/infra/worker"
	"notion-telegram-relay/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- minimal mocks ----

type stubNotion struct {
	page *model.Page
	db   *model.Database
}

func (s *stubNotion) GetPage(ctx context.Context, pageID string) (*model.Page, error) {
	if s.page == nil {
		return nil, domain.ErrNotFound
	}
	return s.page, nil
}

func (s *stubNotion) GetDatabase(ctx context.Context, databaseID string) (*model.Database, error) {
	if s.db == nil {
		return nil, domain.ErrNotFound
	}
	return s.db, nil
}

func (s *stubNotion) QueryDatabase(ctx context.Context, databaseID string, limit int) ([]*model.Page, error) {
	return nil, nil
}

func (s *stubNotion) CreatePage(ctx context.Context, databaseID string, page adapter.NewPage) (*model.Page, error) {
	return nil, domain.ErrInvalidArgument
}

func (s *stubNotion) AppendParagraphs(ctx context.Context, pageID string, paragraphs []string) error {
	return nil
}

func (s *stubNotion) UpdatePageStatus(ctx context.Context, pageID string, write adapter.StatusWrite) error {
	return nil
}

type sentNotification struct {
	Text string
	Rows [][]adapter.InlineButton
}

type stubBot struct {
	sent chan sentNotification
}

func (s *stubBot) SendMessage(ctx context.Context, chatID int64, text string) (adapter.MessageRef, error) {
	s.sent <- sentNotification{Text: text}
	return adapter.MessageRef{ChatID: chatID, MessageID: 1}, nil
}

func (s *stubBot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) (adapter.MessageRef, error) {
	s.sent <- sentNotification{Text: text, Rows: rows}
	return adapter.MessageRef{ChatID: chatID, MessageID: 1}, nil
}

// ---- fixture ----

const webhookSecret = "whsec_test"

func newTestServer(t *testing.T, secret string) (*web.Server, *stubBot, func()) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Bot.ChannelID = -100
	cfg.Bot.Mode = "polling"
	cfg.Server.WebhookPath = "/webhook/notion"
	cfg.Notion.WebhookSecret = secret

	logger := newTestLogger()
	notion := &stubNotion{
		page: &model.Page{
			ID:     "p1",
			Parent: model.Parent{Type: "database_id", DatabaseID: "db-1"},
			Properties: map[string]model.Property{
				"Name":   {Type: "title", Title: []model.RichText{{PlainText: "A task"}}},
				"Status": {Type: "status", Status: &model.Option{Name: "To Do"}},
			},
		},
		db: &model.Database{
			ID:    "db-1",
			Title: []model.RichText{{PlainText: "Tasks"}},
			Properties: map[string]model.PropertySchema{
				"Status": {
					Type: "status",
					Status: &struct {
						Options []model.Option `json:"options"`
					}{Options: []model.Option{{Name: "To Do"}, {Name: "Done"}}},
				},
			},
		},
	}
	bot := &stubBot{sent: make(chan sentNotification, 4)}
	extractor := usecase.NewExtractor(notion, logger)
	relayUC := usecase.NewRelayUseCase(notion, bot, extractor, nil, cfg.Bot.ChannelID, logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(1, logger)
	pool.Start(ctx)

	srv := web.NewServer(cfg, relayUC, nil, nil, pool, nil, logger)
	return srv, bot, func() {
		cancel()
		pool.Stop()
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T) []byte {
	t.Helper()
	env := map[string]any{
		"type": "page.created",
		"entity": map[string]any{
			"id":   "p1",
			"type": "page",
		},
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestServer_Challenge(t *testing.T) {
	srv, _, stop := newTestServer(t, "")
	defer stop()
	router := srv.Router()

	t.Run("echoes the challenge token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/notion?challenge=abc123", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["challenge"] != "abc123" {
			t.Errorf("challenge = %q", resp["challenge"])
		}
	})

	t.Run("accepts the verification param alias", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/notion?verification=tok-9", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var resp map[string]string
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["challenge"] != "tok-9" {
			t.Errorf("challenge = %q", resp["challenge"])
		}
	})

	t.Run("reports alive without a challenge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/notion", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp map[string]string
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "no challenge provided" {
			t.Errorf("status = %q", resp["status"])
		}
	})
}

func TestServer_NotionWebhook(t *testing.T) {
	t.Run("valid signature is accepted and dispatched", func(t *testing.T) {
		srv, bot, stop := newTestServer(t, webhookSecret)
		defer stop()
		router := srv.Router()

		body := webhookBody(t)
		req := httptest.NewRequest(http.MethodPost, "/webhook/notion", bytes.NewReader(body))
		req.Header.Set("X-Notion-Signature", sign(webhookSecret, body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}

		select {
		case n := <-bot.sent:
			if n.Text == "" {
				t.Error("empty notification")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("notification never dispatched")
		}
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		srv, bot, stop := newTestServer(t, webhookSecret)
		defer stop()
		router := srv.Router()

		body := webhookBody(t)
		req := httptest.NewRequest(http.MethodPost, "/webhook/notion", bytes.NewReader(body))
		req.Header.Set("X-Notion-Signature", sign("wrong-secret", body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rr.Code)
		}
		select {
		case <-bot.sent:
			t.Fatal("nothing should be dispatched")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("missing signature header is rejected when a secret is set", func(t *testing.T) {
		srv, _, stop := newTestServer(t, webhookSecret)
		defer stop()
		router := srv.Router()

		req := httptest.NewRequest(http.MethodPost, "/webhook/notion", bytes.NewReader(webhookBody(t)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("unsigned delivery passes when no secret is configured", func(t *testing.T) {
		srv, bot, stop := newTestServer(t, "")
		defer stop()
		router := srv.Router()

		req := httptest.NewRequest(http.MethodPost, "/webhook/notion", bytes.NewReader(webhookBody(t)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		select {
		case <-bot.sent:
		case <-time.After(2 * time.Second):
			t.Fatal("notification never dispatched")
		}
	})

	t.Run("properties update lands as one keyboard message", func(t *testing.T) {
		srv, bot, stop := newTestServer(t, "")
		defer stop()
		router := srv.Router()

		env := map[string]any{
			"type": "page.properties_updated",
			"entity": map[string]any{
				"id":   "p1",
				"type": "page",
			},
			"data": map[string]any{
				"parent":             map[string]any{"id": "db-1", "type": "database"},
				"updated_properties": []string{"Status"},
			},
		}
		body, _ := json.Marshal(env)
		req := httptest.NewRequest(http.MethodPost, "/webhook/notion", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}

		select {
		case n := <-bot.sent:
			for _, want := range []string{"TASK UPDATE", "A task", "🔹 <b>Status:</b> To Do"} {
				if !strings.Contains(n.Text, want) {
					t.Errorf("missing %q in %q", want, n.Text)
				}
			}
			buttons := 0
			for _, row := range n.Rows {
				buttons += len(row)
			}
			if buttons != 2 {
				t.Errorf("expected one button per status option, got %d", buttons)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("notification never dispatched")
		}
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		srv, _, stop := newTestServer(t, "")
		defer stop()
		router := srv.Router()

		req := httptest.NewRequest(http.MethodPost, "/webhook/notion", bytes.NewReader([]byte("{not json")))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestServer_AdminSession(t *testing.T) {
	cfg := &config.Config{}
	cfg.Bot.Mode = "polling"
	cfg.Server.WebhookPath = "/webhook/notion"
	cfg.Admin.APIKey = "k-admin"
	cfg.Admin.JWTSecret = "jwt-secret"
	cfg.Admin.SessionTTL = time.Hour

	logger := newTestLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := worker.NewPool(1, logger)
	pool.Start(ctx)
	defer pool.Stop()

	srv := web.NewServer(cfg, nil, nil, nil, pool, nil, logger)
	router := srv.Router()

	login := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"api_key":"k-admin"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, login)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["token"] == "" {
		t.Fatal("login returned no token")
	}

	logout := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	logout.Header.Set("Authorization", "Bearer "+resp["token"])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, logout)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rr.Code)
	}
	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin_session" && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not drop the session cookie")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/logout", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated logout status = %d", rr.Code)
	}
}

func TestServer_Health(t *testing.T) {
	srv, _, stop := newTestServer(t, "")
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
