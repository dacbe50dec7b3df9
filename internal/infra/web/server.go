package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"notion-telegram-relay/internal/config"
	"notion-telegram-relay/internal/domain/model"
	"notion-telegram-relay/internal/infra/logging"
	"notion-telegram-relay/internal/infra/metrics"
	"notion-telegram-relay/internal/infra/worker"
	"notion-telegram-relay/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// UpdateFeeder accepts Telegram updates delivered over the webhook endpoint.
type UpdateFeeder interface {
	FeedUpdate(tgbotapi.Update)
}

// Server exposes the Notion webhook receiver, the optional Telegram webhook
// endpoint and a small admin API over one chi router.
type Server struct {
	cfg      *config.Config
	relayUC  *usecase.RelayUseCase
	statsUC  usecase.StatsUseCase
	intakeUC *usecase.IntakeUseCase
	pool     *worker.Pool
	feeder   UpdateFeeder
	auth     *AuthManager
	log      *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(
	cfg *config.Config,
	relayUC *usecase.RelayUseCase,
	statsUC usecase.StatsUseCase,
	intakeUC *usecase.IntakeUseCase,
	pool *worker.Pool,
	feeder UpdateFeeder,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		cfg:      cfg,
		relayUC:  relayUC,
		statsUC:  statsUC,
		intakeUC: intakeUC,
		pool:     pool,
		feeder:   feeder,
		log:      &compLog,
	}
	if cfg.Admin.JWTSecret != "" {
		s.auth = NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	}
	if cfg.Notion.WebhookSecret == "" {
		compLog.Warn().Msg("notion.webhook_secret is empty, signature verification disabled")
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get(s.cfg.Server.WebhookPath, s.handleChallenge)
	r.Post(s.cfg.Server.WebhookPath, s.handleNotionWebhook)

	if strings.EqualFold(s.cfg.Bot.Mode, "webhook") && s.feeder != nil {
		r.Post("/telegram/webhook", s.handleTelegramWebhook)
	}

	if s.auth != nil {
		r.Post("/admin/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/admin/logout", s.handleLogout)
			r.Get("/api/v1/stats", s.handleStats)
			r.Get("/api/v1/tasks", s.handleTasks)
		})
	}
	return r
}

// Start runs the HTTP server until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) Shutdown() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// handleChallenge echoes a subscription challenge so the source can confirm
// the endpoint. Without a challenge it still reports the endpoint is alive.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("challenge")
	if token == "" {
		token = r.URL.Query().Get("verification")
	}
	if token != "" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": token})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "no challenge provided"})
}

func (s *Server) handleNotionWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if secret := s.cfg.Notion.WebhookSecret; secret != "" {
		if !verifySignature(secret, r.Header.Get("X-Notion-Signature"), body) {
			metrics.IncWebhookDropped("bad_signature")
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature mismatch")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var env model.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.IncWebhookDropped("bad_json")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	traceID := middleware.GetReqID(r.Context())
	if traceID == "" {
		traceID = uuid.NewString()
	}
	task := func(ctx context.Context) error {
		ctx = logging.WithTraceID(ctx, traceID)
		outcome, err := s.relayUC.ProcessEnvelope(ctx, &env)
		if err != nil {
			return err
		}
		logging.With(ctx, s.log).Debug().Str("outcome", outcome.String()).Msg("webhook processed")
		return nil
	}
	if err := s.pool.Submit(task); err != nil {
		s.log.Error().Err(err).Msg("webhook dropped, worker queue full")
		metrics.IncWebhookDropped("queue_full")
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}

	// Ack immediately; processing happens on the pool.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&update); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	s.feeder.FeedUpdate(update)
	w.WriteHeader(http.StatusOK)
}

// requireAdmin guards the admin API. It accepts a minted session JWT or the
// raw admin key as a bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := s.cfg.Admin.APIKey; key != "" {
			hdr := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(hdr), "bearer ") && strings.TrimSpace(hdr[7:]) == key {
				next.ServeHTTP(w, r)
				return
			}
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func verifySignature(secret, header string, body []byte) bool {
	header = strings.TrimPrefix(header, "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
