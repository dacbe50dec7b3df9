package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// handleLogin exchanges the static admin API key for a short-lived session
// token delivered both as a cookie and in the response body.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Admin.APIKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.cfg.Admin.APIKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleLogout drops the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleStats serves delivery totals plus the most recent entries.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totals, err := s.statsUC.Totals(ctx)
	if err != nil {
		http.Error(w, "Failed to get totals", http.StatusInternalServerError)
		return
	}
	recent, err := s.statsUC.Recent(ctx, 20)
	if err != nil {
		http.Error(w, "Failed to get recent deliveries", http.StatusInternalServerError)
		return
	}

	response := struct {
		Totals map[string]int64 `json:"totals"`
		Recent []deliveryJSON   `json:"recent"`
	}{Totals: totals}
	for _, d := range recent {
		response.Recent = append(response.Recent, deliveryJSON{
			ID:        d.ID,
			PageID:    d.PageID,
			EventType: d.EventType,
			Status:    d.Status,
			Detail:    d.Detail,
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

type deliveryJSON struct {
	ID        string `json:"id"`
	PageID    string `json:"page_id"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"created_at"`
}

// handleTasks lists the most recently created pages in the tracked database.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	pages, err := s.intakeUC.RecentTasks(ctx, limit)
	if err != nil {
		http.Error(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}

	type taskJSON struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	response := struct {
		Data []taskJSON `json:"data"`
	}{}
	for _, p := range pages {
		response.Data = append(response.Data, taskJSON{ID: p.ID, Title: p.Title(), URL: p.URL})
	}
	writeJSON(w, http.StatusOK, response)
}
