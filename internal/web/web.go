package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appLog "remindd/internal/log"
	"remindd/internal/model"
	"remindd/internal/remind"
	"remindd/internal/store"
)

// Server exposes the inbound request surface for foreground UIs: a
// refresh-now message, a diagnostic test reminder trigger, the
// notification action callbacks, and the last-operation snapshots.
type Server struct {
	engine *remind.Engine
	store  *store.Store
	alarms remind.Alarms
	router chi.Router
}

func NewServer(engine *remind.Engine, st *store.Store, alarms remind.Alarms) *Server {
	s := &Server{
		engine: engine,
		store:  st,
		alarms: alarms,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/refresh", s.handleRefresh)
	r.Post("/api/test-reminder", s.handleTestReminder)
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/notifications/{id}/actions", s.handleAction)
	r.Post("/api/notifications/{id}/clicked", s.handleClicked)

	s.router = r
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type refreshRequest struct {
	// URL optionally overrides the configured feed URL for this
	// refresh only.
	URL string `json:"url,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.engine.Refresh(r.Context(), req.URL, true)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type testReminderResponse struct {
	Timer string `json:"timer"`
}

func (s *Server) handleTestReminder(w http.ResponseWriter, r *http.Request) {
	name, err := s.engine.TriggerTestReminder(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, testReminderResponse{Timer: name})
}

type statusResponse struct {
	Events                 int                       `json:"events"`
	Reminders              int                       `json:"reminders"`
	HistoryEntries         int                       `json:"history_entries"`
	Timers                 []string                  `json:"timers"`
	LastNotificationResult *model.NotificationResult `json:"last_notification_result,omitempty"`
	LastRefreshSummary     *model.RefreshSummary     `json:"last_refresh_summary,omitempty"`
	LastRefreshError       *model.RefreshError       `json:"last_refresh_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	timers := s.alarms.List()
	sort.Strings(timers)

	var resp statusResponse
	s.store.View(func(st store.State) {
		resp = statusResponse{
			Events:                 len(st.Events),
			Reminders:              len(st.Reminders),
			HistoryEntries:         len(st.History),
			Timers:                 timers,
			LastNotificationResult: st.LastNotificationResult,
			LastRefreshSummary:     st.LastRefreshSummary,
			LastRefreshError:       st.LastRefreshError,
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

type actionRequest struct {
	Action int `json:"action"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req actionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.HandleAction(r.Context(), id, req.Action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClicked(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.HandleClicked(r.Context(), id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSONBody tolerates an empty body; requests with no overrides
// are valid.
func decodeJSONBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New("malformed JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
