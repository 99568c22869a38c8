// Package httpapi is the agent's read-only admin HTTP surface: health,
// quarantine inspection/reset, and a journal tail, exposed over both
// plain polling and a websocket push (spec.md §4.9, §8's operator
// workflows). It never drives the pipeline itself — every handler
// reads from or issues a single targeted command to the collaborators
// internal/session already owns.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/journal"
)

// QuarantineCoordinator is the subset of errors.Coordinator the admin
// surface needs; session.Session.Coordinator satisfies it directly.
type QuarantineCoordinator interface {
	QuarantinedClasses() []string
	IsQuarantined(className string) bool
	Reset(className, operatorID string) events.ClassResetPayload
}

// Server wires the admin surface's handlers onto a gorilla/mux router.
type Server struct {
	logger      *slog.Logger
	coordinator QuarantineCoordinator
	journal     *journal.Writer
	startedAt   time.Time
	hub         *tailHub
}

// New constructs a Server. logger, coordinator, and writer must be
// non-nil.
func New(logger *slog.Logger, coordinator QuarantineCoordinator, writer *journal.Writer) *Server {
	s := &Server{
		logger:      logger.With("component", "httpapi"),
		coordinator: coordinator,
		journal:     writer,
		startedAt:   time.Now(),
		hub:         newTailHub(logger),
	}
	return s
}

// Router builds the full admin-surface route tree.
//
// @title ByteHot Agent Admin API
// @version 1.0
// @description Read-only operator surface for the hot-swap agent: health, quarantine state, and journal tail.
// @BasePath /
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/quarantine", s.handleListQuarantine).Methods(http.MethodGet)
	r.HandleFunc("/quarantine/{class}/reset", s.handleResetQuarantine).Methods(http.MethodPost)
	r.HandleFunc("/journal/tail", s.handleJournalTailPoll).Methods(http.MethodGet)
	r.HandleFunc("/journal/tail/ws", s.handleJournalTailWS).Methods(http.MethodGet)
	r.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)
	return r
}

// Start runs the journal-tail fan-out worker until ctx is cancelled.
// Call once before serving traffic.
func (s *Server) Start(ctx context.Context) {
	go s.hub.run(ctx, s.journal.Tail(ctx))
}

type healthResponse struct {
	Status   string `json:"status"`
	UptimeMS int64  `json:"uptime_ms"`
}

// handleHealthz reports liveness.
//
// @Summary Health check
// @Success 200 {object} healthResponse
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		UptimeMS: time.Since(s.startedAt).Milliseconds(),
	})
}

type quarantineEntry struct {
	ClassName string `json:"class_name"`
}

// handleListQuarantine lists every currently quarantined class.
//
// @Summary List quarantined classes
// @Success 200 {array} quarantineEntry
// @Router /quarantine [get]
func (s *Server) handleListQuarantine(w http.ResponseWriter, r *http.Request) {
	names := s.coordinator.QuarantinedClasses()
	entries := make([]quarantineEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, quarantineEntry{ClassName: name})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleResetQuarantine clears quarantine for one class, recording the
// requesting operator (the X-Operator-ID header, empty if absent).
//
// @Summary Reset quarantine for a class
// @Success 200 {object} events.ClassResetPayload
// @Router /quarantine/{class}/reset [post]
func (s *Server) handleResetQuarantine(w http.ResponseWriter, r *http.Request) {
	className := mux.Vars(r)["class"]
	if !s.coordinator.IsQuarantined(className) {
		http.Error(w, "class is not quarantined", http.StatusNotFound)
		return
	}
	operatorID := r.Header.Get("X-Operator-ID")
	payload := s.coordinator.Reset(className, operatorID)
	s.logger.Info("quarantine reset via admin surface", "class", className, "operator", operatorID)
	writeJSON(w, http.StatusOK, payload)
}

// handleJournalTailPoll returns every journal record appended at or
// after the offset given in ?from=, defaulting to 0.
//
// @Summary Poll the journal tail
// @Param from query int false "starting offset"
// @Success 200 {array} events.DomainEvent
// @Router /journal/tail [get]
func (s *Server) handleJournalTailPoll(w http.ResponseWriter, r *http.Request) {
	from := parseOffset(r.URL.Query().Get("from"))
	recs, err := s.journal.ReadFrom(r.Context(), from)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseOffset(raw string) uint64 {
	if raw == "" {
		return 0
	}
	var n uint64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + uint64(c-'0')
	}
	return n
}
