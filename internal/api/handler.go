// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Tables is the managed-table side of the API.
type Tables interface {
	ListTables(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, name string) (*model.TableStats, error)
	DropTable(ctx context.Context, name string) error
}

// History is the query-history side of the API.
type History interface {
	History(ctx context.Context, limit *int, successOnly bool) ([]model.QueryMetadata, error)
	Get(ctx context.Context, id uuid.UUID) (*model.QueryMetadata, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	tables  Tables
	history History
	logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(tables Tables, history History, logger *slog.Logger) http.Handler {
	h := &Handler{
		tables:  tables,
		history: history,
		logger:  logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tables", h.listTables)
		r.Get("/tables/{name}/stats", h.getTableStats)
		r.Delete("/tables/{name}", h.dropTable)
		r.Get("/history", h.listHistory)
		r.Get("/history/{id}", h.getHistory)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/tables
func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.ListTables(r.Context())
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// GET /v1/tables/{name}/stats
func (h *Handler) getTableStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tables.Stats(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// DELETE /v1/tables/{name}
func (h *Handler) dropTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.tables.DropTable(r.Context(), name); err != nil {
		h.respondWithAppError(w, err)
		return
	}
	h.logger.Info("Table dropped via API", "table", name)
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/history?limit=N&success_only=true
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 1000.")
			return
		}
		limit = n
	}

	successOnly := false
	if s := r.URL.Query().Get("success_only"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'success_only' parameter. Must be a boolean.")
			return
		}
		successOnly = b
	}

	entries, err := h.history.History(r.Context(), &limit, successOnly)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// GET /v1/history/{id}
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid query id")
		return
	}
	entry, err := h.history.Get(r.Context(), id)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// respondWithAppError maps error kinds to statuses. Internal failures are logged and
// never echoed to the client.
func (h *Handler) respondWithAppError(w http.ResponseWriter, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		respondWithError(w, http.StatusNotFound, err.Error())
	case apperrors.KindValidation:
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
