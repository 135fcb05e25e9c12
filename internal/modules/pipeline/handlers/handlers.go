// Package handlers provides HTTP handlers for pipeline operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/pipeline"
	"github.com/rs/zerolog"
)

// Handler handles pipeline HTTP requests.
type Handler struct {
	service *pipeline.Service
	log     zerolog.Logger
}

// NewHandler creates a new pipeline handler.
func NewHandler(service *pipeline.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "pipeline").Logger(),
	}
}

// HandleGetCandidates handles GET /api/pipelines/{source}/candidates.
func (h *Handler) HandleGetCandidates(w http.ResponseWriter, r *http.Request, source string) {
	filterNames := splitList(r.URL.Query().Get("filters"))

	results, err := h.service.GetTopCandidates(r.Context(), domain.Source(source), filterNames)
	if err != nil {
		h.writeError(w, err, "Failed to get candidates")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"source":     source,
		"filters":    filterNames,
		"candidates": results,
		"count":      len(results),
	})
}

// HandleGetFilters handles GET /api/pipelines/{source}/filters.
func (h *Handler) HandleGetFilters(w http.ResponseWriter, r *http.Request, source string) {
	defs, err := h.service.FilterDefinitions(domain.Source(source))
	if err != nil {
		h.writeError(w, err, "Failed to get filters")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"source":  source,
		"filters": defs,
		"count":   len(defs),
	})
}

// HandleRunScoring handles POST /api/pipelines/{source}/score.
func (h *Handler) HandleRunScoring(w http.ResponseWriter, r *http.Request, source string) {
	summary, err := h.service.RunScoringCycle(r.Context(), domain.Source(source))
	if err != nil {
		h.writeError(w, err, "Scoring cycle failed")
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

// HandleRunLifecycle handles POST /api/pipelines/{source}/evaluate.
func (h *Handler) HandleRunLifecycle(w http.ResponseWriter, r *http.Request, source string) {
	summary, err := h.service.RunLifecycleEvaluation(r.Context(), domain.Source(source))
	if err != nil {
		h.writeError(w, err, "Lifecycle evaluation failed")
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

// HandleGetSignals handles GET /api/signals.
func (h *Handler) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.SignalFilter{Limit: 100}
	if v := query.Get("source"); v != "" {
		source := domain.Source(v)
		filter.Source = &source
	}
	if v := query.Get("status"); v != "" {
		status := domain.SignalStatus(v)
		filter.Status = &status
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	list, err := h.service.GetSignalHistory(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "Failed to get signals")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"signals": list,
		"count":   len(list),
	})
}

// HandleComputePerformance handles GET /api/performance/{period}/{source}
func (h *Handler) HandleComputePerformance(w http.ResponseWriter, r *http.Request, period, source string) {
	periodType, err := domain.ParsePeriodType(period)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.service.ComputeAggregate(r.Context(), periodType, domain.Source(source))
	if err != nil {
		h.writeError(w, err, "Failed to compute performance")
		return
	}
	h.writeData(w, http.StatusOK, rec)
}

// HandleGetPerformanceSummary handles GET /api/performance/summary.
func (h *Handler) HandleGetPerformanceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.PerformanceSummary(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to get performance summary")
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// writeError maps domain errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrUnknownSource):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrDataInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
