package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	s3client "github.com/aristath/allocator/internal/clients/s3"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/engine"
	"github.com/aristath/allocator/internal/modules/snapshots"
)

// Handlers serves the analysis and snapshot endpoints.
type Handlers struct {
	log      zerolog.Logger
	engine   *engine.Service
	store    *snapshots.Store
	uploader *s3client.Uploader
}

// NewHandlers creates the API handlers. uploader may be nil.
func NewHandlers(log zerolog.Logger, eng *engine.Service, store *snapshots.Store, uploader *s3client.Uploader) *Handlers {
	return &Handlers{
		log:      log.With().Str("component", "api").Logger(),
		engine:   eng,
		store:    store,
		uploader: uploader,
	}
}

// HandleAnalysis runs a full portfolio analysis and persists the snapshot.
// POST /api/analysis
func (h *Handlers) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req engine.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snapshot, err := h.engine.Analyze(r.Context(), req)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}

	if err := h.store.Save(snapshot); err != nil {
		h.log.Error().Err(err).Str("snapshot_id", snapshot.ID).Msg("Failed to persist snapshot")
		h.writeError(w, http.StatusInternalServerError, "storage_error", "failed to persist snapshot")
		return
	}

	// Offload is best-effort; a failed upload never fails the analysis.
	if err := h.uploader.Upload(r.Context(), snapshot); err != nil {
		h.log.Warn().Err(err).Str("snapshot_id", snapshot.ID).Msg("S3 offload failed")
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleListSnapshots lists stored snapshot ids, newest first.
// GET /api/snapshots?limit=N
func (h *Handlers) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.store.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		h.writeError(w, http.StatusInternalServerError, "storage_error", "failed to list snapshots")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": items})
}

// HandleGetSnapshot returns a stored snapshot by id.
// GET /api/snapshots/{id}
func (h *Handlers) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := h.store.Get(id)
	if errors.Is(err, snapshots.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "snapshot not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("snapshot_id", id).Msg("Failed to load snapshot")
		h.writeError(w, http.StatusInternalServerError, "storage_error", "failed to load snapshot")
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// writeAnalysisError maps pipeline errors to HTTP status codes.
func (h *Handlers) writeAnalysisError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientDataError
	var invalidCfg *domain.InvalidConfigurationError
	var notFound *domain.AssetNotFoundError
	var optFailure *domain.OptimizationFailure

	switch {
	case errors.As(err, &insufficient):
		h.writeError(w, http.StatusUnprocessableEntity, "insufficient_data", err.Error())
	case errors.As(err, &invalidCfg):
		h.writeError(w, http.StatusBadRequest, "invalid_configuration", err.Error())
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusBadRequest, "asset_not_found", err.Error())
	case errors.As(err, &optFailure):
		h.writeError(w, http.StatusUnprocessableEntity, "optimization_failure", err.Error())
	default:
		h.log.Error().Err(err).Msg("Analysis failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "analysis failed")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
