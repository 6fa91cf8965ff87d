package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/pkg/logging"
)

// BlocksHandler exposes availability block CRUD for professionals.
type BlocksHandler struct {
	store   *availability.Store
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewBlocksHandler creates a blocks handler.
func NewBlocksHandler(store *availability.Store, m *metrics.BookingMetrics, logger *logging.Logger) *BlocksHandler {
	if store == nil {
		panic("handlers: availability store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BlocksHandler{store: store, metrics: m, logger: logger}
}

// blockRequest is the write payload for create and update.
type blockRequest struct {
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
	StartTime string  `json:"start_time,omitempty"`
	EndTime   string  `json:"end_time,omitempty"`
	DayOfWeek int     `json:"day_of_week,omitempty"`
	Recurring bool    `json:"recurring,omitempty"`
}

// blockResponse is the read shape of a block.
type blockResponse struct {
	ID             string  `json:"id"`
	ProfessionalID string  `json:"professional_id"`
	Title          string  `json:"title,omitempty"`
	Type           string  `json:"type"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	StartTime      string  `json:"start_time,omitempty"`
	EndTime        string  `json:"end_time,omitempty"`
	DayOfWeek      int     `json:"day_of_week,omitempty"`
	Recurring      bool    `json:"recurring"`
	ExternalEvent  bool    `json:"external_event"`
	ExternalSource string  `json:"external_source,omitempty"`
}

// List returns every block for the professional.
func (h *BlocksHandler) List(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := pathUUID(w, r, "professionalID")
	if !ok {
		return
	}
	force := r.URL.Query().Get("refresh") == "true"
	blocks, err := h.store.Load(r.Context(), professionalID, force)
	if err != nil {
		h.logger.Error("block list failed", "professional_id", professionalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not load blocks")
		return
	}
	out := make([]blockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toBlockResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

// Create validates and stores a new block.
func (h *BlocksHandler) Create(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := pathUUID(w, r, "professionalID")
	if !ok {
		return
	}
	block, ok := h.decodeBlock(w, r, professionalID)
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), block)
	if err != nil {
		h.writeBlockError(w, block, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockResponse(*created))
}

// Update rewrites an existing block.
func (h *BlocksHandler) Update(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := pathUUID(w, r, "professionalID")
	if !ok {
		return
	}
	blockID, ok := pathUUID(w, r, "blockID")
	if !ok {
		return
	}
	block, ok := h.decodeBlock(w, r, professionalID)
	if !ok {
		return
	}
	block.ID = blockID
	if err := h.store.Update(r.Context(), block); err != nil {
		if errors.Is(err, availability.ErrBlockNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "block not found")
			return
		}
		h.writeBlockError(w, block, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockResponse(block))
}

// Delete removes a block.
func (h *BlocksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := pathUUID(w, r, "professionalID")
	if !ok {
		return
	}
	blockID, ok := pathUUID(w, r, "blockID")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), professionalID, blockID); err != nil {
		if errors.Is(err, availability.ErrBlockNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "block not found")
			return
		}
		h.logger.Error("block delete failed", "block_id", blockID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not delete block")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BlocksHandler) decodeBlock(w http.ResponseWriter, r *http.Request, professionalID uuid.UUID) (availability.Block, bool) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return availability.Block{}, false
	}
	block := availability.Block{
		ProfessionalID: professionalID,
		Title:          req.Title,
		Type:           availability.BlockType(req.Type),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		DayOfWeek:      req.DayOfWeek,
		Recurring:      req.Recurring,
	}
	if req.StartDate != "" {
		d, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error: "invalid block", Code: "validation_error",
				Fields: map[string]string{"start_date": "must be YYYY-MM-DD"},
			})
			return availability.Block{}, false
		}
		block.StartDate = d
	}
	if req.EndDate != nil && *req.EndDate != "" {
		d, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error: "invalid block", Code: "validation_error",
				Fields: map[string]string{"end_date": "must be YYYY-MM-DD"},
			})
			return availability.Block{}, false
		}
		block.EndDate = &d
	}
	return block, true
}

func (h *BlocksHandler) writeBlockError(w http.ResponseWriter, block availability.Block, err error) {
	var validationErr *availability.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "invalid block", Code: "validation_error", Fields: validationErr.Fields,
		})
		return
	}
	var conflictErr *availability.ConflictError
	if errors.As(err, &conflictErr) {
		h.metrics.ObserveConflict(string(block.Type))
		conflicts := make([]blockResponse, 0, len(conflictErr.Blocks))
		for _, b := range conflictErr.Blocks {
			conflicts = append(conflicts, toBlockResponse(b))
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "block overlaps existing commitments",
			"code":      "conflict",
			"conflicts": conflicts,
		})
		return
	}
	h.logger.Error("block write failed", "professional_id", block.ProfessionalID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "could not save block")
}

func toBlockResponse(b availability.Block) blockResponse {
	resp := blockResponse{
		ID:             b.ID.String(),
		ProfessionalID: b.ProfessionalID.String(),
		Title:          b.Title,
		Type:           string(b.Type),
		StartDate:      b.StartDate.Format("2006-01-02"),
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		DayOfWeek:      b.DayOfWeek,
		Recurring:      b.Recurring || b.Type.Weekly(),
		ExternalEvent:  b.ExternalEvent,
		ExternalSource: b.ExternalSource,
	}
	if b.EndDate != nil {
		s := b.EndDate.Format("2006-01-02")
		resp.EndDate = &s
	}
	return resp
}

// pathUUID parses a chi URL parameter as a UUID, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
