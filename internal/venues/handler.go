package venues

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/internal/events"
	"github.com/gatherpoint/backend/pkg/response"
)

// Handler handles venue HTTP endpoints.
type Handler struct {
	repo      *Repository
	eventRepo *events.Repository
	logger    *zap.Logger
}

// NewHandler creates a venues handler.
func NewHandler(repo *Repository, eventRepo *events.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eventRepo: eventRepo, logger: logger}
}

// List handles GET /venues.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list venues failed", zap.Error(err))
		response.Internal(c, "failed to list venues")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /venues/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return
	}
	v, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "venue not found")
			return
		}
		h.logger.Error("get venue failed", zap.Error(err), zap.Int64("venue_id", id))
		response.Internal(c, "failed to get venue")
		return
	}
	response.OK(c, v)
}

// ListEvents handles GET /venues/:id/events.
func (h *Handler) ListEvents(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return
	}
	if _, err := h.repo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "venue not found")
			return
		}
		h.logger.Error("get venue failed", zap.Error(err), zap.Int64("venue_id", id))
		response.Internal(c, "failed to get venue")
		return
	}
	list, err := h.eventRepo.ListByVenue(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list venue events failed", zap.Error(err), zap.Int64("venue_id", id))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}
