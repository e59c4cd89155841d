package activities

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/pkg/response"
)

// Handler handles activity HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an activities handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /activities.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list activities failed", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /activities/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "activity not found")
			return
		}
		h.logger.Error("get activity failed", zap.Error(err), zap.Int64("activity_id", id))
		response.Internal(c, "failed to get activity")
		return
	}
	response.OK(c, a)
}
