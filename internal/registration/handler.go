package registration

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/internal/middleware"
	"github.com/gatherpoint/backend/pkg/response"
)

// RegisterRequest is the body for POST /events/:id/register.
type RegisterRequest struct {
	Notes *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register handles POST /events/:id/register.
func (h *Handler) Register(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	reg, err := h.service.Register(c.Request.Context(), userID, eventID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrNotUpcoming), errors.Is(err, ErrEventFull), errors.Is(err, ErrAlreadyRegistered):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrNotesTooLong):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("register failed", zap.Error(err), zap.Int64("event_id", eventID))
			response.Internal(c, "failed to register")
		}
		return
	}
	response.Created(c, reg)
}

// Cancel handles DELETE /registrations/:id. A registration that does not
// exist and one owned by another user get the same 404.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	cancelled, err := h.service.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("cancel failed", zap.Error(err), zap.Int64("registration_id", id))
		response.Internal(c, "failed to cancel registration")
		return
	}
	if !cancelled {
		response.NotFound(c, "registration not found")
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

// CanRegister handles GET /events/:id/can-register.
func (h *Handler) CanRegister(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	can, err := h.service.CanRegister(c.Request.Context(), eventID, userID)
	if err != nil {
		h.logger.Error("can-register failed", zap.Error(err), zap.Int64("event_id", eventID))
		response.Internal(c, "failed to check eligibility")
		return
	}
	response.OK(c, gin.H{"can_register": can})
}

// IsRegistered handles GET /events/:id/is-registered.
func (h *Handler) IsRegistered(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	registered, err := h.service.IsRegistered(c.Request.Context(), userID, eventID)
	if err != nil {
		h.logger.Error("is-registered failed", zap.Error(err), zap.Int64("event_id", eventID))
		response.Internal(c, "failed to check registration")
		return
	}
	response.OK(c, gin.H{"registered": registered})
}

// ListMine handles GET /registrations/mine.
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	list, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/registrations (admin).
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	list, err := h.service.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list event registrations failed", zap.Error(err), zap.Int64("event_id", eventID))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

func eventIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return 0, false
	}
	return id, true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, "missing user context")
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "invalid user context")
		return uuid.Nil, false
	}
	return id, true
}
