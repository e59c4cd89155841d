package events

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/internal/models"
	"github.com/gatherpoint/backend/pkg/cache"
	"github.com/gatherpoint/backend/pkg/response"
	"github.com/gatherpoint/backend/pkg/storage"
)

// EventRequest is the body for creating or updating an event.
type EventRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description string  `json:"description" binding:"required,max=2000"`
	EventDate   string  `json:"event_date" binding:"required"` // YYYY-MM-DD
	StartTime   string  `json:"start_time" binding:"required"` // HH:MM or HH:MM:SS
	EndTime     *string `json:"end_time,omitempty"`
	Capacity    int     `json:"capacity" binding:"required,min=1"`
	Status      string  `json:"status,omitempty"`
	VenueID     int64   `json:"venue_id" binding:"required"`
	ActivityIDs []int64 `json:"activity_ids,omitempty"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo    *Repository
	cache   *cache.Cache
	storage *storage.S3
	logger  *zap.Logger
}

// NewHandler creates an events handler. cache and storage may be nil.
func NewHandler(repo *Repository, c *cache.Cache, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, cache: c, storage: s3, logger: logger}
}

// List handles GET /events. With ?upcoming=true only events still open by
// date and status are returned, soonest first.
func (h *Handler) List(c *gin.Context) {
	var list []Summary
	var err error
	if c.Query("upcoming") == "true" {
		list, err = h.repo.ListUpcoming(c.Request.Context())
	} else {
		list, err = h.repo.List(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id. The response carries the hydrated event
// plus its derived fill-state.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	evt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("get event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to get event")
		return
	}
	response.OK(c, gin.H{
		"event":            evt,
		"registered_count": evt.RegisteredCount(),
		"available_spots":  evt.AvailableSpots(),
		"is_full":          evt.IsFull(),
		"is_upcoming":      evt.IsUpcoming(),
	})
}

// Availability handles GET /events/:id/availability. Fill-state is served
// from the short-TTL cache when present; a miss recomputes from the store.
func (h *Handler) Availability(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.cache != nil {
		if a, err := h.cache.GetAvailability(ctx, id); err != nil {
			h.logger.Warn("availability cache read failed", zap.Error(err), zap.Int64("event_id", id))
		} else if a != nil {
			response.OK(c, a)
			return
		}
	}

	capacity, confirmed, err := h.repo.Availability(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("availability failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to get availability")
		return
	}

	spots := models.SpotsRemaining(capacity, confirmed)
	a := cache.Availability{
		EventID:         id,
		Capacity:        capacity,
		RegisteredCount: confirmed,
		AvailableSpots:  spots,
		IsFull:          spots <= 0,
	}
	if h.cache != nil {
		if err := h.cache.SetAvailability(ctx, a); err != nil {
			h.logger.Warn("availability cache write failed", zap.Error(err), zap.Int64("event_id", id))
		}
	}
	response.OK(c, a)
}

// Create handles POST /events (admin).
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	evt, activityIDs, err := req.toEvent()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Create(c.Request.Context(), evt, activityIDs); err != nil {
		h.writeError(c, err, "create event failed")
		return
	}
	response.Created(c, evt)
}

// Update handles PUT /events/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	evt, activityIDs, err := req.toEvent()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	evt.ID = id
	if err := h.repo.Update(c.Request.Context(), evt, activityIDs); err != nil {
		h.writeError(c, err, "update event failed")
		return
	}
	h.invalidate(c, id)
	response.OK(c, evt)
}

// Delete handles DELETE /events/:id (admin). Registrations and activity
// links go with the event.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	deleted, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("delete event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to delete event")
		return
	}
	if !deleted {
		response.NotFound(c, "event not found")
		return
	}
	h.invalidate(c, id)
	response.OK(c, gin.H{"deleted": true})
}

// UploadImage handles POST /events/:id/image (admin): stores the image in
// S3, records its URL on the event and removes the replaced object.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.storage == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	evt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("get event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to get event")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	if fileHeader.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}
	defer file.Close()

	url, err := h.storage.UploadEventImage(c.Request.Context(), id, fileHeader.Filename, contentType, file)
	if err != nil {
		h.logger.Error("image upload failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to upload image")
		return
	}
	if err := h.repo.SetImageURL(c.Request.Context(), id, url); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("set image url failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to store image url")
		return
	}

	// Best-effort cleanup of the replaced object; the new URL is already
	// stored, so a failed delete only leaks an orphan.
	if evt.ImageURL != nil && *evt.ImageURL != url {
		if oldKey, ok := h.storage.ObjectKeyFromURL(*evt.ImageURL); ok {
			if err := h.storage.DeleteObject(c.Request.Context(), oldKey); err != nil {
				h.logger.Warn("delete replaced image failed",
					zap.Error(err), zap.Int64("event_id", id), zap.String("key", oldKey))
			}
		}
	}
	response.OK(c, gin.H{"image_url": url})
}

// GetImageURL handles GET /events/:id/image-url: returns a short-lived
// presigned download URL for the event's stored image.
func (h *Handler) GetImageURL(c *gin.Context) {
	if h.storage == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	evt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("get event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to get event")
		return
	}
	if evt.ImageURL == nil {
		response.NotFound(c, "event has no image")
		return
	}

	key, ok := h.storage.ObjectKeyFromURL(*evt.ImageURL)
	if !ok {
		// Stored URL predates the current bucket config; hand it back as-is.
		response.OK(c, gin.H{"url": *evt.ImageURL})
		return
	}
	expire := h.storage.PresignExpire()
	signed, err := h.storage.GeneratePresignedDownloadURL(c.Request.Context(), key, expire)
	if err != nil {
		h.logger.Error("presign image url failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to sign image url")
		return
	}
	response.OK(c, gin.H{"url": signed, "expires_in_seconds": int(expire.Seconds())})
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrVenueNotFound), errors.Is(err, ErrActivityNotFound):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, "failed to save event")
	}
}

func (h *Handler) invalidate(c *gin.Context, eventID int64) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(c.Request.Context(), eventID); err != nil {
		h.logger.Warn("availability cache invalidation failed", zap.Error(err), zap.Int64("event_id", eventID))
	}
}

func (r *EventRequest) toEvent() (*models.Event, []int64, error) {
	date, err := time.Parse("2006-01-02", r.EventDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid event_date, want YYYY-MM-DD")
	}
	start, err := parseClock(r.StartTime)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start_time, want HH:MM")
	}
	var end *string
	if r.EndTime != nil {
		e, err := parseClock(*r.EndTime)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end_time, want HH:MM")
		}
		end = &e
	}

	status := models.EventStatusUpcoming
	if r.Status != "" {
		status = models.EventStatus(r.Status)
		if !models.ValidEventStatus(status) {
			return nil, nil, fmt.Errorf("invalid status")
		}
	}

	return &models.Event{
		Name:        r.Name,
		Description: r.Description,
		EventDate:   models.TruncateToDay(date),
		StartTime:   start,
		EndTime:     end,
		Capacity:    r.Capacity,
		Status:      status,
		VenueID:     r.VenueID,
	}, r.ActivityIDs, nil
}

func parseClock(s string) (string, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("bad clock value %q", s)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return 0, false
	}
	return id, true
}
