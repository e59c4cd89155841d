package events

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/internal/models"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10:00", "10:00:00", true},
		{"09:30:15", "09:30:15", true},
		{"23:59", "23:59:00", true},
		{"24:00", "", false},
		{"10", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
}

func TestEventRequestToEvent(t *testing.T) {
	end := "17:30"
	req := EventRequest{
		Name:        "Harvest Festival",
		Description: "Food, music and stalls",
		EventDate:   "2026-10-03",
		StartTime:   "10:00",
		EndTime:     &end,
		Capacity:    250,
		VenueID:     1,
		ActivityIDs: []int64{1, 3},
	}

	evt, activityIDs, err := req.toEvent()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 3, 0, 0, 0, 0, time.UTC), evt.EventDate)
	assert.Equal(t, "10:00:00", evt.StartTime)
	require.NotNil(t, evt.EndTime)
	assert.Equal(t, "17:30:00", *evt.EndTime)
	assert.Equal(t, models.EventStatusUpcoming, evt.Status)
	assert.Equal(t, []int64{1, 3}, activityIDs)
}

func TestImageEndpointsWithoutStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, zap.NewNop())
	r := gin.New()
	r.GET("/events/:id/image-url", h.GetImageURL)
	r.POST("/events/:id/image", h.UploadImage)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/events/1/image-url", nil),
		httptest.NewRequest(http.MethodPost, "/events/1/image", nil),
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, req.URL.Path)
	}
}

func TestEventRequestToEventRejectsBadInput(t *testing.T) {
	base := EventRequest{
		Name:        "Harvest Festival",
		Description: "Food, music and stalls",
		EventDate:   "2026-10-03",
		StartTime:   "10:00",
		Capacity:    250,
		VenueID:     1,
	}

	bad := base
	bad.EventDate = "03/10/2026"
	_, _, err := bad.toEvent()
	assert.Error(t, err)

	bad = base
	bad.StartTime = "10am"
	_, _, err = bad.toEvent()
	assert.Error(t, err)

	bad = base
	bad.Status = "postponed"
	_, _, err = bad.toEvent()
	assert.Error(t, err)
}
