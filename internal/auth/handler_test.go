package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMeRequiresUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, zap.NewNop())

	r := gin.New()
	r.GET("/auth/me", h.Me)

	// No JWT middleware set a user: rejected before any repo access.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A context value of the wrong type is rejected the same way.
	r = gin.New()
	r.GET("/auth/me", func(c *gin.Context) { c.Set(ctxUserID, "not-a-uuid") }, h.Me)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
