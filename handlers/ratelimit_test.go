package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"geobadge-backend/logger"
)

type fakeAllower struct {
	lastKey string
	allow   bool
	err     error
}

func (f *fakeAllower) Allow(_ context.Context, key string) (bool, error) {
	f.lastKey = key
	return f.allow, f.err
}

func limitedRouter(allower Allower) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(allower, logger.NewNop()))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return router
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("keys on the client ip", func(t *testing.T) {
		allower := &fakeAllower{allow: true}
		router := limitedRouter(allower)

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.7:51234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "203.0.113.7", allower.lastKey)
	})

	t.Run("over the limit gets 429", func(t *testing.T) {
		router := limitedRouter(&fakeAllower{allow: false})

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		router := limitedRouter(&fakeAllower{err: errors.New("redis down")})

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
