package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"speedquant/internal/config"
	"speedquant/internal/errors"
	"speedquant/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestErrorHandlerMapsAppErrorStatus(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler(logging.NewNop()))
	router.GET("/missing", func(c *gin.Context) {
		c.Error(errors.NewAppError(errors.ErrCodeNotFound, "no such run", nil))
	})

	w := serve(router, "/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestErrorHandlerWrapsPlainErrors(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler(logging.NewNop()))
	router.GET("/boom", func(c *gin.Context) {
		c.Error(assert.AnError)
	})

	w := serve(router, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRecoveryConvertsPanics(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(logging.NewNop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("unreachable state")
	})

	w := serve(router, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRateLimitBlocksBeyondBurst(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             2,
	}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "/").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/").Code)

	w := serve(router, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT")
}

func TestRateLimitDisabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(config.RateLimitConfig{Enabled: false}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, serve(router, "/").Code)
	}
}
