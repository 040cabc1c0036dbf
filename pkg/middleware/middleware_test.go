package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newRouter() *gin.Engine {
	router := gin.New()
	Setup(router, DefaultConfig("task-engine", discardLogger()))
	return router
}

func TestRequestAndCorrelationIDs(t *testing.T) {
	router := newRouter()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"requestId": GetRequestID(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "corr-1", rec.Header().Get(HeaderCorrelationID))
}

func TestPropagationHeaders(t *testing.T) {
	router := newRouter()
	var forwarded map[string]string
	router.GET("/ping", func(c *gin.Context) {
		forwarded = PropagationHeaders(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set(HeaderCorrelationID, "corr-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, map[string]string{HeaderRequestID: "req-1", HeaderCorrelationID: "corr-1"}, forwarded)
	assert.Empty(t, PropagationHeaders(context.Background()))
}

func TestErrorResponder_CarriesState(t *testing.T) {
	router := newRouter()
	router.POST("/tasks/:id/complete", func(c *gin.Context) {
		NewErrorResponder(c, discardLogger()).RespondWithAppError(
			errors.ErrInvalidState("task is terminal").WithState(map[string]string{"status": "COMPLETED"}))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks/t-1/complete", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidState, body.Code)
	assert.Equal(t, map[string]any{"status": "COMPLETED"}, body.State)
	assert.Equal(t, "/tasks/t-1/complete", body.Path)
}

func TestBindAndValidate_CustomTags(t *testing.T) {
	type request struct {
		Bin      string `json:"bin" binding:"required,bin_code"`
		Zone     string `json:"zone" binding:"omitempty,zone_code"`
		Quantity int    `json:"quantity" binding:"gt=0"`
	}

	router := newRouter()
	router.POST("/bind", func(c *gin.Context) {
		var req request
		if appErr := BindAndValidate(c, &req); appErr != nil {
			AbortWithAppError(c, appErr)
			return
		}
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"valid", `{"bin":"A-01-R05-L02","zone":"A","quantity":2}`, http.StatusNoContent, ""},
		{"bad bin", `{"bin":"nowhere","quantity":2}`, http.StatusBadRequest, "bin"},
		{"zero quantity", `{"bin":"A-01-R05-L02","quantity":0}`, http.StatusBadRequest, "quantity"},
		{"lowercase zone", `{"bin":"A-01-R05-L02","zone":"a","quantity":1}`, http.StatusBadRequest, "zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.field != "" {
				var body APIErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Contains(t, body.Details, tt.field)
			}
		})
	}
}

func TestContentType_RejectsNonJSON(t *testing.T) {
	router := newRouter()
	router.POST("/waves", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/waves", bytes.NewBufferString("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestTenantContext(t *testing.T) {
	var seen *tenant.Context
	handler := func(c *gin.Context) {
		seen = tenant.FromContextOptional(c.Request.Context())
		c.Status(http.StatusNoContent)
	}

	router := gin.New()
	router.Use(TenantContext(TenantConfig{}))
	router.GET("/x", handler)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderWMSTenantID, "acme")
	req.Header.Set(HeaderWMSWarehouseID, "WH-1")
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "acme", seen.TenantID)
	assert.Equal(t, "WH-1", seen.WarehouseID)

	strict := gin.New()
	strict.Use(TenantContext(TenantConfig{Required: true}))
	strict.GET("/x", handler)
	rec := httptest.NewRecorder()
	strict.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNoRoute(t *testing.T) {
	router := newRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROUTE_NOT_FOUND")
}
