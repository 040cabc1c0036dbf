package idempotency

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/middleware"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// HeaderIdempotencyKey is the HTTP header name for the idempotency key
const HeaderIdempotencyKey = "Idempotency-Key"

// Config holds configuration for the idempotency middleware
type Config struct {
	ServiceName     string
	Store           KeyStore
	RequireKey      bool
	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int
	Metrics         *Metrics
	Logger          *slog.Logger
}

// DefaultConfig returns the defaults used by the service
func DefaultConfig(serviceName string, store KeyStore) *Config {
	return &Config{
		ServiceName:     serviceName,
		Store:           store,
		MaxKeyLength:    255,
		LockTimeout:     time.Minute,
		RetentionPeriod: 24 * time.Hour,
		MaxResponseSize: 1 << 20,
		Logger:          slog.Default(),
	}
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response for a repeated Idempotency-Key on
// mutating requests. Keys are scoped by tenant, worker, method and route.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				middleware.AbortWithAppError(c, apperrors.ErrBadRequest(ErrKeyRequired.Error()))
				return
			}
			c.Next()
			return
		}
		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			middleware.AbortWithAppError(c, apperrors.ErrBadRequest(err.Error()))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		process(c, config, scopedKey(c, key), ComputeFingerprint(body))
	}
}

func scopedKey(c *gin.Context, key string) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return strings.Join([]string{
		tenant.GetTenantID(c.Request.Context()),
		c.GetString(middleware.ContextKeyWorkerID),
		c.Request.Method,
		route,
		key,
	}, "|")
}

func process(c *gin.Context, config *Config, key, fingerprint string) {
	ctx := c.Request.Context()
	route := c.FullPath()
	logger := config.Logger.With("service", config.ServiceName, "path", c.Request.URL.Path)

	rec := &Record{
		Fingerprint: fingerprint,
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		LockedAt:    time.Now().UTC(),
	}

	existing, reserved, err := config.Store.Reserve(ctx, key, rec, config.LockTimeout)
	if err != nil {
		if errors.Is(err, ErrConcurrentRequest) {
			config.Metrics.concurrent(route, c.Request.Method)
			middleware.AbortWithAppError(c, apperrors.ErrConflict(err.Error()))
			return
		}
		logger.Error("Failed to reserve idempotency key", "error", err)
		config.Metrics.storageError("reserve")
		middleware.AbortWithAppError(c, apperrors.ErrServiceUnavailable("idempotency store"))
		return
	}

	if !reserved {
		switch {
		case existing.Fingerprint != fingerprint:
			logger.Warn("Idempotency parameter mismatch")
			config.Metrics.mismatch(route, c.Request.Method)
			middleware.AbortWithAppError(c, apperrors.NewAppError("IDEMPOTENCY_PARAMETER_MISMATCH", ErrParameterMismatch.Error(), http.StatusUnprocessableEntity))
		case !existing.IsCompleted():
			config.Metrics.concurrent(route, c.Request.Method)
			middleware.AbortWithAppError(c, apperrors.ErrConflict(ErrConcurrentRequest.Error()))
		default:
			logger.Info("Idempotency cache hit", "statusCode", existing.Status)
			config.Metrics.hit(route, c.Request.Method)
			for k, v := range existing.Headers {
				c.Header(k, v)
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(existing.Status, "application/json", existing.Body)
			c.Abort()
		}
		return
	}

	config.Metrics.miss(route, c.Request.Method)

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer
	c.Next()

	status := writer.Status()
	if status >= http.StatusInternalServerError || writer.body.Len() > config.MaxResponseSize {
		// server faults are not replayed; the client may retry with the same key
		if err := config.Store.Release(ctx, key); err != nil {
			logger.Error("Failed to release idempotency key", "error", err)
			config.Metrics.storageError("release")
		}
		return
	}

	now := time.Now().UTC()
	rec.Status = status
	rec.Body = writer.body.Bytes()
	rec.CompletedAt = &now
	if ct := writer.Header().Get("Content-Type"); ct != "" {
		rec.Headers = map[string]string{"Content-Type": ct}
	}
	if err := config.Store.Complete(ctx, key, rec, config.RetentionPeriod); err != nil {
		logger.Error("Failed to store idempotency response", "error", err)
		config.Metrics.storageError("complete")
	}
}

func isMutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
