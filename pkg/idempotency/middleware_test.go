package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
)

type memoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	processed map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*Record{}, processed: map[string]bool{}}
}

func (s *memoryStore) Reserve(_ context.Context, key string, rec *Record, _ time.Duration) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[key]; ok {
		return existing, false, nil
	}
	s.records[key] = rec
	return rec, true, nil
}

func (s *memoryStore) Complete(_ context.Context, key string, rec *Record, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *memoryStore) MarkProcessed(_ context.Context, id string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[id] {
		return false, nil
	}
	s.processed[id] = true
	return true, nil
}

func (s *memoryStore) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processed, id)
	return nil
}

func newTestRouter(store KeyStore, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	config := DefaultConfig("task-engine", store)
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	config.Metrics = NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(config))
	router.POST("/api/v1/waves/:id/release", handler)
	return router
}

func post(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves/w-1/release", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysCompletedResponse(t *testing.T) {
	calls := 0
	router := newTestRouter(newMemoryStore(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"tasksCreated": 6})
	})

	first := post(router, "release-1", `{}`)
	second := post(router, "release-1", `{}`)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, calls)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestMiddleware_RejectsDifferentPayload(t *testing.T) {
	router := newTestRouter(newMemoryStore(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	require.Equal(t, http.StatusOK, post(router, "k1", `{"a":1}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(router, "k1", `{"a":2}`).Code)
}

func TestMiddleware_ConcurrentReservation(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store, func(c *gin.Context) { c.Status(http.StatusOK) })

	// a reservation without a response simulates a request still in flight
	_, _, err := store.Reserve(context.Background(), "||POST|/api/v1/waves/:id/release|busy", &Record{Fingerprint: ComputeFingerprint([]byte(`{}`))}, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, post(router, "busy", `{}`).Code)
}

func TestMiddleware_ServerErrorsAreNotCached(t *testing.T) {
	calls := 0
	router := newTestRouter(newMemoryStore(), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusServiceUnavailable, post(router, "retry-me", `{}`).Code)
	assert.Equal(t, http.StatusOK, post(router, "retry-me", `{}`).Code)
	assert.Equal(t, 2, calls)
}

func TestMiddleware_KeyValidation(t *testing.T) {
	router := newTestRouter(newMemoryStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, post(router, "", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(router, "bad key!", `{}`).Code)
}

func TestValidateKey(t *testing.T) {
	assert.ErrorIs(t, ValidateKey("", 10), ErrKeyRequired)
	assert.ErrorIs(t, ValidateKey("abcdefghijk", 10), ErrKeyTooLong)
	assert.ErrorIs(t, ValidateKey("a b", 10), ErrKeyInvalid)
	assert.NoError(t, ValidateKey("claim_01-A", 20))
}

func TestDeduplicatingHandler(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	fail := true
	handler := DeduplicatingHandler(&ConsumerConfig{
		Topic:         "wms.receiving.events",
		ConsumerGroup: "task-engine",
		Store:         store,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, func(context.Context, *cloudevents.WMSCloudEvent) error {
		calls++
		if fail {
			return errors.New("inventory unavailable")
		}
		return nil
	})

	event := &cloudevents.WMSCloudEvent{ID: "evt-1", Type: cloudevents.ReceivingItemReceived}
	assert.Error(t, handler(context.Background(), event))

	fail = false
	assert.NoError(t, handler(context.Background(), event))
	assert.NoError(t, handler(context.Background(), event))
	assert.Equal(t, 2, calls)
}
