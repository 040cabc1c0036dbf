package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/contracts/openapi"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/middleware"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

func mustContract(t *testing.T) *openapi.Validator {
	t.Helper()
	v, err := loadAPIContract()
	require.NoError(t, err)
	return v
}

func contractAPI(t *testing.T) *testAPI {
	logCfg := logging.DefaultConfig(serviceName)
	logCfg.Level = logging.LevelError
	return newTestAPI(middleware.ContractValidation(mustContract(t), logging.New(logCfg).Logger))
}

func TestAPIContract_DocumentsEveryRoute(t *testing.T) {
	contract := mustContract(t)
	api := newTestAPI()

	routes := 0
	for _, route := range api.router.Routes() {
		if !strings.HasPrefix(route.Path, "/api/v1/") {
			continue
		}
		routes++
		segments := strings.Split(route.Path, "/")
		for i, seg := range segments {
			if strings.HasPrefix(seg, ":") {
				segments[i] = "p-1"
			}
		}
		req := httptest.NewRequest(route.Method, strings.Join(segments, "/"), nil)
		assert.True(t, contract.Covers(req), "%s %s is not documented", route.Method, route.Path)
	}
	assert.Greater(t, routes, 30)
}

func TestAPIContract_OperationIDs(t *testing.T) {
	contract := mustContract(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves/wv-1/release", nil)
	id, err := contract.OperationID(req)
	require.NoError(t, err)
	assert.Equal(t, "releaseWave", id)

	_, err = contract.OperationID(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.ErrorIs(t, err, openapi.ErrUndocumented)
	assert.Contains(t, contract.Paths(), "/api/v1/tasks/{id}/complete")
}

func TestContractValidationMiddleware(t *testing.T) {
	t.Run("rejects a body that breaks the contract", func(t *testing.T) {
		api := contractAPI(t)
		rec := api.do(http.MethodPost, "/api/v1/cross-docks/cd-1/inbound", `{"productId":"SKU-1","quantity":"six"}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, errors.CodeValidationError, body.Code)
		assert.Contains(t, body.Details, "contract")
		api.crossDocks.AssertNotCalled(t, "RecordInbound", mock.Anything, mock.Anything)
	})

	t.Run("passes a conforming body to the handler", func(t *testing.T) {
		api := contractAPI(t)
		api.tasks.On("SkipTask", mock.Anything, application.SkipTaskCommand{TaskID: "t-1", WorkerID: "w-1", Reason: "blocked aisle"}).
			Return(&application.TaskDTO{ID: "t-1", Status: "PENDING"}, nil)

		rec := api.do(http.MethodPost, "/api/v1/tasks/t-1/skip", `{"workerId":"w-1","reason":"blocked aisle"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		api.tasks.AssertExpectations(t)
	})

	t.Run("claim without a body is allowed", func(t *testing.T) {
		api := contractAPI(t)
		api.assignment.On("Claim", mock.Anything, mock.Anything).Return(nil, nil)

		rec := api.do(http.MethodPost, "/api/v1/tasks/claim", "", map[string]string{middleware.HeaderWorkerID: "w-1"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("undocumented routes reach the router", func(t *testing.T) {
		api := contractAPI(t)
		rec := api.do(http.MethodGet, "/api/v1/unknown", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPIContract_Responses(t *testing.T) {
	contract := mustContract(t)
	api := newTestAPI()
	api.waves.On("ListWaves", mock.Anything, tenant.DefaultWarehouseID, "").Return([]application.WaveDTO{{ID: "wv-1"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, contract.ValidateResponse(req, rec.Code, rec.Header(), rec.Body.Bytes()))
	api.waves.AssertExpectations(t)

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t-404", nil)
	errRec := httptest.NewRecorder()
	api.tasks.On("GetTask", mock.Anything, "t-404").Return(nil, domain.NewNotFound("task", "t-404"))
	api.router.ServeHTTP(errRec, missing)
	require.Equal(t, http.StatusNotFound, errRec.Code)
	assert.NoError(t, contract.ValidateResponse(missing, errRec.Code, errRec.Header(), errRec.Body.Bytes()))

	assert.Error(t, contract.ValidateResponse(req, http.StatusOK, http.Header{"Content-Type": []string{"application/json"}}, []byte(`{"data":"nope"}`)))
}
