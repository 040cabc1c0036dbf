package application

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
)

func TestToAppError(t *testing.T) {
	state := map[string]string{"status": "COMPLETED"}

	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", &domain.ValidationError{Field: "quantity", Message: "must be positive"}, errors.CodeValidationError, http.StatusBadRequest},
		{"invalid state", &domain.InvalidStateError{Resource: "task", ID: "t-1", Status: "COMPLETED", Action: "start", State: state}, errors.CodeInvalidState, http.StatusConflict},
		{"concurrent task", &domain.ConcurrentTaskError{WorkerID: "w-1", ExistingTaskID: "t-2"}, errors.CodeConcurrentTask, http.StatusConflict},
		{"already released", &domain.AlreadyReleasedError{WaveID: "wv-1", Status: domain.WaveStatusReleased}, errors.CodeAlreadyReleased, http.StatusConflict},
		{"empty wave", &domain.EmptyWaveError{WaveID: "wv-1"}, errors.CodeEmptyWave, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("lookup: %w", domain.NewNotFound("wave", "wv-9")), errors.CodeNotFound, http.StatusNotFound},
		{"claim conflict", domain.ErrClaimConflict, errors.CodeConflict, http.StatusConflict},
		{"version conflict", fmt.Errorf("save: %w", domain.ErrVersionConflict), errors.CodeConflict, http.StatusConflict},
		{"no session", domain.ErrSessionInactive, "NO_ACTIVE_SESSION", http.StatusConflict},
		{"passthrough", errors.ErrTimeout("release"), errors.CodeTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
		})
	}

	assert.Nil(t, ToAppError(nil))
}

func TestToAppError_CarriesStateAndField(t *testing.T) {
	task := pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"})

	appErr := ToAppError(&domain.ValidationError{Field: "workerId", Message: "task is held by another worker", State: task})
	assert.Equal(t, "task is held by another worker", appErr.Details["workerId"])
	assert.Same(t, task, appErr.State)

	appErr = ToAppError(&domain.InvalidStateError{Resource: "task", ID: "t-1", Status: "PENDING", Action: "complete", State: task})
	assert.Same(t, task, appErr.State)
}
