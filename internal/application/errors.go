package application

import (
	stderrors "errors"
	"net/http"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
)

// ToAppError translates domain errors into API errors
func ToAppError(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var (
		validation *domain.ValidationError
		invalid    *domain.InvalidStateError
		concurrent *domain.ConcurrentTaskError
		released   *domain.AlreadyReleasedError
		empty      *domain.EmptyWaveError
		notFound   *domain.NotFoundError
	)
	switch {
	case stderrors.As(err, &validation):
		appErr := errors.ErrValidation(validation.Message).WithState(validation.State)
		if validation.Field != "" {
			appErr.WithDetail(validation.Field, validation.Message)
		}
		return appErr.Wrap(err)
	case stderrors.As(err, &invalid):
		return errors.ErrInvalidState(invalid.Error()).WithState(invalid.State).Wrap(err)
	case stderrors.As(err, &concurrent):
		return errors.ErrConcurrentTask(concurrent.ExistingTaskID).Wrap(err)
	case stderrors.As(err, &released):
		return errors.ErrAlreadyReleased(released.WaveID).WithState(released.State).Wrap(err)
	case stderrors.As(err, &empty):
		return errors.ErrEmptyWave(empty.WaveID).Wrap(err)
	case stderrors.As(err, &notFound):
		return errors.ErrNotFoundWithID(notFound.Resource, notFound.ID).Wrap(err)
	case stderrors.Is(err, domain.ErrNotFound):
		return errors.ErrNotFound("resource").Wrap(err)
	case stderrors.Is(err, domain.ErrSessionInactive):
		return errors.NewAppError("NO_ACTIVE_SESSION", "worker has no active session", http.StatusConflict).Wrap(err)
	case stderrors.Is(err, domain.ErrClaimConflict), stderrors.Is(err, domain.ErrVersionConflict):
		return errors.ErrConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrDuplicate):
		return errors.ErrConflict(err.Error()).Wrap(err)
	}
	return errors.MapDomainError(err)
}
