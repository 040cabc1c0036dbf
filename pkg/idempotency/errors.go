package idempotency

import "errors"

var (
	ErrKeyRequired       = errors.New("idempotency key is required for this operation")
	ErrKeyInvalid        = errors.New("invalid idempotency key format")
	ErrKeyTooLong        = errors.New("idempotency key exceeds maximum length")
	ErrParameterMismatch = errors.New("request parameters differ from original request with this idempotency key")
	ErrConcurrentRequest = errors.New("a request with this idempotency key is currently being processed")
)
