package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/pkg/errors"
)

// RequestContract is the request side of an API contract
type RequestContract interface {
	Covers(req *http.Request) bool
	ValidateRequest(req *http.Request) error
}

// ContractValidation rejects documented requests that break the contract.
// Undocumented routes pass through to the router.
func ContractValidation(contract RequestContract, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !contract.Covers(c.Request) {
			c.Next()
			return
		}
		if err := contract.ValidateRequest(c.Request); err != nil {
			appErr := errors.ErrValidation("request does not match the API contract").
				WithDetail("contract", err.Error())
			NewErrorResponder(c, logger).RespondWithAppError(appErr)
			c.Abort()
			return
		}
		c.Next()
	}
}
