package middleware

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/task-engine/pkg/errors"
)

var validatorOnce sync.Once

var (
	binCodeRegex  = regexp.MustCompile(`^[A-Z]{1,2}-\d{2}-R\d{2}-L\d{2}$`)
	zoneCodeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,15}$`)
)

// InitValidator registers the engine's custom tags on gin's validator
func InitValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("bin_code", func(fl validator.FieldLevel) bool {
			return binCodeRegex.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("zone_code", func(fl validator.FieldLevel) bool {
			return zoneCodeRegex.MatchString(fl.Field().String())
		})
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// BindAndValidate binds the JSON body and converts failures to AppErrors
func BindAndValidate(c *gin.Context, obj any) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if stderrors.As(err, &validationErrors) {
			appErr := errors.ErrValidation("validation failed")
			for _, fe := range validationErrors {
				appErr.WithDetail(fe.Field(), formatValidationError(fe))
			}
			return appErr
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "bin_code":
		return "must be a bin code (format: A-01-R05-L02)"
	case "zone_code":
		return "must be an uppercase zone code"
	default:
		return "is invalid"
	}
}

// ContentType rejects non-JSON bodies on mutating requests
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength > 0 && !strings.HasPrefix(contentType, "application/json") {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
