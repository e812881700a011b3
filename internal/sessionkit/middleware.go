package sessionkit

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SessionContextKey is where RequireSession stores the verified payload.
const SessionContextKey = "session_payload"

// NoCache suppresses response caching on every request it wraps.
func NoCache() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		contextGin.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		contextGin.Header("Pragma", "no-cache")
		contextGin.Header("Expires", "0")
		contextGin.Next()
	}
}

// ErrorTranslator renders any error attached to the gin context as the
// uniform {error:{statusCode,message,errorType,data}} envelope. Errors
// without an explicit status are logged and rendered as a bare 500.
func ErrorTranslator(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		contextGin.Next()
		if len(contextGin.Errors) == 0 || contextGin.Writer.Written() {
			return
		}
		lastError := contextGin.Errors.Last()
		appErr := translateError(lastError)
		if appErr.StatusCode >= http.StatusInternalServerError {
			logger.Error("unhandled request error",
				zap.String("code", "http.error.internal"),
				zap.String("path", contextGin.Request.URL.Path),
				zap.Error(lastError.Err),
			)
		}
		contextGin.JSON(appErr.StatusCode, envelopeFor(appErr))
	}
}

func translateError(ginError *gin.Error) *AppError {
	var appErr *AppError
	if errors.As(ginError.Err, &appErr) {
		return appErr
	}
	var validationErrors validator.ValidationErrors
	if errors.As(ginError.Err, &validationErrors) {
		return BadRequest("Validation failed", fieldValidationData(validationErrors))
	}
	if ginError.IsType(gin.ErrorTypeBind) {
		return BadRequest("Validation failed", nil)
	}
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Message:    "An internal server error occurred",
		ErrorType:  http.StatusText(http.StatusInternalServerError),
	}
}

func fieldValidationData(validationErrors validator.ValidationErrors) map[string][]string {
	data := make(map[string][]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		fieldName := fieldError.Field()
		data[fieldName] = append(data[fieldName], validationMessage(fieldError))
	}
	return data
}

func validationMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

var registerTagNamesOnce sync.Once

// registerValidationTagNames makes validator report JSON field names so
// the error envelope matches the request body shape.
func registerValidationTagNames() {
	registerTagNamesOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func abortWithBindingError(contextGin *gin.Context, err error) {
	_ = contextGin.Error(err).SetType(gin.ErrorTypeBind)
	contextGin.Abort()
}

func abortWithError(contextGin *gin.Context, err error) {
	_ = contextGin.Error(err)
	contextGin.Abort()
}

// RequireSession validates the access cookie and injects the payload.
// Routes behind it treat a missing or invalid token as a hard failure.
func RequireSession(configuration ServerConfig, clock Clock) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		accessCookie, cookieErr := contextGin.Request.Cookie(configuration.AccessCookieName)
		if cookieErr != nil || accessCookie == nil || strings.TrimSpace(accessCookie.Value) == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		payload, verifyErr := VerifySessionJWT(clock, accessCookie.Value, configuration.Issuer, configuration.SigningKey)
		if verifyErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(SessionContextKey, payload)
		contextGin.Next()
	}
}
