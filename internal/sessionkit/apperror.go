package sessionkit

import "net/http"

// AppError is a domain failure with an explicit HTTP status. It renders
// as {error:{statusCode,message,errorType,data}} in the translator.
type AppError struct {
	StatusCode int
	Message    string
	ErrorType  string
	Data       map[string][]string
}

// Error implements the error interface.
func (appErr *AppError) Error() string {
	return appErr.ErrorType + ": " + appErr.Message
}

// NewAppError builds an AppError with ErrorType derived from the status.
func NewAppError(statusCode int, message string, data map[string][]string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Message:    message,
		ErrorType:  http.StatusText(statusCode),
		Data:       data,
	}
}

// Forbidden builds a 403 AppError.
func Forbidden(message string, data map[string][]string) *AppError {
	return NewAppError(http.StatusForbidden, message, data)
}

// BadRequest builds a 400 AppError.
func BadRequest(message string, data map[string][]string) *AppError {
	return NewAppError(http.StatusBadRequest, message, data)
}

// ServiceUnavailable builds a 503 AppError.
func ServiceUnavailable(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, message, nil)
}

type errorBody struct {
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	ErrorType  string              `json:"errorType"`
	Data       map[string][]string `json:"data,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func envelopeFor(appErr *AppError) errorEnvelope {
	return errorEnvelope{Error: errorBody{
		StatusCode: appErr.StatusCode,
		Message:    appErr.Message,
		ErrorType:  appErr.ErrorType,
		Data:       appErr.Data,
	}}
}
