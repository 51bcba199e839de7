package response

// Error codes shared across handlers
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUpstream     = "UPSTREAM_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Response is the JSON envelope returned by every API endpoint
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
}

// ErrorData describes a failed request
type ErrorData struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success wraps data in a successful envelope
func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Error builds a failed envelope
func Error(code, message string) Response {
	return Response{
		Success: false,
		Error:   &ErrorData{Code: code, Message: message},
	}
}

// ErrorWithDetails builds a failed envelope carrying structured details
func ErrorWithDetails(code, message string, details interface{}) Response {
	return Response{
		Success: false,
		Error:   &ErrorData{Code: code, Message: message, Details: details},
	}
}

// BadRequest is shorthand for a VALIDATION_ERROR envelope
func BadRequest(message string) Response {
	return Error(ErrCodeValidation, message)
}

// NotFound is shorthand for a NOT_FOUND envelope
func NotFound(message string) Response {
	return Error(ErrCodeNotFound, message)
}

// Unauthorized is shorthand for an UNAUTHORIZED envelope
func Unauthorized(message string) Response {
	return Error(ErrCodeUnauthorized, message)
}

// InternalError hides err behind a generic message
func InternalError(message string) Response {
	if message == "" {
		message = "Internal server error"
	}
	return Error(ErrCodeInternal, message)
}
