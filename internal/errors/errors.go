package errors

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for unknown emails, inactive accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyExists is returned when registering an email that is already taken.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrUserNotFound is returned when a user row does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when another user already holds the requested username.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrInvalidToken is returned when a bearer token is missing, malformed, expired or revoked.
	ErrInvalidToken = errors.New("unauthorized")
	// ErrNoFile is returned when an avatar upload carries no file or an empty one.
	ErrNoFile = errors.New("no file provided")
	// ErrFileTooLarge is returned when an avatar exceeds the size limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit of 2MB")
	// ErrInvalidFileFormat is returned when an avatar extension is not allowed.
	ErrInvalidFileFormat = errors.New("invalid file format: allowed formats are .jpg, .jpeg, .png")
	// ErrInvalidImage is returned when an avatar payload does not decode as an image.
	ErrInvalidImage = errors.New("file is not a valid image")
)

// ErrorResponse is the JSON error envelope returned by every endpoint.
type ErrorResponse struct {
	Error            string              `json:"error"`
	Code             string              `json:"code,omitempty"`
	ValidationErrors map[string][]string `json:"validationErrors,omitempty"`
}

// ValidationError carries field-keyed validation messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode       int
	Message          string
	Code             string
	ValidationErrors map[string][]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:            e.Message,
		Code:             e.Code,
		ValidationErrors: e.ValidationErrors,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unknown becomes a generic 500.
func MapErrorToHTTP(err error) *HTTPError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &HTTPError{
			StatusCode:       http.StatusBadRequest,
			Message:          "Validation failed",
			Code:             "VALIDATION_FAILED",
			ValidationErrors: verr.Fields,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidToken):
		return NewHTTPError(http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
	case errors.Is(err, ErrEmailAlreadyExists):
		return NewHTTPError(http.StatusConflict, "Email already exists", "EMAIL_ALREADY_EXISTS")
	case errors.Is(err, ErrUsernameTaken):
		return NewHTTPError(http.StatusConflict, "Username is already taken", "USERNAME_TAKEN")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, "User not found", "USER_NOT_FOUND")
	case errors.Is(err, ErrNoFile):
		return NewHTTPError(http.StatusBadRequest, "No file provided", "NO_FILE")
	case errors.Is(err, ErrFileTooLarge):
		return NewHTTPError(http.StatusBadRequest, "File size exceeds maximum limit of 2MB", "FILE_TOO_LARGE")
	case errors.Is(err, ErrInvalidFileFormat):
		return NewHTTPError(http.StatusBadRequest, "Invalid file format. Allowed formats: .jpg, .jpeg, .png", "INVALID_FILE_FORMAT")
	case errors.Is(err, ErrInvalidImage):
		return NewHTTPError(http.StatusBadRequest, "File is not a valid image", "INVALID_IMAGE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "An unexpected error occurred", "INTERNAL_ERROR")
	}
}
