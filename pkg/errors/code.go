package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Admin authentication errors
// 12000-12999: Session lifecycle errors
// 13000-13999: Assessment & Submission errors
// 14000-14999: Container runtime errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordAlreadyExists ErrorCode = 10102

	// Cache & lock errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Storage errors (10400-10499)
	StorageError ErrorCode = 10400

	// ========== Admin Authentication Errors (11000-11999) ==========

	InvalidCredentials    ErrorCode = 11000
	TokenExpired          ErrorCode = 11003
	TokenInvalid          ErrorCode = 11004
	TokenGenerationFailed ErrorCode = 11005

	// ========== Session Lifecycle Errors (12000-12999) ==========

	SessionNotFound     ErrorCode = 12000
	SessionClosed       ErrorCode = 12001
	InvalidSessionState ErrorCode = 12002

	// ========== Assessment & Submission Errors (13000-13999) ==========

	AssessmentNotFound     ErrorCode = 13000
	AssessmentFileNotFound ErrorCode = 13001
	AssessmentEmpty        ErrorCode = 13002
	SubmissionNotFound     ErrorCode = 13100
	SubmissionInvalid      ErrorCode = 13101
	ArchiveEntryNotFound   ErrorCode = 13102

	// ========== Container Runtime Errors (14000-14999) ==========

	RuntimeFailure  ErrorCode = 14000
	WorkspaceFailed ErrorCode = 14002
)

// errorMessages maps error codes to default messages
var errorMessages = map[ErrorCode]string{
	Success: "Success",

	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:       "Database error",
	RecordAlreadyExists: "Record already exists",

	CacheError: "Cache error",
	LockFailed: "Resource is busy, try again later",

	StorageError: "Storage error",

	InvalidCredentials:    "Invalid credentials",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",

	SessionNotFound:     "Interview session not found",
	SessionClosed:       "This interview session has been completed",
	InvalidSessionState: "Invalid session status",

	AssessmentNotFound:     "Assessment not found",
	AssessmentFileNotFound: "Assessment file not found",
	AssessmentEmpty:        "Assessment has no files",
	SubmissionNotFound:     "Submission not found",
	SubmissionInvalid:      "Invalid submission",
	ArchiveEntryNotFound:   "File not found in submission",

	RuntimeFailure:  "Container runtime error",
	WorkspaceFailed: "Failed to prepare workspace",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return http.StatusOK
	case c == Unauthorized, c >= 11000 && c < 12000:
		return http.StatusUnauthorized
	case c == NotFound, c == SessionNotFound, c == AssessmentNotFound,
		c == AssessmentFileNotFound, c == AssessmentEmpty, c == SubmissionNotFound,
		c == ArchiveEntryNotFound:
		return http.StatusNotFound
	case c == SessionClosed, c == LockFailed, c == RecordAlreadyExists:
		return http.StatusConflict
	case c == InvalidParams, c == InvalidSessionState, c == SubmissionInvalid:
		return http.StatusBadRequest
	case c == RuntimeFailure:
		return http.StatusBadGateway
	case c == ServiceUnavailable:
		return http.StatusServiceUnavailable
	case c == Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
