package contextkey

// Key is the type of request-scoped context keys shared by the logger and
// the HTTP middleware.
type Key string

const (
	TraceID   Key = "trace_id"
	RequestID Key = "request_id"
	// UserID holds the authenticated operator name.
	UserID Key = "user_id"
	// SessionToken is attached to contexts that act on one interview session.
	SessionToken Key = "session_token"
)
