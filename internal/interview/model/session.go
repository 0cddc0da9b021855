package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	pkgerrors "assesy/pkg/errors"
)

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	StatusCreated      SessionStatus = "CREATED"
	StatusProvisioning SessionStatus = "PROVISIONING"
	StatusActive       SessionStatus = "ACTIVE"
	StatusCompleted    SessionStatus = "COMPLETED"
	StatusFailed       SessionStatus = "FAILED"
)

// transitions lists, for each target state, the states it may be entered from.
var transitions = map[SessionStatus][]SessionStatus{
	StatusProvisioning: {StatusCreated, StatusFailed},
	StatusActive:       {StatusProvisioning},
	StatusFailed:       {StatusProvisioning},
	StatusCompleted:    {StatusActive, StatusProvisioning},
}

// ParseSessionStatus validates a stored status value.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	switch s := SessionStatus(raw); s {
	case StatusCreated, StatusProvisioning, StatusActive, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", pkgerrors.Newf(pkgerrors.InvalidSessionState, "Invalid session status: %q", raw)
	}
}

// SourcesOf returns the states from which target can be reached.
func SourcesOf(target SessionStatus) []SessionStatus {
	return transitions[target]
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to SessionStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Session is one candidate's interview.
type Session struct {
	ID            int64
	Token         string
	Status        SessionStatus
	CandidateName string
	Position      string
	AssessmentID  int64
	CreatedAt     time.Time
	ActiveAt      *time.Time
	CompletedAt   *time.Time
}

// SessionSummary is a session row joined with its assessment title.
type SessionSummary struct {
	Token           string
	Status          SessionStatus
	CandidateName   string
	Position        string
	AssessmentTitle string
	CreatedAt       time.Time
	ActiveAt        *time.Time
	CompletedAt     *time.Time
}

// Assessment is a named set of starter files.
type Assessment struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

const tokenBytes = 24

// NewSessionToken returns a fresh unguessable session token.
func NewSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidToken reports whether token has the shape produced by NewSessionToken.
// Tokens end up in file paths and container names, so nothing else is accepted.
func ValidToken(token string) bool {
	if len(token) != tokenBytes*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
