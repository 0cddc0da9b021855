package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	pkgerrors "assesy/pkg/errors"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code pkgerrors.ErrorCode
		want int
	}{
		{pkgerrors.Success, http.StatusOK},
		{pkgerrors.SessionNotFound, http.StatusNotFound},
		{pkgerrors.AssessmentNotFound, http.StatusNotFound},
		{pkgerrors.SubmissionNotFound, http.StatusNotFound},
		{pkgerrors.SessionClosed, http.StatusConflict},
		{pkgerrors.LockFailed, http.StatusConflict},
		{pkgerrors.InvalidSessionState, http.StatusBadRequest},
		{pkgerrors.InvalidParams, http.StatusBadRequest},
		{pkgerrors.RuntimeFailure, http.StatusBadGateway},
		{pkgerrors.DatabaseError, http.StatusInternalServerError},
		{pkgerrors.TokenExpired, http.StatusUnauthorized},
		{pkgerrors.InvalidCredentials, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("code %d: expected status %d, got %d", tc.code, tc.want, got)
		}
	}
}

func TestGetCodeThroughWrapping(t *testing.T) {
	base := pkgerrors.New(pkgerrors.SessionNotFound)
	wrapped := fmt.Errorf("load session: %w", base)

	if got := pkgerrors.GetCode(wrapped); got != pkgerrors.SessionNotFound {
		t.Fatalf("expected SessionNotFound, got %d", got)
	}
	if !pkgerrors.Is(wrapped, pkgerrors.SessionNotFound) {
		t.Fatalf("expected Is to match wrapped code")
	}
	if pkgerrors.GetCode(fmt.Errorf("plain")) != pkgerrors.InternalServerError {
		t.Fatalf("expected plain errors to map to InternalServerError")
	}
	if pkgerrors.GetCode(nil) != pkgerrors.Success {
		t.Fatalf("expected nil to map to Success")
	}
}

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := pkgerrors.New(pkgerrors.AssessmentEmpty)
	outer := pkgerrors.Wrap(fmt.Errorf("stage: %w", inner), pkgerrors.WorkspaceFailed)
	if outer.Code != pkgerrors.AssessmentEmpty {
		t.Fatalf("expected inner code to win, got %d", outer.Code)
	}

	plain := pkgerrors.Wrap(fmt.Errorf("disk full"), pkgerrors.StorageError)
	if plain.Code != pkgerrors.StorageError || plain.Error() != "disk full" {
		t.Fatalf("unexpected wrap result: %d %q", plain.Code, plain.Error())
	}
	if pkgerrors.Wrap(nil, pkgerrors.StorageError) != nil {
		t.Fatalf("expected nil wrap to stay nil")
	}
}

func TestWrapfMessageAndDetails(t *testing.T) {
	err := pkgerrors.Wrapf(fmt.Errorf("boom"), pkgerrors.RuntimeFailure, "start container %s failed", "session-abc").
		WithDetail("container", "session-abc")
	if err.Error() != "start container session-abc failed" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if err.Details["container"] != "session-abc" {
		t.Fatalf("missing detail")
	}
	if err.Unwrap() == nil {
		t.Fatalf("expected cause to be kept")
	}
}
