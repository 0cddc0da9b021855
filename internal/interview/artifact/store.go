// Package artifact persists what a candidate submits: the details record and
// the zipped workspace. Artifacts are keyed by session token and never
// rewritten once a session is completed.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	pkgerrors "assesy/pkg/errors"
)

// Store holds submission artifacts.
type Store interface {
	SaveDetails(ctx context.Context, token string, details json.RawMessage) error
	SaveCode(ctx context.Context, token string, r io.Reader, size int64) error
	// ReadDetails returns SubmissionNotFound when nothing was saved.
	ReadDetails(ctx context.Context, token string) (json.RawMessage, error)
	// OpenCode returns SubmissionNotFound when nothing was saved.
	// Caller must close the archive.
	OpenCode(ctx context.Context, token string) (Archive, error)
	HasCode(ctx context.Context, token string) (bool, error)
}

// Archive is a random-access handle on a stored code archive.
type Archive interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

func detailsKey(token string) string { return token + "_details.json" }

func codeKey(token string) string { return token + "_code.zip" }

// CodeFileName is the download name of a submission archive.
func CodeFileName(token string) string { return codeKey(token) }

// prettyDetails validates details as a JSON object and indents it.
func prettyDetails(details json.RawMessage) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(details, &obj); err != nil || obj == nil {
		return nil, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("details must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, details, "", "  "); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.InvalidParams, "details must be a JSON object")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func submissionNotFound(token string) error {
	return pkgerrors.Newf(pkgerrors.SubmissionNotFound, "Submission for %s not found", token)
}
