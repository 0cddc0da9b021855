package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assesy/internal/interview/runtime"
	pkgerrors "assesy/pkg/errors"
)

// submittedSession returns the token of a completed session with a stored archive.
func submittedSession(t *testing.T, env *testEnv) string {
	t.Helper()
	token := env.createSession(t)
	env.activate(t, token)
	res, err := env.sessionSvc.Submit(context.Background(), token,
		submitInput(t, `{"name":"Ada"}`, map[string]string{"main.py": "print('final')\n", "lib/util.py": "X = 1\n"}))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := res.Teardown.Wait(); err != nil {
		t.Fatalf("teardown failed: %v", err)
	}
	return token
}

func TestReviewStartIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	token := submittedSession(t, env)
	ctx := context.Background()

	first, err := env.reviewSvc.Start(ctx, token)
	if err != nil {
		t.Fatalf("start review failed: %v", err)
	}
	want := "http://review-" + token + ".interview.localhost"
	if first.AlreadyExists || first.ReviewURL != want || first.Expiry == nil {
		t.Fatalf("unexpected first start: %+v", first)
	}
	c, ok := env.runtime.Get(runtime.ReviewContainerName(token))
	if !ok || !c.Running || c.Spec.AutoRemove {
		t.Fatalf("expected running non-auto-remove review container, got %+v", c)
	}
	if c.Spec.Binds[0] != filepath.Join(env.stagingRoot, "review-"+token)+":/home/coder/project:ro" {
		t.Fatalf("expected read-only bind, got %v", c.Spec.Binds)
	}
	data, err := os.ReadFile(filepath.Join(env.stagingRoot, "review-"+token, "lib", "util.py"))
	if err != nil || string(data) != "X = 1\n" {
		t.Fatalf("submission not extracted: %q %v", data, err)
	}

	createsBefore, _, _, _ := env.runtime.Counts()
	second, err := env.reviewSvc.Start(ctx, token)
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if !second.AlreadyExists || second.ReviewURL != want || second.Expiry != nil {
		t.Fatalf("expected alreadyExists, got %+v", second)
	}
	if creates, _, _, _ := env.runtime.Counts(); creates != createsBefore {
		t.Fatalf("no new container expected, creates %d -> %d", createsBefore, creates)
	}

	status, err := env.reviewSvc.Status(ctx, token)
	if err != nil || !status.Exists || !status.Running || status.State != "running" {
		t.Fatalf("unexpected status: %+v %v", status, err)
	}
}

func TestReviewStartReplacesStoppedContainer(t *testing.T) {
	env := newTestEnv(t)
	token := submittedSession(t, env)
	ctx := context.Background()
	name := runtime.ReviewContainerName(token)
	env.runtime.Put(runtime.ContainerSpec{Name: name, Image: "stale"}, false)

	res, err := env.reviewSvc.Start(ctx, token)
	if err != nil {
		t.Fatalf("start review failed: %v", err)
	}
	if res.AlreadyExists {
		t.Fatalf("stopped container must not count as existing")
	}
	c, ok := env.runtime.Get(name)
	if !ok || !c.Running || c.Spec.Image == "stale" {
		t.Fatalf("expected fresh container under the same name, got %+v", c)
	}
}

func TestReviewStartWithoutSubmission(t *testing.T) {
	env := newTestEnv(t)
	token := env.createSession(t)

	_, err := env.reviewSvc.Start(context.Background(), token)
	if !pkgerrors.Is(err, pkgerrors.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
	if _, ok := env.runtime.Get(runtime.ReviewContainerName(token)); ok {
		t.Fatalf("no review container expected")
	}
}

func TestReviewStartConflictWhileStarting(t *testing.T) {
	env := newTestEnv(t)
	token := submittedSession(t, env)
	ctx := context.Background()

	if ok, _ := env.locker.TryAcquire(ctx, "review-"+token); !ok {
		t.Fatalf("hold review lock failed")
	}
	_, err := env.reviewSvc.Start(ctx, token)
	if !pkgerrors.Is(err, pkgerrors.LockFailed) || pkgerrors.GetCode(err).HTTPStatus() != 409 {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReviewExpiryTearsDown(t *testing.T) {
	env := newTestEnv(t, withReviewTimeout(20*time.Millisecond))
	token := submittedSession(t, env)

	res, err := env.reviewSvc.Start(context.Background(), token)
	if err != nil {
		t.Fatalf("start review failed: %v", err)
	}
	if err := res.Expiry.Wait(); err != nil {
		t.Fatalf("expiry failed: %v", err)
	}
	if _, ok := env.runtime.Get(runtime.ReviewContainerName(token)); ok {
		t.Fatalf("expected review container removed after expiry")
	}
}

func TestReviewOldExpiryDoesNotCutNewGeneration(t *testing.T) {
	env := newTestEnv(t, withReviewTimeout(200*time.Millisecond))
	token := submittedSession(t, env)
	ctx := context.Background()

	first, err := env.reviewSvc.Start(ctx, token)
	if err != nil {
		t.Fatalf("start review failed: %v", err)
	}
	// Leave room between the two timers.
	time.Sleep(100 * time.Millisecond)
	if err := env.reviewSvc.Stop(ctx, token); err != nil {
		t.Fatalf("stop review failed: %v", err)
	}
	second, err := env.reviewSvc.Start(ctx, token)
	if err != nil {
		t.Fatalf("restart review failed: %v", err)
	}

	if err := first.Expiry.Wait(); err != nil {
		t.Fatalf("old expiry failed: %v", err)
	}
	if c, ok := env.runtime.Get(runtime.ReviewContainerName(token)); !ok || !c.Running {
		t.Fatalf("old timer must not stop the new environment")
	}
	if err := second.Expiry.Wait(); err != nil {
		t.Fatalf("new expiry failed: %v", err)
	}
	if _, ok := env.runtime.Get(runtime.ReviewContainerName(token)); ok {
		t.Fatalf("new timer should stop its own environment")
	}
}

func TestReviewStopIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	token := submittedSession(t, env)
	ctx := context.Background()

	if _, err := env.reviewSvc.Start(ctx, token); err != nil {
		t.Fatalf("start review failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := env.reviewSvc.Stop(ctx, token); err != nil {
			t.Fatalf("stop %d failed: %v", i, err)
		}
	}
	status, err := env.reviewSvc.Status(ctx, token)
	if err != nil || status.Exists {
		t.Fatalf("expected no review container, got %+v %v", status, err)
	}
}

func TestSubmissionInspection(t *testing.T) {
	env := newTestEnv(t)
	token := submittedSession(t, env)
	ctx := context.Background()

	entries, err := env.submissionSvc.ListFiles(ctx, token)
	if err != nil || len(entries) != 2 {
		t.Fatalf("unexpected entries: %+v %v", entries, err)
	}
	content, err := env.submissionSvc.ReadFile(ctx, token, "lib/util.py")
	if err != nil || string(content) != "X = 1\n" {
		t.Fatalf("unexpected content: %q %v", content, err)
	}
	if _, err := env.submissionSvc.ReadFile(ctx, token, "nope.py"); !pkgerrors.Is(err, pkgerrors.ArchiveEntryNotFound) {
		t.Fatalf("expected ArchiveEntryNotFound, got %v", err)
	}
	if _, err := env.submissionSvc.ListFiles(ctx, "not-a-token"); !pkgerrors.Is(err, pkgerrors.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}
