package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assesy/internal/interview/model"
	"assesy/internal/interview/runtime"
	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reconcileConcurrency = 4

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int
	Activated int
	Failed    int
	Skipped   int
}

// Reconcile settles sessions left in PROVISIONING by a previous process.
// A session whose container is running is activated; any other is failed so
// the next visit provisions it again. Sessions locked by a live attempt are
// left alone.
func (s *SessionService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	tokens, err := s.sessions.ListTokensByStatus(ctx, model.StatusProvisioning)
	if err != nil {
		return ReconcileReport{}, pkgerrors.Wrap(fmt.Errorf("list provisioning sessions failed: %w", err), pkgerrors.DatabaseError)
	}

	var (
		mu     sync.Mutex
		report = ReconcileReport{Checked: len(tokens)}
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, token := range tokens {
		g.Go(func() error {
			outcome, err := s.reconcileOne(gctx, token)
			if err != nil {
				logger.Warn(logger.WithSessionToken(gctx, token), "reconcile session failed", zap.Error(err))
				count(&report.Skipped)
				return nil
			}
			switch outcome {
			case model.StatusActive:
				count(&report.Activated)
			case model.StatusFailed:
				count(&report.Failed)
			default:
				count(&report.Skipped)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	logger.Info(ctx, "reconciled provisioning sessions",
		zap.Int("checked", report.Checked),
		zap.Int("activated", report.Activated),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *SessionService) reconcileOne(ctx context.Context, token string) (model.SessionStatus, error) {
	ctx = logger.WithSessionToken(ctx, token)
	acquired, err := s.locker.TryAcquire(ctx, token)
	if err != nil {
		return "", err
	}
	if !acquired {
		return "", nil
	}
	defer s.release(ctx, token)

	status, err := s.provisioner.Status(ctx, runtime.SessionContainerName(token))
	if err != nil {
		return "", err
	}
	target := model.StatusFailed
	if status.Running {
		target = model.StatusActive
	}
	moved, err := s.transition(ctx, token, model.StatusProvisioning, target, time.Now())
	if err != nil {
		return "", err
	}
	if !moved {
		return "", nil
	}
	logger.Info(ctx, "reconciled stuck session", zap.String("status", string(target)))
	return target, nil
}
