package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/axis-ledger/internal/observability"
	"github.com/ayo6706/axis-ledger/internal/service"
	"go.uber.org/zap"
)

// ReconciliationWorker periodically sweeps abandoned pending transactions
// and checks balances against the transaction log.
type ReconciliationWorker struct {
	svc      *service.ReconciliationService
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker constructs a worker with a default ten minute interval.
func NewReconciliationWorker(svc *service.ReconciliationService) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		interval: 10 * time.Minute,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	defer close(w.doneCh)
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop signals the loop to exit.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a function that stops it
// and waits for the in-flight run to finish.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return func() {
		w.Stop()
		<-w.doneCh
	}
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	report, err := w.svc.Run(runCtx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return
	}
	if len(report.Drifts) > 0 {
		observability.IncrementWorkerRun("reconciliation", "drift")
		return
	}
	observability.IncrementWorkerRun("reconciliation", "success")
}
