package worker

import (
	"context"
	"sync"
	"time"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ActivityWorker consumes domain events and writes the admin activity feed
type ActivityWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewActivityWorker creates a new activity worker
func NewActivityWorker(consumer *broker.Consumer, recorder *service.ActivityRecorder) *ActivityWorker {
	return &ActivityWorker{
		consumer: consumer,
		handler:  newActivityHandler(recorder),
		logger:   util.GetLogger(),
	}
}

func newActivityHandler(recorder *service.ActivityRecorder) *broker.EventHandler {
	handler := broker.NewEventHandler()
	handler.OnAll(recorder.Handle)
	return handler
}

// Start blocks consuming events until ctx is cancelled
func (w *ActivityWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting activity worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *ActivityWorker) Stop() error {
	w.logger.Info("Stopping activity worker")
	return w.consumer.Close()
}

const defaultReconcileInterval = time.Minute

type reconcileRunner interface {
	Run(ctx context.Context) (service.ReconcileResult, error)
}

// ReconcileWorker runs the payment reconciler on a fixed interval
type ReconcileWorker struct {
	reconciler reconcileRunner
	interval   time.Duration
	logger     *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(reconciler *service.PaymentReconciler, interval time.Duration) *ReconcileWorker {
	return newReconcileWorker(reconciler, interval)
}

func newReconcileWorker(reconciler reconcileRunner, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		logger:     util.GetLogger(),
		stop:       make(chan struct{}),
	}
}

// Start runs one pass immediately, then one per interval, until ctx is
// cancelled or Stop is called.
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	if _, err := w.reconciler.Run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Reconciliation pass failed", zap.Error(err))
	}
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	w.logger.Info("Stopping reconcile worker")
	w.stopOnce.Do(func() { close(w.stop) })
	return nil
}
