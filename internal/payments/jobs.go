package payments

import (
	"context"
	"sync"
	"time"

	"topgun/pkg/logger"
)

// JobProcessor runs background ledger maintenance
type JobProcessor struct {
	service Service
	config  *JobConfig
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	ReconcileInterval time.Duration
	// records younger than this belong to a cancel that may still be in flight
	ReconcileGrace time.Duration
	BatchSize      int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		ReconcileInterval: 1 * time.Minute,
		ReconcileGrace:    2 * time.Minute,
		BatchSize:         100,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.wg.Add(1)
	go func() {
		defer jp.wg.Done()
		jp.startReconciler(ctx)
	}()

	logger.GetDefault().Info("Payment background jobs started",
		"reconcile_interval", jp.config.ReconcileInterval.String(),
		"reconcile_grace", jp.config.ReconcileGrace.String(),
	)
}

// Stop stops all background jobs and waits for a running sweep to finish
func (jp *JobProcessor) Stop() {
	jp.once.Do(func() { close(jp.done) })
	jp.wg.Wait()
	logger.GetDefault().Info("Payment background jobs stopped")
}

func (jp *JobProcessor) startReconciler(ctx context.Context) {
	ticker := time.NewTicker(jp.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.reconcile(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// reconcile applies cancellations the gateway confirmed but the ledger missed
func (jp *JobProcessor) reconcile(ctx context.Context) int {
	applied, err := jp.service.SweepPendingCancellations(ctx, jp.config.ReconcileGrace, jp.config.BatchSize)
	if err != nil {
		logger.GetDefault().ErrorContext(ctx, "Error sweeping pending cancellations", "error", err)
		return 0
	}

	if applied > 0 {
		logger.GetDefault().InfoContext(ctx, "Applied pending cancellations", "count", applied)
	}
	return applied
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	status := "running"
	select {
	case <-jp.done:
		status = "stopped"
	default:
	}

	return map[string]interface{}{
		"reconcile_interval": jp.config.ReconcileInterval.String(),
		"reconcile_grace":    jp.config.ReconcileGrace.String(),
		"batch_size":         jp.config.BatchSize,
		"status":             status,
	}
}
