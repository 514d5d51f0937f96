package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	pkgerrors "github.com/danielvega/tradeyard-backend/pkg/errors"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/metrics"
)

type orderExpirer interface {
	Expire(ctx context.Context, orderID uuid.UUID) error
}

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// OrderExpirationJobParams configure the abandoned-order reaper job.
type OrderExpirationJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	Pending   pendingOrderReader
	Metrics   *metrics.CronJobMetrics
	Timeout   time.Duration
	BatchSize int
}

// NewOrderExpirationJob builds the job that cancels PENDING orders older
// than the configured timeout, releasing their item reservations.
func NewOrderExpirationJob(params OrderExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &orderExpirationJob{
		logg:      params.Logger,
		orders:    params.Orders,
		pending:   params.Pending,
		metrics:   params.Metrics,
		timeout:   params.Timeout,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type orderExpirationJob struct {
	logg      *logger.Logger
	orders    orderExpirer
	pending   pendingOrderReader
	metrics   *metrics.CronJobMetrics
	timeout   time.Duration
	batchSize int
	now       func() time.Time
}

func (j *orderExpirationJob) Name() string { return "order-expiration" }

// Run selects one bounded batch per cycle and expires each candidate
// independently. The expire transition re-checks the PENDING guard, so an
// order paid between selection and execution is skipped, not failed.
func (j *orderExpirationJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.timeout)
	candidates, err := j.pending.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	expired := 0
	skipped := 0
	var errs []error
	for _, order := range candidates {
		err := j.orders.Expire(ctx, order.ID)
		switch {
		case err == nil:
			expired++
		case pkgerrors.HasCode(err, pkgerrors.CodeInvalidState),
			pkgerrors.HasCode(err, pkgerrors.CodeStaleVersion),
			pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
			// Lost the race with a concurrent transition. Nothing to do.
			skipped++
		default:
			orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
			j.logg.Error(orderCtx, "failed to expire order", err)
			errs = append(errs, fmt.Errorf("expire %s: %w", order.ID, err))
		}
	}

	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), expired)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"expired":    expired,
		"skipped":    skipped,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "order expiration loop complete")

	return multierr.Combine(errs...)
}
