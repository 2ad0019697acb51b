package settlement

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	retry "github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/metrics"
)

const retryJobInnerAttempts = 3

// RetryJob drains the settlement failure queue. Each run picks up the due
// rows, replays the transfer with the same idempotency key the original
// attempt used, and either resolves the row or pushes it further out with
// exponential backoff until the attempt cap abandons it.
type RetryJob struct {
	client  PaymentsClient
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
	cfg     config.SettlementConfig
	now     func() time.Time
}

// NewRetryJob wires the reconciliation job for the background worker.
func NewRetryJob(
	client PaymentsClient,
	repo Repository,
	logg *logger.Logger,
	m *metrics.SettlementMetrics,
	cfg config.SettlementConfig,
) (*RetryJob, error) {
	if client == nil {
		return nil, fmt.Errorf("payments client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &RetryJob{
		client:  client,
		repo:    repo,
		logg:    logg,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

func (j *RetryJob) Name() string { return "settlement-retry" }

func (j *RetryJob) Run(ctx context.Context) error {
	logCtx := j.logg.WithField(ctx, "job", j.Name())

	due, err := j.repo.FindDueFailures(logCtx, j.cfg.RetryBatchSize)
	if err != nil {
		return fmt.Errorf("list due settlement failures: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var errs error
	resolved := 0
	for i := range due {
		if err := j.retryFailure(logCtx, &due[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		resolved++
	}

	reportCtx := j.logg.WithFields(logCtx, map[string]any{
		"due":      len(due),
		"resolved": resolved,
	})
	j.logg.Info(reportCtx, "settlement retry cycle complete")
	return errs
}

func (j *RetryJob) retryFailure(ctx context.Context, failure *models.SettlementFailure) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"order_id": failure.OrderID,
		"leg":      string(failure.Leg),
		"attempts": failure.Attempts,
	})

	created, err := j.replayTransfer(logCtx, failure)
	if err != nil {
		return j.recordAttempt(logCtx, failure, err)
	}

	record := &models.TransferRecord{
		OrderID:              failure.OrderID,
		Leg:                  failure.Leg,
		DestinationAccountID: failure.DestinationAccountID,
		AmountCents:          failure.AmountCents,
		SourceChargeID:       failure.SourceChargeID,
		TransferGroup:        failure.TransferGroup,
		StripeTransferID:     created.ID,
	}
	if _, err := j.repo.CreateTransferRecord(logCtx, record); err != nil {
		return fmt.Errorf("record retried transfer for order %s: %w", failure.OrderID, err)
	}
	if err := j.repo.MarkFailureResolved(logCtx, failure.ID); err != nil {
		return fmt.Errorf("resolve settlement failure %s: %w", failure.ID, err)
	}

	j.metrics.IncTransfer(string(failure.Leg), "success")
	j.metrics.IncRetryResolved()
	j.logg.Info(logCtx, "queued settlement transfer completed")
	return nil
}

// replayTransfer reissues the transfer with the original deterministic key,
// retrying transient transport errors a few times within the cycle.
func (j *RetryJob) replayTransfer(ctx context.Context, failure *models.SettlementFailure) (*stripe.Transfer, error) {
	params := &stripe.TransferParams{
		Amount:            stripe.Int64(int64(failure.AmountCents)),
		Currency:          stripe.String(j.currency()),
		Destination:       stripe.String(failure.DestinationAccountID),
		SourceTransaction: stripe.String(failure.SourceChargeID),
		TransferGroup:     stripe.String(failure.TransferGroup),
	}
	params.IdempotencyKey = stripe.String(TransferIdempotencyKey(failure.OrderID, failure.DestinationAccountID))

	backoff := retry.WithMaxRetries(retryJobInnerAttempts, retry.NewExponential(j.cfg.RetryBaseBackoff))
	var created *stripe.Transfer
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		transfer, err := j.client.CreateTransfer(ctx, params)
		if err != nil {
			if isRetryableTransferError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		created = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// recordAttempt bumps the failure row. Rows that exhaust the attempt cap are
// abandoned and left for manual reconciliation instead of retrying forever.
func (j *RetryJob) recordAttempt(ctx context.Context, failure *models.SettlementFailure, cause error) error {
	attempts := failure.Attempts + 1
	abandoned := attempts >= j.cfg.RetryMaxAttempts

	delay := j.cfg.RetryBaseBackoff
	for i := 0; i < attempts && delay < time.Hour; i++ {
		delay *= 2
	}
	nextAttempt := j.now().Add(delay)

	if err := j.repo.MarkFailureAttempt(ctx, failure.ID, attempts, cause.Error(), nextAttempt, abandoned); err != nil {
		return fmt.Errorf("update settlement failure %s: %w", failure.ID, err)
	}

	j.metrics.IncTransfer(string(failure.Leg), "failure")
	if abandoned {
		j.logg.Error(ctx, "settlement transfer abandoned after max attempts", cause)
	} else {
		j.logg.Warn(j.logg.WithField(ctx, "next_attempt_at", nextAttempt), "settlement transfer retry failed")
	}
	return fmt.Errorf("retry transfer for order %s leg %s: %w", failure.OrderID, failure.Leg, cause)
}

func (j *RetryJob) currency() string {
	if j.cfg.Currency != "" {
		return j.cfg.Currency
	}
	return string(enums.CurrencyUSD)
}

// isRetryableTransferError treats processor-side and transport faults as
// retryable. Card or balance errors will not clear on their own within a
// cycle, so they fall through to the queue's longer backoff.
func isRetryableTransferError(err error) bool {
	var stripeErr *stripe.Error
	if stderrors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeAPI:
			return true
		}
		return stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429
	}
	return true
}
