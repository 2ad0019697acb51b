package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
)

// Repository persists holds, transfer records and the reconciliation queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHold(ctx context.Context, hold *models.PaymentHold) (*models.PaymentHold, error)
	FindHoldByIntent(ctx context.Context, paymentIntentID string) (*models.PaymentHold, error)
	FindHoldByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error)
	UpdateHoldStatus(ctx context.Context, id uuid.UUID, status enums.HoldStatus, capturedChargeID *string) error
	CreateTransferRecord(ctx context.Context, record *models.TransferRecord) (*models.TransferRecord, error)
	FindTransferByOrderAndLeg(ctx context.Context, orderID uuid.UUID, leg enums.TransferLeg) (*models.TransferRecord, error)
	CreateFailure(ctx context.Context, failure *models.SettlementFailure) (*models.SettlementFailure, error)
	FindDueFailures(ctx context.Context, limit int) ([]models.SettlementFailure, error)
	MarkFailureResolved(ctx context.Context, id uuid.UUID) error
	MarkFailureAttempt(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time, abandoned bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateHold(ctx context.Context, hold *models.PaymentHold) (*models.PaymentHold, error) {
	if err := r.db.WithContext(ctx).Create(hold).Error; err != nil {
		return nil, err
	}
	return hold, nil
}

func (r *repository) FindHoldByIntent(ctx context.Context, paymentIntentID string) (*models.PaymentHold, error) {
	var hold models.PaymentHold
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&hold).Error
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) FindHoldByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error) {
	var hold models.PaymentHold
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&hold).Error
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) UpdateHoldStatus(ctx context.Context, id uuid.UUID, status enums.HoldStatus, capturedChargeID *string) error {
	now := time.Now().UTC()
	updates := map[string]any{"status": status, "updated_at": now}
	if capturedChargeID != nil {
		updates["captured_charge_id"] = *capturedChargeID
		updates["captured_at"] = now
	}
	if status == enums.HoldStatusCanceled {
		updates["canceled_at"] = now
	}
	return r.db.WithContext(ctx).
		Model(&models.PaymentHold{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CreateTransferRecord(ctx context.Context, record *models.TransferRecord) (*models.TransferRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) FindTransferByOrderAndLeg(ctx context.Context, orderID uuid.UUID, leg enums.TransferLeg) (*models.TransferRecord, error) {
	var record models.TransferRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND leg = ?", orderID, leg).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) CreateFailure(ctx context.Context, failure *models.SettlementFailure) (*models.SettlementFailure, error) {
	if err := r.db.WithContext(ctx).Create(failure).Error; err != nil {
		return nil, err
	}
	return failure, nil
}

func (r *repository) FindDueFailures(ctx context.Context, limit int) ([]models.SettlementFailure, error) {
	var failures []models.SettlementFailure
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", enums.SettlementFailureStatusPending, time.Now().UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&failures).Error
	if err != nil {
		return nil, err
	}
	return failures, nil
}

func (r *repository) MarkFailureResolved(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.SettlementFailure{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      enums.SettlementFailureStatusResolved,
			"resolved_at": now,
			"updated_at":  now,
		}).Error
}

func (r *repository) MarkFailureAttempt(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time, abandoned bool) error {
	status := enums.SettlementFailureStatusPending
	if abandoned {
		status = enums.SettlementFailureStatusAbandoned
	}
	return r.db.WithContext(ctx).
		Model(&models.SettlementFailure{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
			"updated_at":      time.Now().UTC(),
		}).Error
}
