package models

import (
	"time"

	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/google/uuid"
)

// PaymentHold records the manual-capture authorization opened for an order.
// Exactly one hold exists per order; capture is one-way and idempotent by
// the processor intent id.
type PaymentHold struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID        `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payment_holds_order"`
	PaymentIntentID  string           `gorm:"column:payment_intent_id;not null;uniqueIndex:ux_payment_holds_intent"`
	AmountCents      int              `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency   `gorm:"column:currency;type:text;not null;default:'usd'"`
	TransferGroup    string           `gorm:"column:transfer_group;not null"`
	Status           enums.HoldStatus `gorm:"column:status;type:text;not null;default:'requires_confirmation'"`
	CapturedChargeID *string          `gorm:"column:captured_charge_id"`
	CapturedAt       *time.Time       `gorm:"column:captured_at"`
	CanceledAt       *time.Time       `gorm:"column:canceled_at"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
