package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/Shahir-47/sarva-backend/pkg/types"
)

// Order is the per-vendor order produced when a vendor basket checks out.
// The party snapshots are frozen at creation so profile edits never change
// historical orders.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	VendorID         uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	DriverID         *uuid.UUID          `gorm:"column:driver_id;type:uuid"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'usd'"`
	SubtotalCents    int                 `gorm:"column:subtotal_cents;not null"`
	TaxCents         int                 `gorm:"column:tax_cents;not null;default:0"`
	ServiceFeeCents  int                 `gorm:"column:service_fee_cents;not null;default:0"`
	DeliveryFeeCents int                 `gorm:"column:delivery_fee_cents;not null;default:0"`
	TipCents         int                 `gorm:"column:tip_cents;not null;default:0"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	PaymentIntentID  *string             `gorm:"column:payment_intent_id"`
	VendorSnapshot   types.PartySnapshot `gorm:"column:vendor_snapshot;type:jsonb;serializer:json"`
	CustomerSnapshot types.PartySnapshot `gorm:"column:customer_snapshot;type:jsonb;serializer:json"`
	CancelledReason  *string             `gorm:"column:cancelled_reason"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	LineItems        []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Hold             *PaymentHold        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Transfers        []TransferRecord    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Amounts assembles the money breakdown stored on the order.
func (o Order) Amounts() types.OrderAmounts {
	return types.OrderAmounts{
		SubtotalCents:    o.SubtotalCents,
		TaxCents:         o.TaxCents,
		ServiceFeeCents:  o.ServiceFeeCents,
		DeliveryFeeCents: o.DeliveryFeeCents,
		TipCents:         o.TipCents,
		TotalCents:       o.TotalCents,
	}
}
