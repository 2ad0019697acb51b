package models

import (
	"time"

	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/google/uuid"
)

// CheckoutSession is the single-owner checkout token: at most one active
// session per customer, claiming one vendor basket. It replaces any ambient
// "active payment form" state.
type CheckoutSession struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID                   `gorm:"column:customer_id;type:uuid;not null"`
	VendorID        uuid.UUID                   `gorm:"column:vendor_id;type:uuid;not null"`
	OrderID         *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	PaymentIntentID *string                     `gorm:"column:payment_intent_id"`
	Status          enums.CheckoutSessionStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ExpiresAt       time.Time                   `gorm:"column:expires_at;not null"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
