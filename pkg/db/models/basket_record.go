package models

import (
	"time"

	"github.com/google/uuid"
)

// BasketLine is one selected item inside a vendor's basket.
type BasketLine struct {
	ItemID         uuid.UUID `json:"item_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	StockUnits     *int      `json:"stock_units,omitempty"`
	Quantity       int       `json:"quantity"`
}

// BasketDocument maps vendor id to that vendor's basket lines. A vendor key
// with no lines is deleted rather than kept empty.
type BasketDocument map[uuid.UUID][]BasketLine

// BasketRecord stores a customer's entire basket document under one row, so
// every mutation is a read-modify-write of the whole mapping and concurrent
// readers always observe a consistent snapshot.
type BasketRecord struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID      `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_basket_records_customer"`
	Document   BasketDocument `gorm:"column:document;type:jsonb;serializer:json"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
