package models

import (
	"time"

	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/google/uuid"
)

// TransferRecord is one payout leg of a settled order. The leg tag is written
// at creation time; code must branch on it, never on populated fields. Every
// transfer references the captured charge, not the raw hold.
type TransferRecord struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_transfer_records_order_leg,priority:1"`
	Leg                  enums.TransferLeg `gorm:"column:leg;type:text;not null;uniqueIndex:ux_transfer_records_order_leg,priority:2"`
	DestinationAccountID string            `gorm:"column:destination_account_id;not null"`
	AmountCents          int               `gorm:"column:amount_cents;not null"`
	SourceChargeID       string            `gorm:"column:source_charge_id;not null"`
	TransferGroup        string            `gorm:"column:transfer_group;not null"`
	StripeTransferID     string            `gorm:"column:stripe_transfer_id;not null"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
}
