package models

import (
	"time"

	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/google/uuid"
)

// SettlementFailure is the reconciliation queue for transfers that failed
// after a successful capture. Money is with the platform but a payee is
// unpaid, so rows are retried by the settlement worker and are never silently
// dropped.
type SettlementFailure struct {
	ID                   uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID                     `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_settlement_failures_order_leg,priority:1"`
	Leg                  enums.TransferLeg             `gorm:"column:leg;type:text;not null;uniqueIndex:ux_settlement_failures_order_leg,priority:2"`
	DestinationAccountID string                        `gorm:"column:destination_account_id;not null"`
	AmountCents          int                           `gorm:"column:amount_cents;not null"`
	SourceChargeID       string                        `gorm:"column:source_charge_id;not null"`
	TransferGroup        string                        `gorm:"column:transfer_group;not null"`
	Status               enums.SettlementFailureStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Attempts             int                           `gorm:"column:attempts;not null;default:0"`
	LastError            *string                       `gorm:"column:last_error"`
	NextAttemptAt        time.Time                     `gorm:"column:next_attempt_at;not null"`
	ResolvedAt           *time.Time                    `gorm:"column:resolved_at"`
	CreatedAt            time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}
