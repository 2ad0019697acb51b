package enums

import "fmt"

// SettlementFailureStatus tracks entries in the transfer reconciliation queue.
type SettlementFailureStatus string

const (
	SettlementFailureStatusPending   SettlementFailureStatus = "pending"
	SettlementFailureStatusResolved  SettlementFailureStatus = "resolved"
	SettlementFailureStatusAbandoned SettlementFailureStatus = "abandoned"
)

var validSettlementFailureStatuses = []SettlementFailureStatus{
	SettlementFailureStatusPending,
	SettlementFailureStatusResolved,
	SettlementFailureStatusAbandoned,
}

func (s SettlementFailureStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementFailureStatus.
func (s SettlementFailureStatus) IsValid() bool {
	for _, candidate := range validSettlementFailureStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementFailureStatus converts raw input into a SettlementFailureStatus.
func ParseSettlementFailureStatus(value string) (SettlementFailureStatus, error) {
	for _, candidate := range validSettlementFailureStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement failure status %q", value)
}
