package enums

import "fmt"

// PayoutEntityType distinguishes which kind of account a payout belongs to.
type PayoutEntityType string

const (
	PayoutEntityTypeVendor PayoutEntityType = "vendor"
	PayoutEntityTypeDriver PayoutEntityType = "driver"
)

func (p PayoutEntityType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutEntityType.
func (p PayoutEntityType) IsValid() bool {
	return p == PayoutEntityTypeVendor || p == PayoutEntityTypeDriver
}

// ParsePayoutEntityType converts raw input into a PayoutEntityType.
func ParsePayoutEntityType(value string) (PayoutEntityType, error) {
	switch PayoutEntityType(value) {
	case PayoutEntityTypeVendor:
		return PayoutEntityTypeVendor, nil
	case PayoutEntityTypeDriver:
		return PayoutEntityTypeDriver, nil
	}
	return "", fmt.Errorf("invalid payout entity type %q", value)
}
