package enums

import "fmt"

// HoldStatus mirrors the payment processor's view of an authorization hold.
type HoldStatus string

const (
	HoldStatusRequiresConfirmation HoldStatus = "requires_confirmation"
	HoldStatusRequiresCapture      HoldStatus = "requires_capture"
	HoldStatusSucceeded            HoldStatus = "succeeded"
	HoldStatusCanceled             HoldStatus = "canceled"

	// HoldStatusCancelPending marks a hold whose processor-side cancellation
	// failed; the local row may disagree with the processor until reconciled.
	HoldStatusCancelPending HoldStatus = "cancel_pending"
)

var validHoldStatuses = []HoldStatus{
	HoldStatusRequiresConfirmation,
	HoldStatusRequiresCapture,
	HoldStatusSucceeded,
	HoldStatusCanceled,
	HoldStatusCancelPending,
}

func (h HoldStatus) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HoldStatus.
func (h HoldStatus) IsValid() bool {
	for _, candidate := range validHoldStatuses {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHoldStatus converts raw input into a HoldStatus.
func ParseHoldStatus(value string) (HoldStatus, error) {
	for _, candidate := range validHoldStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hold status %q", value)
}
