package enums

import "fmt"

// TransferLeg tags which payee a settlement transfer belongs to. The tag is
// set when the transfer record is created and is never inferred from which
// fields happen to be populated.
type TransferLeg string

const (
	TransferLegVendor TransferLeg = "vendor"
	TransferLegDriver TransferLeg = "driver"
)

func (t TransferLeg) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferLeg.
func (t TransferLeg) IsValid() bool {
	return t == TransferLegVendor || t == TransferLegDriver
}

// ParseTransferLeg converts raw input into a TransferLeg.
func ParseTransferLeg(value string) (TransferLeg, error) {
	switch TransferLeg(value) {
	case TransferLegVendor:
		return TransferLegVendor, nil
	case TransferLegDriver:
		return TransferLegDriver, nil
	}
	return "", fmt.Errorf("invalid transfer leg %q", value)
}
