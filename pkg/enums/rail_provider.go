package enums

import "fmt"

// RailProvider identifies the settlement provider behind a payment rail.
type RailProvider string

const (
	RailInternalLedger RailProvider = "INTERNAL_LEDGER"
	RailStripe         RailProvider = "STRIPE"
	RailACH            RailProvider = "ACH"
	RailWire           RailProvider = "WIRE"
)

var validRailProviders = []RailProvider{
	RailInternalLedger,
	RailStripe,
	RailACH,
	RailWire,
}

// String implements fmt.Stringer.
func (p RailProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known RailProvider.
func (p RailProvider) IsValid() bool {
	for _, candidate := range validRailProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseRailProvider converts raw input into a RailProvider.
func ParseRailProvider(value string) (RailProvider, error) {
	for _, candidate := range validRailProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rail provider %q", value)
}
