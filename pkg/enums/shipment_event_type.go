package enums

import "fmt"

// ShipmentEventType identifies a shipment lifecycle milestone.
type ShipmentEventType string

const (
	EventPickupConfirmed   ShipmentEventType = "PICKUP_CONFIRMED"
	EventPodConfirmed      ShipmentEventType = "POD_CONFIRMED"
	EventClaimWindowClosed ShipmentEventType = "CLAIM_WINDOW_CLOSED"
)

// validShipmentEventTypes holds the canonical lifecycle ordering:
// pickup precedes proof-of-delivery precedes claim-window close.
var validShipmentEventTypes = []ShipmentEventType{
	EventPickupConfirmed,
	EventPodConfirmed,
	EventClaimWindowClosed,
}

// String implements fmt.Stringer.
func (e ShipmentEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known ShipmentEventType.
func (e ShipmentEventType) IsValid() bool {
	for _, candidate := range validShipmentEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// Sequence returns the 1-based position of the event in the canonical
// lifecycle ordering, or 0 for unknown events.
func (e ShipmentEventType) Sequence() int {
	for i, candidate := range validShipmentEventTypes {
		if candidate == e {
			return i + 1
		}
	}
	return 0
}

// ShipmentEventTypes returns the canonical lifecycle ordering.
func ShipmentEventTypes() []ShipmentEventType {
	ordered := make([]ShipmentEventType, len(validShipmentEventTypes))
	copy(ordered, validShipmentEventTypes)
	return ordered
}

// ParseShipmentEventType converts raw input into a ShipmentEventType.
func ParseShipmentEventType(value string) (ShipmentEventType, error) {
	for _, candidate := range validShipmentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment event type %q", value)
}
