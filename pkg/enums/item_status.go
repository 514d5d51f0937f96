package enums

import "fmt"

// ItemStatus mirrors the availability enum owned by the listing service. The
// order service never writes it directly; transitions go through the listing
// reservation endpoint.
type ItemStatus string

const (
	ItemStatusActive   ItemStatus = "active"
	ItemStatusReserved ItemStatus = "reserved"
	ItemStatusSold     ItemStatus = "sold"
	ItemStatusHidden   ItemStatus = "hidden"
)

var validItemStatuses = []ItemStatus{
	ItemStatusActive,
	ItemStatusReserved,
	ItemStatusSold,
	ItemStatusHidden,
}

// IsValid reports whether the value matches the listing availability enum.
func (s ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseItemStatus converts raw input into ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
