package meta

import (
	"fmt"
	"strings"
)

// Address identifies a device within a hub topology: a route (the Name of
// the hub that owns the device, possibly a chain through remote hubs) and
// a device Name local to that hub.
type Address struct {
	Route  Name
	Device Name
}

// NewAddress builds an Address from a route and device Name.
func NewAddress(route, device Name) Address {
	return Address{Route: route, Device: device}
}

// String renders the Address in its canonical "route::device" form.
func (a Address) String() string {
	return a.Route.String() + "::" + a.Device.String()
}

// ParseAddress parses the canonical "route::device" textual form. A
// malformed address (missing or duplicated "::") is reported as a
// ErrMalformedAddress error, distinct from Name parse errors.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 2 {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	route, err := ParseName(parts[0])
	if err != nil {
		return Address{}, fmt.Errorf("%w: route: %v", ErrMalformedAddress, err)
	}
	device, err := ParseName(parts[1])
	if err != nil {
		return Address{}, fmt.Errorf("%w: device: %v", ErrMalformedAddress, err)
	}
	return Address{Route: route, Device: device}, nil
}

// ErrMalformedAddress is returned by ParseAddress for text that isn't a
// valid "route::device" pair. Kept as a distinct sentinel so callers at the
// hub boundary can map it to the NotFound/Validation error kind precisely.
var ErrMalformedAddress = fmt.Errorf("meta: malformed address")

// Equal reports structural equality between two addresses.
func (a Address) Equal(other Address) bool {
	return a.Route.Equal(other.Route) && a.Device.Equal(other.Device)
}

// WithDevice returns a copy of the address with a different device Name,
// same route. Used when resolving addresses for a device's children.
func (a Address) WithDevice(device Name) Address {
	return Address{Route: a.Route, Device: device}
}
