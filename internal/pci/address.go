package pci

import (
	"fmt"
	"regexp"
	"strconv"
)

// Address is a PCI function address, segment:bus:device.function.
type Address struct {
	Domain   uint16
	Bus      uint8
	Slot     uint8
	Function uint8
}

// String formats the address the way the kernel names devices, e.g.
// 0000:03:00.0.
func (a Address) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%d", a.Domain, a.Bus, a.Slot, a.Function)
}

var addressPattern = regexp.MustCompile(`^([0-9a-fA-F]{1,4}):([0-9a-fA-F]{1,2}):([0-9a-fA-F]{1,2})\.([0-9]+)$`)

// ParseAddress parses "ssss:bb:dd.f". All four fields are required; the
// device number must fit in 5 bits and the function in 3.
func ParseAddress(s string) (Address, error) {
	m := addressPattern.FindStringSubmatch(s)
	if m == nil {
		return Address{}, fmt.Errorf("malformed PCI address %q, expected ssss:bb:dd.f", s)
	}

	domain, _ := strconv.ParseUint(m[1], 16, 16)
	bus, _ := strconv.ParseUint(m[2], 16, 8)
	slot, _ := strconv.ParseUint(m[3], 16, 8)
	fn, err := strconv.ParseUint(m[4], 10, 8)
	if err != nil {
		return Address{}, fmt.Errorf("invalid function in PCI address %q: %w", s, err)
	}

	if slot > 0x1f {
		return Address{}, fmt.Errorf("device number %#x out of range in PCI address %q", slot, s)
	}
	if fn > 7 {
		return Address{}, fmt.Errorf("function %d out of range in PCI address %q", fn, s)
	}

	return Address{
		Domain:   uint16(domain),
		Bus:      uint8(bus),
		Slot:     uint8(slot),
		Function: uint8(fn),
	}, nil
}
