package inventory

import (
	"errors"
	"fmt"
)

// VFIODriver is the driver every device of a usable group must be bound to.
const VFIODriver = "vfio-pci"

// ErrDeviceNotFound is returned when sysfs has no entry for an address.
var ErrDeviceNotFound = errors.New("pci device not found in sysfs")

// DeviceDetail is what sysfs knows about one PCI function.
type DeviceDetail struct {
	Address    string `json:"address" yaml:"address"`
	Vendor     uint32 `json:"vendor" yaml:"vendor"`
	Device     uint32 `json:"device" yaml:"device"`
	Class      uint32 `json:"class" yaml:"class"`
	Driver     string `json:"driver,omitempty" yaml:"driver,omitempty"`
	IOMMUGroup int    `json:"iommu_group" yaml:"iommu_group"`
}

// Group is one IOMMU group and the addresses of its member devices.
type Group struct {
	ID      int      `json:"id" yaml:"id"`
	Devices []string `json:"devices" yaml:"devices"`
}

// Preflight compares what sysfs reports for a device with the group the
// caller intends to open. The returned warnings are diagnostic only.
func Preflight(detail *DeviceDetail, groupID int) []string {
	var warnings []string
	switch detail.Driver {
	case VFIODriver:
	case "":
		warnings = append(warnings, fmt.Sprintf("%s is not bound to any driver, expected %s", detail.Address, VFIODriver))
	default:
		warnings = append(warnings, fmt.Sprintf("%s is bound to %s, expected %s", detail.Address, detail.Driver, VFIODriver))
	}
	if detail.IOMMUGroup >= 0 && detail.IOMMUGroup != groupID {
		warnings = append(warnings, fmt.Sprintf("%s belongs to IOMMU group %d, not %d", detail.Address, detail.IOMMUGroup, groupID))
	}
	return warnings
}
