//go:build linux

package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/prometheus/procfs/sysfs"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/vfio-probe/internal/pci"
)

// Inventory reads PCI and IOMMU group information from a sysfs mount.
type Inventory struct {
	log   logrus.FieldLogger
	fs    sysfs.FS
	mount string
}

// NewInventory opens the sysfs tree mounted at mount.
func NewInventory(log logrus.FieldLogger, mount string) (*Inventory, error) {
	fs, err := sysfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs: %w", err)
	}
	return &Inventory{log: log, fs: fs, mount: mount}, nil
}

func (i *Inventory) devicePath(addr string, elem ...string) string {
	return filepath.Join(append([]string{i.mount, "bus", "pci", "devices", addr}, elem...)...)
}

// Device describes addr. Driver is empty when the device is unbound and
// IOMMUGroup is -1 when the device has no group.
func (i *Inventory) Device(addr pci.Address) (*DeviceDetail, error) {
	name := addr.String()
	log := i.log.WithField("device", name)

	if _, err := os.Stat(i.devicePath(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrDeviceNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}

	devices, err := i.fs.PciDevices()
	if err != nil {
		log.WithError(err).Debug("reading pci devices failed")
		return nil, fmt.Errorf("failed to read pci devices: %w", err)
	}

	for _, device := range devices {
		if !sameLocation(device.Location, addr) {
			continue
		}
		detail := &DeviceDetail{
			Address:    name,
			Vendor:     device.Vendor,
			Device:     device.Device,
			Class:      device.Class,
			IOMMUGroup: -1,
		}
		if driver, err := os.Readlink(i.devicePath(name, "driver")); err == nil {
			detail.Driver = filepath.Base(driver)
		}
		if group, err := i.groupOf(name); err == nil {
			detail.IOMMUGroup = group
		} else {
			log.WithError(err).Debug("no iommu group link")
		}
		return detail, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrDeviceNotFound)
}

// sameLocation compares field by field; procfs names locations with a colon
// before the function rather than a dot.
func sameLocation(loc sysfs.PciDeviceLocation, addr pci.Address) bool {
	return loc.Segment == int(addr.Domain) &&
		loc.Bus == int(addr.Bus) &&
		loc.Device == int(addr.Slot) &&
		loc.Function == int(addr.Function)
}

func (i *Inventory) groupOf(name string) (int, error) {
	link, err := os.Readlink(i.devicePath(name, "iommu_group"))
	if err != nil {
		return -1, err
	}
	group, err := strconv.Atoi(filepath.Base(link))
	if err != nil {
		return -1, fmt.Errorf("failed to parse IOMMU group number %q: %w", filepath.Base(link), err)
	}
	return group, nil
}

// Groups lists every IOMMU group under kernel/iommu_groups, sorted by id.
// An absent directory means the IOMMU is disabled and yields no groups.
func (i *Inventory) Groups() ([]Group, error) {
	root := filepath.Join(i.mount, "kernel", "iommu_groups")
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read IOMMU groups: %w", err)
	}

	var groups []Group
	for _, entry := range entries {
		id, err := strconv.Atoi(entry.Name())
		if err != nil {
			i.log.WithField("entry", entry.Name()).Warn("ignoring invalid IOMMU group")
			continue
		}
		members, err := os.ReadDir(filepath.Join(root, entry.Name(), "devices"))
		if err != nil {
			return nil, fmt.Errorf("failed to read devices of IOMMU group %d: %w", id, err)
		}
		g := Group{ID: id}
		for _, m := range members {
			g.Devices = append(g.Devices, m.Name())
		}
		sort.Strings(g.Devices)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].ID < groups[b].ID })
	return groups, nil
}

// Driver returns the driver bound to the device named addr, or "".
func (i *Inventory) Driver(addr string) string {
	link, err := os.Readlink(i.devicePath(addr, "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(link)
}

