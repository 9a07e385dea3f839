package vfio

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/vfio-probe/internal/pci"
)

// Device is an open VFIO device fd.
type Device struct {
	k     Kernel
	log   logrus.FieldLogger
	fd    int
	addr  pci.Address
	group *Group

	info     *DeviceInfo
	mappings []*Mapping
}

func (d *Device) Address() pci.Address { return d.addr }

func (d *Device) FD() int { return d.fd }

// Info queries the device flags and its region and interrupt counts.
func (d *Device) Info() (DeviceInfo, error) {
	info, err := d.k.DeviceInfo(d.fd)
	if err != nil {
		return DeviceInfo{}, newError(DeviceInfoUnavailable, "failed to get device info", err)
	}
	d.info = &info
	d.log.WithFields(logrus.Fields{
		"regions": info.NumRegions,
		"irqs":    info.NumIRQs,
		"flags":   info.Flags,
	}).Debug("device info")
	return info, nil
}

// Region queries the geometry of region index. The result is not cached;
// querying the same index twice asks the kernel twice.
func (d *Device) Region(index uint32) (RegionInfo, error) {
	op := fmt.Sprintf("region %d", index)
	if d.info != nil && index >= d.info.NumRegions {
		return RegionInfo{}, newError(RegionQueryFailed, op,
			fmt.Errorf("index out of range, device has %d regions", d.info.NumRegions))
	}
	r, err := d.k.RegionInfo(d.fd, index)
	if err != nil {
		return RegionInfo{}, newError(RegionQueryFailed, op+": failed to get info", err)
	}
	d.log.WithFields(logrus.Fields{
		"region": index,
		"size":   r.Size,
		"offset": r.Offset,
		"flags":  r.Flags,
	}).Debug("region info")
	return r, nil
}

// Map creates a read-only shared mapping of exactly r.Size bytes at r.Offset
// of the device fd. The caller must Close the mapping; closing the device
// also releases any mapping still open.
func (d *Device) Map(r RegionInfo) (*Mapping, error) {
	op := fmt.Sprintf("mmap region %d", r.Index)
	if d.fd < 0 {
		return nil, newError(MappingFailed, op, errors.New("device is closed"))
	}
	if !r.Flags.Mappable() {
		return nil, newError(MappingFailed, op, fmt.Errorf("region flags %s do not allow mmap", r.Flags))
	}
	if r.Size == 0 || r.Size > math.MaxInt {
		return nil, newError(MappingFailed, op, fmt.Errorf("unmappable region size %#x", r.Size))
	}
	if r.Offset > math.MaxInt64 {
		return nil, newError(MappingFailed, op, fmt.Errorf("unmappable region offset %#x", r.Offset))
	}

	data, err := d.k.Mmap(d.fd, int64(r.Offset), int(r.Size))
	if err != nil {
		return nil, newError(MappingFailed, op, err)
	}
	if uint64(len(data)) != r.Size {
		_ = d.k.Munmap(data)
		return nil, newError(MappingFailed, op,
			fmt.Errorf("mapped %d bytes, region advertises %d", len(data), r.Size))
	}

	m := &Mapping{dev: d, region: r, data: data}
	d.mappings = append(d.mappings, m)
	d.log.WithFields(logrus.Fields{"region": r.Index, "size": r.Size}).Debug("region mapped")
	return m, nil
}

func (d *Device) forget(m *Mapping) {
	for i, o := range d.mappings {
		if o == m {
			d.mappings = append(d.mappings[:i], d.mappings[i+1:]...)
			return
		}
	}
}

// Close unmaps any mapping still open and releases the device fd.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	var errs []error
	for len(d.mappings) > 0 {
		if err := d.mappings[len(d.mappings)-1].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.k.Close(d.fd); err != nil {
		errs = append(errs, fmt.Errorf("close device %s: %w", d.addr, err))
	}
	d.fd = -1
	return errors.Join(errs...)
}
