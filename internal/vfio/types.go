package vfio

import (
	"strings"
	"unsafe"
)

// IOMMUModel is a VFIO extension id accepted by VFIO_CHECK_EXTENSION and
// VFIO_SET_IOMMU.
type IOMMUModel uint32

const (
	Type1IOMMU   IOMMUModel = 1
	Type1v2IOMMU IOMMUModel = 3
	NoIOMMU      IOMMUModel = 8
)

func (m IOMMUModel) String() string {
	switch m {
	case Type1IOMMU:
		return "VFIO_TYPE1_IOMMU"
	case Type1v2IOMMU:
		return "VFIO_TYPE1v2_IOMMU"
	case NoIOMMU:
		return "VFIO_NOIOMMU_IOMMU"
	default:
		return "VFIO_IOMMU_UNKNOWN"
	}
}

// GroupFlags as reported by VFIO_GROUP_GET_STATUS.
type GroupFlags uint32

const (
	GroupFlagViable GroupFlags = 1 << iota
	GroupFlagContainerSet
)

func (f GroupFlags) String() string {
	return flagNames(uint32(f), []string{"VIABLE", "CONTAINER_SET"})
}

// DeviceFlags as reported by VFIO_DEVICE_GET_INFO.
type DeviceFlags uint32

const (
	DeviceFlagReset DeviceFlags = 1 << iota
	DeviceFlagPCI
	DeviceFlagPlatform
	DeviceFlagAMBA
	DeviceFlagCCW
	DeviceFlagAP
	DeviceFlagFSLMC
	DeviceFlagCaps
)

func (f DeviceFlags) String() string {
	return flagNames(uint32(f), []string{"RESET", "PCI", "PLATFORM", "AMBA", "CCW", "AP", "FSL_MC", "CAPS"})
}

// RegionFlags as reported by VFIO_DEVICE_GET_REGION_INFO.
type RegionFlags uint32

const (
	RegionFlagRead RegionFlags = 1 << iota
	RegionFlagWrite
	RegionFlagMmap
	RegionFlagCaps
)

func (f RegionFlags) String() string {
	return flagNames(uint32(f), []string{"READ", "WRITE", "MMAP", "CAPS"})
}

// Mappable reports whether the region may be mmapped through the device fd.
func (f RegionFlags) Mappable() bool {
	return f&RegionFlagMmap != 0
}

func flagNames(v uint32, names []string) string {
	var set []string
	for i, name := range names {
		if v&(1<<uint(i)) != 0 {
			set = append(set, name)
		}
	}
	if len(set) == 0 {
		return "NONE"
	}
	return strings.Join(set, "|")
}

// groupStatus mirrors struct vfio_group_status.
type groupStatus struct {
	Argsz uint32
	Flags GroupFlags
}

func newGroupStatus() *groupStatus {
	return &groupStatus{Argsz: uint32(unsafe.Sizeof(groupStatus{}))}
}

// deviceInfo mirrors struct vfio_device_info.
type deviceInfo struct {
	Argsz      uint32
	Flags      DeviceFlags
	NumRegions uint32
	NumIRQs    uint32
	CapOffset  uint32
	pad        uint32
}

func newDeviceInfo() *deviceInfo {
	return &deviceInfo{Argsz: uint32(unsafe.Sizeof(deviceInfo{}))}
}

// regionInfo mirrors struct vfio_region_info.
type regionInfo struct {
	Argsz     uint32
	Flags     RegionFlags
	Index     uint32
	CapOffset uint32
	Size      uint64
	Offset    uint64
}

func newRegionInfo(index uint32) *regionInfo {
	return &regionInfo{
		Argsz: uint32(unsafe.Sizeof(regionInfo{})),
		Index: index,
	}
}

// DeviceInfo is the device metadata returned to callers.
type DeviceInfo struct {
	Flags      DeviceFlags
	NumRegions uint32
	NumIRQs    uint32
}

// RegionInfo describes one region of a device. Offset is the mmap offset
// into the device fd, not a bus address.
type RegionInfo struct {
	Index  uint32
	Flags  RegionFlags
	Size   uint64
	Offset uint64
}
