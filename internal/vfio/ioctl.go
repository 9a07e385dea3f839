package vfio

// ioctl request encoding from include/uapi/asm-generic/ioctl.h
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone = 0
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

// ioNone builds an _IO request. Every VFIO ioctl is declared with _IO and carries
// its argument size inside the argument block instead of the request number.
func ioNone(typ, nr uintptr) uintptr {
	return ioc(iocNone, typ, nr, 0)
}

// VFIO ioctl type and base from include/uapi/linux/vfio.h
const (
	vfioType = ';'
	vfioBase = 100
)

// APIVersion is the only VFIO API version the kernel has ever reported.
const APIVersion = 0

// Request identifies a VFIO ioctl, _IO(';', 100+n).
type Request uintptr

const (
	// /dev/vfio/vfio
	GetAPIVersion  Request = 0x3b64
	CheckExtension Request = 0x3b65
	SetIOMMU       Request = 0x3b66
	// /dev/vfio/<group>
	GroupGetStatus    Request = 0x3b67
	GroupSetContainer Request = 0x3b68
	GroupGetDeviceFD  Request = 0x3b6a
	// device fd
	DeviceGetInfo       Request = 0x3b6b
	DeviceGetRegionInfo Request = 0x3b6c
)

var requestNames = map[Request]string{
	GetAPIVersion:       "VFIO_GET_API_VERSION",
	CheckExtension:      "VFIO_CHECK_EXTENSION",
	SetIOMMU:            "VFIO_SET_IOMMU",
	GroupGetStatus:      "VFIO_GROUP_GET_STATUS",
	GroupSetContainer:   "VFIO_GROUP_SET_CONTAINER",
	GroupGetDeviceFD:    "VFIO_GROUP_GET_DEVICE_FD",
	DeviceGetInfo:       "VFIO_DEVICE_GET_INFO",
	DeviceGetRegionInfo: "VFIO_DEVICE_GET_REGION_INFO",
}

func (r Request) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return "VFIO_UNKNOWN"
}
