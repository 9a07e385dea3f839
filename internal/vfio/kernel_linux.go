//go:build linux

package vfio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

type unixKernel struct{}

// NewKernel returns the Kernel backed by real VFIO ioctls.
func NewKernel() Kernel {
	return unixKernel{}
}

func ioctl(fd int, req Request, arg uintptr) (int, error) {
	r1, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return -1, fmt.Errorf("ioctl(%s) on fd %d: %w", req, fd, errno)
	}
	return int(r1), nil
}

// ioctlPtr keeps the uintptr conversion inside the Syscall expression so
// arg stays live and unmoved for the duration of the call.
func ioctlPtr(fd int, req Request, arg unsafe.Pointer) (int, error) {
	r1, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return -1, fmt.Errorf("ioctl(%s) on fd %d: %w", req, fd, errno)
	}
	return int(r1), nil
}

func (unixKernel) Open(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}

func (unixKernel) Close(fd int) error {
	return unix.Close(fd)
}

func (unixKernel) APIVersion(container int) (int, error) {
	return ioctl(container, GetAPIVersion, 0)
}

func (unixKernel) CheckExtension(container int, model IOMMUModel) (bool, error) {
	ret, err := ioctl(container, CheckExtension, uintptr(model))
	if err != nil {
		return false, err
	}
	return ret > 0, nil
}

func (unixKernel) SetIOMMU(container int, model IOMMUModel) error {
	_, err := ioctl(container, SetIOMMU, uintptr(model))
	return err
}

func (unixKernel) GroupStatus(group int) (GroupFlags, error) {
	status := newGroupStatus()
	if _, err := ioctlPtr(group, GroupGetStatus, unsafe.Pointer(status)); err != nil {
		return 0, err
	}
	return status.Flags, nil
}

func (unixKernel) SetContainer(group, container int) error {
	fd := int32(container)
	_, err := ioctlPtr(group, GroupSetContainer, unsafe.Pointer(&fd))
	return err
}

func (unixKernel) DeviceFD(group int, name string) (int, error) {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	return ioctlPtr(group, GroupGetDeviceFD, unsafe.Pointer(p))
}

func (unixKernel) DeviceInfo(device int) (DeviceInfo, error) {
	info := newDeviceInfo()
	if _, err := ioctlPtr(device, DeviceGetInfo, unsafe.Pointer(info)); err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		Flags:      info.Flags,
		NumRegions: info.NumRegions,
		NumIRQs:    info.NumIRQs,
	}, nil
}

func (unixKernel) RegionInfo(device int, index uint32) (RegionInfo, error) {
	info := newRegionInfo(index)
	if _, err := ioctlPtr(device, DeviceGetRegionInfo, unsafe.Pointer(info)); err != nil {
		return RegionInfo{}, err
	}
	return RegionInfo{
		Index:  info.Index,
		Flags:  info.Flags,
		Size:   info.Size,
		Offset: info.Offset,
	}, nil
}

func (unixKernel) Mmap(fd int, offset int64, length int) ([]byte, error) {
	b, err := unix.Mmap(fd, offset, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return b, nil
}

func (unixKernel) Munmap(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
