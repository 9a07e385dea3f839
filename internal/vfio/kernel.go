package vfio

// Kernel is the set of system calls the bring-up sequence depends on. The
// default implementation issues real ioctls; tests substitute a fake.
type Kernel interface {
	Open(path string) (int, error)
	Close(fd int) error

	APIVersion(container int) (int, error)
	CheckExtension(container int, model IOMMUModel) (bool, error)
	SetIOMMU(container int, model IOMMUModel) error

	GroupStatus(group int) (GroupFlags, error)
	SetContainer(group, container int) error
	DeviceFD(group int, name string) (int, error)

	DeviceInfo(device int) (DeviceInfo, error)
	RegionInfo(device int, index uint32) (RegionInfo, error)

	// Mmap maps length bytes of fd at offset read-only and shared.
	Mmap(fd int, offset int64, length int) ([]byte, error)
	Munmap(b []byte) error
}
