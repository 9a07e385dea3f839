package probe

import (
	"golang.org/x/sys/unix"

	"github.com/deploymenttheory/vfio-probe/internal/vfio"
)

// stubKernel answers for group 26 holding 0000:03:00.0 with two regions:
// a mappable 4 KiB BAR0 and an unmappable config space.
type stubKernel struct {
	nextFD     int
	viable     bool
	attached   bool
	regionErrs map[uint32]error
	opened     int
	closed     int
}

func newStubKernel() *stubKernel {
	return &stubKernel{nextFD: 3, viable: true, regionErrs: map[uint32]error{}}
}

func (s *stubKernel) fd() int {
	s.opened++
	s.nextFD++
	return s.nextFD
}

func (s *stubKernel) Open(path string) (int, error) {
	if path != vfio.DefaultContainerPath && path != "/dev/vfio/26" {
		return -1, unix.ENOENT
	}
	return s.fd(), nil
}

func (s *stubKernel) Close(int) error {
	s.closed++
	return nil
}

func (s *stubKernel) APIVersion(int) (int, error) { return vfio.APIVersion, nil }

func (s *stubKernel) CheckExtension(_ int, m vfio.IOMMUModel) (bool, error) {
	return m == vfio.Type1IOMMU, nil
}

func (s *stubKernel) SetIOMMU(_ int, m vfio.IOMMUModel) error {
	if m != vfio.Type1IOMMU {
		return unix.EINVAL
	}
	return nil
}

func (s *stubKernel) GroupStatus(int) (vfio.GroupFlags, error) {
	var f vfio.GroupFlags
	if s.viable {
		f |= vfio.GroupFlagViable
	}
	if s.attached {
		f |= vfio.GroupFlagContainerSet
	}
	return f, nil
}

func (s *stubKernel) SetContainer(int, int) error {
	s.attached = true
	return nil
}

func (s *stubKernel) DeviceFD(_ int, name string) (int, error) {
	if name != "0000:03:00.0" {
		return -1, unix.ENODEV
	}
	return s.fd(), nil
}

func (s *stubKernel) DeviceInfo(int) (vfio.DeviceInfo, error) {
	return vfio.DeviceInfo{Flags: vfio.DeviceFlagReset | vfio.DeviceFlagPCI, NumRegions: 2, NumIRQs: 5}, nil
}

func (s *stubKernel) RegionInfo(_ int, index uint32) (vfio.RegionInfo, error) {
	if err := s.regionErrs[index]; err != nil {
		return vfio.RegionInfo{}, err
	}
	switch index {
	case 0:
		return vfio.RegionInfo{Index: 0, Flags: vfio.RegionFlagRead | vfio.RegionFlagWrite | vfio.RegionFlagMmap, Size: 4096}, nil
	case 1:
		return vfio.RegionInfo{Index: 1, Flags: vfio.RegionFlagRead | vfio.RegionFlagWrite, Size: 256, Offset: 0x10000000000}, nil
	}
	return vfio.RegionInfo{}, unix.EINVAL
}

func (s *stubKernel) Mmap(_ int, _ int64, length int) ([]byte, error) {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(0xa0 + i)
	}
	return b, nil
}

func (s *stubKernel) Munmap([]byte) error { return nil }
