package vfio

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// fakeKernel simulates the VFIO nodes of one container, one group and its
// devices. Every call is recorded in calls.
type fakeKernel struct {
	nodes  map[string]bool
	fds    map[int]string
	nextFD int

	apiVersion    int
	groupFlags    GroupFlags
	groupErr      error
	attachedErr   error
	extensions    map[IOMMUModel]bool
	allowNoIOMMU  bool
	type1Err      error
	setContainerE error
	iommu         IOMMUModel

	devices    map[string]bool
	info       DeviceInfo
	infoErr    error
	regions    map[uint32]RegionInfo
	regionErrs map[uint32]error
	mmapErr    error
	mmapShort  bool

	calls    []string
	closed   []string
	mappings int
}

const (
	fakeGroupID   = 26
	fakeDevice    = "0000:03:00.0"
	fakeGroupPath = "/dev/vfio/26"
)

// newFakeKernel returns a healthy setup: viable group 26 holding
// 0000:03:00.0 with one mappable 4096-byte BAR0.
func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		nodes:      map[string]bool{DefaultContainerPath: true, fakeGroupPath: true},
		fds:        map[int]string{},
		nextFD:     3,
		apiVersion: APIVersion,
		groupFlags: GroupFlagViable,
		extensions: map[IOMMUModel]bool{Type1IOMMU: true, Type1v2IOMMU: true},
		devices:    map[string]bool{fakeDevice: true},
		info:       DeviceInfo{Flags: DeviceFlagReset | DeviceFlagPCI, NumRegions: 1, NumIRQs: 5},
		regions: map[uint32]RegionInfo{
			0: {Index: 0, Flags: RegionFlagRead | RegionFlagWrite | RegionFlagMmap, Size: 4096, Offset: 0},
		},
		regionErrs: map[uint32]error{},
	}
}

func (f *fakeKernel) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeKernel) kernelCalls() int {
	return len(f.calls)
}

func (f *fakeKernel) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeKernel) Open(path string) (int, error) {
	f.record("open %s", path)
	if !f.nodes[path] {
		return -1, fmt.Errorf("open %s: %w", path, unix.ENOENT)
	}
	fd := f.nextFD
	f.nextFD++
	f.fds[fd] = path
	return fd, nil
}

func (f *fakeKernel) Close(fd int) error {
	f.record("close %d", fd)
	name, ok := f.fds[fd]
	if !ok {
		return unix.EBADF
	}
	delete(f.fds, fd)
	f.closed = append(f.closed, name)
	return nil
}

func (f *fakeKernel) APIVersion(int) (int, error) {
	f.record("api-version")
	return f.apiVersion, nil
}

func (f *fakeKernel) CheckExtension(_ int, m IOMMUModel) (bool, error) {
	f.record("check-extension %s", m)
	return f.extensions[m], nil
}

func (f *fakeKernel) SetIOMMU(_ int, m IOMMUModel) error {
	f.record("set-iommu %s", m)
	switch {
	case m == NoIOMMU && !f.allowNoIOMMU:
		return unix.EINVAL
	case m == Type1IOMMU && f.type1Err != nil:
		return f.type1Err
	}
	f.iommu = m
	return nil
}

func (f *fakeKernel) GroupStatus(int) (GroupFlags, error) {
	f.record("group-status")
	if f.groupFlags&GroupFlagContainerSet != 0 && f.attachedErr != nil {
		return 0, f.attachedErr
	}
	return f.groupFlags, f.groupErr
}

func (f *fakeKernel) SetContainer(int, int) error {
	f.record("set-container")
	if f.setContainerE != nil {
		return f.setContainerE
	}
	if f.groupFlags&GroupFlagContainerSet != 0 {
		return unix.EBUSY
	}
	f.groupFlags |= GroupFlagContainerSet
	return nil
}

func (f *fakeKernel) DeviceFD(_ int, name string) (int, error) {
	f.record("device-fd %s", name)
	if !f.devices[name] {
		return -1, unix.ENODEV
	}
	fd := f.nextFD
	f.nextFD++
	f.fds[fd] = name
	return fd, nil
}

func (f *fakeKernel) DeviceInfo(int) (DeviceInfo, error) {
	f.record("device-info")
	return f.info, f.infoErr
}

func (f *fakeKernel) RegionInfo(_ int, index uint32) (RegionInfo, error) {
	f.record("region-info %d", index)
	if err := f.regionErrs[index]; err != nil {
		return RegionInfo{}, err
	}
	r, ok := f.regions[index]
	if !ok {
		return RegionInfo{}, unix.EINVAL
	}
	return r, nil
}

func (f *fakeKernel) Mmap(_ int, offset int64, length int) ([]byte, error) {
	f.record("mmap %#x %d", offset, length)
	if f.mmapErr != nil {
		return nil, f.mmapErr
	}
	if f.mmapShort {
		length /= 2
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(i)
	}
	f.mappings++
	return b, nil
}

func (f *fakeKernel) Munmap([]byte) error {
	f.record("munmap")
	f.mappings--
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
