package vfio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/vfio-probe/internal/pci"
)

// openDevice brings a fake device up by hand, without the sequencer.
func openDevice(t *testing.T, k *fakeKernel) (*Container, *Group, *Device) {
	t.Helper()
	log := quietLogger()

	c, err := OpenContainer(k, log, DefaultContainerPath)
	require.NoError(t, err)
	g, err := OpenGroup(k, log, DefaultGroupDir, fakeGroupID)
	require.NoError(t, err)
	_, err = g.CheckViable()
	require.NoError(t, err)
	require.NoError(t, g.Attach(c))
	_, err = c.SelectIOMMU()
	require.NoError(t, err)

	addr, err := pci.ParseAddress(fakeDevice)
	require.NoError(t, err)
	d, err := g.Device(addr)
	require.NoError(t, err)

	t.Cleanup(func() {
		d.Close()
		g.Close()
		c.Close()
	})
	return c, g, d
}

func TestGroupAttachIsNotIdempotent(t *testing.T) {
	k := newFakeKernel()
	c, g, _ := openDevice(t, k)

	err := g.Attach(c)
	require.Error(t, err)
	assert.True(t, IsKind(err, AttachFailed))
}

func TestGroupAttachRequiresViability(t *testing.T) {
	k := newFakeKernel()
	k.groupFlags = 0
	log := quietLogger()

	c, err := OpenContainer(k, log, DefaultContainerPath)
	require.NoError(t, err)
	defer c.Close()
	g, err := OpenGroup(k, log, DefaultGroupDir, fakeGroupID)
	require.NoError(t, err)
	defer g.Close()

	err = g.Attach(c)
	require.Error(t, err)
	assert.True(t, IsKind(err, GroupNotViable))
	assert.False(t, k.called("set-container"))
}

func TestDeviceRequiresAttachedGroupWithIOMMU(t *testing.T) {
	k := newFakeKernel()
	log := quietLogger()
	addr, err := pci.ParseAddress(fakeDevice)
	require.NoError(t, err)

	c, err := OpenContainer(k, log, DefaultContainerPath)
	require.NoError(t, err)
	defer c.Close()
	g, err := OpenGroup(k, log, DefaultGroupDir, fakeGroupID)
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Device(addr)
	assert.True(t, IsKind(err, AttachFailed), "device before attach: %v", err)

	require.NoError(t, g.Attach(c))
	_, err = g.Device(addr)
	assert.True(t, IsKind(err, IommuSetupFailed), "device before IOMMU selection: %v", err)

	assert.False(t, k.called("device-fd"))
}

func TestSelectIOMMURequiresGroup(t *testing.T) {
	k := newFakeKernel()
	c, err := OpenContainer(k, quietLogger(), DefaultContainerPath)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SelectIOMMU()
	assert.True(t, IsKind(err, IommuSetupFailed))
	assert.False(t, k.called("set-iommu"))
}

func TestRegionQueryIsIdempotent(t *testing.T) {
	k := newFakeKernel()
	_, _, d := openDevice(t, k)
	_, err := d.Info()
	require.NoError(t, err)

	first, err := d.Region(0)
	require.NoError(t, err)
	second, err := d.Region(0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMappingIsBoundedByRegionSize(t *testing.T) {
	k := newFakeKernel()
	_, _, d := openDevice(t, k)

	r, err := d.Region(0)
	require.NoError(t, err)
	m, err := d.Map(r)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int(r.Size), m.Len())

	head, err := m.Head(16)
	require.NoError(t, err)
	assert.Len(t, head, 16)

	buf := make([]byte, 32)
	n, err := m.ReadAt(buf, int64(r.Size)-8)
	assert.Equal(t, 8, n)
	assert.ErrorIs(t, err, io.EOF)

	n, err = m.ReadAt(buf, int64(r.Size))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = m.ReadAt(buf, -1)
	assert.Error(t, err)

	whole, err := m.Head(int(r.Size) * 2)
	require.NoError(t, err)
	assert.Len(t, whole, int(r.Size))
}

func TestMapRejectsSizeMismatch(t *testing.T) {
	k := newFakeKernel()
	k.mmapShort = true
	_, _, d := openDevice(t, k)

	r, err := d.Region(0)
	require.NoError(t, err)
	_, err = d.Map(r)
	require.Error(t, err)
	assert.True(t, IsKind(err, MappingFailed))
	assert.Zero(t, k.mappings, "short mapping must be released")
}

func TestMapRejectsZeroSizedRegion(t *testing.T) {
	k := newFakeKernel()
	_, _, d := openDevice(t, k)

	_, err := d.Map(RegionInfo{Index: 0, Flags: RegionFlagMmap})
	assert.True(t, IsKind(err, MappingFailed))
	assert.False(t, k.called("mmap"))
}

func TestDeviceCloseReleasesMappings(t *testing.T) {
	k := newFakeKernel()
	_, _, d := openDevice(t, k)

	r, err := d.Region(0)
	require.NoError(t, err)
	m, err := d.Map(r)
	require.NoError(t, err)
	require.Equal(t, 1, k.mappings)

	require.NoError(t, d.Close())
	assert.Zero(t, k.mappings)

	_, err = m.Head(1)
	assert.Error(t, err, "mapping is invalid once its device is closed")
	assert.NoError(t, m.Close(), "closing twice is a no-op")

	_, err = d.Map(r)
	assert.True(t, IsKind(err, MappingFailed))
}
