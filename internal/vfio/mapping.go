package vfio

import (
	"errors"
	"fmt"
	"io"
)

// Mapping is a read-only window onto a device region. Its length always
// equals the region's advertised size.
type Mapping struct {
	dev    *Device
	region RegionInfo
	data   []byte
}

var errMappingClosed = errors.New("mapping is closed")

func (m *Mapping) Region() RegionInfo { return m.region }

// Len returns the number of readable bytes.
func (m *Mapping) Len() int { return len(m.data) }

// ReadAt implements io.ReaderAt over the mapped region. Reads never extend
// past the region size.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, errMappingClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Head returns a copy of the first min(n, Len()) bytes.
func (m *Mapping) Head(n int) ([]byte, error) {
	if m.data == nil {
		return nil, errMappingClosed
	}
	if n > len(m.data) {
		n = len(m.data)
	}
	if n < 0 {
		n = 0
	}
	buf := make([]byte, n)
	copy(buf, m.data[:n])
	return buf, nil
}

// Close unmaps the region. Calling Close more than once is a no-op.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	m.dev.forget(m)
	if err := m.dev.k.Munmap(data); err != nil {
		return fmt.Errorf("unmap region %d: %w", m.region.Index, err)
	}
	m.dev.log.WithField("region", m.region.Index).Debug("region unmapped")
	return nil
}
