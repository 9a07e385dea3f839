//go:build !linux

package vfio

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("vfio is only available on linux, not " + runtime.GOOS)

type unsupportedKernel struct{}

// NewKernel returns a Kernel whose every call fails outside Linux.
func NewKernel() Kernel {
	return unsupportedKernel{}
}

func (unsupportedKernel) Open(string) (int, error)                     { return -1, errUnsupported }
func (unsupportedKernel) Close(int) error                              { return errUnsupported }
func (unsupportedKernel) APIVersion(int) (int, error)                  { return -1, errUnsupported }
func (unsupportedKernel) CheckExtension(int, IOMMUModel) (bool, error) { return false, errUnsupported }
func (unsupportedKernel) SetIOMMU(int, IOMMUModel) error               { return errUnsupported }
func (unsupportedKernel) GroupStatus(int) (GroupFlags, error)          { return 0, errUnsupported }
func (unsupportedKernel) SetContainer(int, int) error                  { return errUnsupported }
func (unsupportedKernel) DeviceFD(int, string) (int, error)            { return -1, errUnsupported }
func (unsupportedKernel) DeviceInfo(int) (DeviceInfo, error)           { return DeviceInfo{}, errUnsupported }
func (unsupportedKernel) RegionInfo(int, uint32) (RegionInfo, error)   { return RegionInfo{}, errUnsupported }
func (unsupportedKernel) Mmap(int, int64, int) ([]byte, error)         { return nil, errUnsupported }
func (unsupportedKernel) Munmap([]byte) error                          { return errUnsupported }
