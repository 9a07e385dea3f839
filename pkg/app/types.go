package app

import (
	"errors"
	"fmt"
)

// DeviceTarget names the device a command operates on
type DeviceTarget struct {
	GroupID int
	Address string
}

// Validate ensures the device target is complete. The address itself is
// parsed later, before any device node is opened.
func (dt *DeviceTarget) Validate() error {
	if dt.GroupID < 0 {
		return fmt.Errorf("iommu group id must not be negative, got %d", dt.GroupID)
	}
	if dt.Address == "" {
		return errors.New("device address is required")
	}
	return nil
}

// String returns a string representation of the device target
func (dt *DeviceTarget) String() string {
	return fmt.Sprintf("Device: %s (IOMMU group %d)", dt.Address, dt.GroupID)
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeContainerAccess = "CONTAINER_ACCESS"
	ErrCodeGroupAccess     = "GROUP_ACCESS"
	ErrCodeDeviceAccess    = "DEVICE_ACCESS"
	ErrCodeSecurity        = "SECURITY_INVARIANT"
	ErrCodeSysfs           = "SYSFS"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
