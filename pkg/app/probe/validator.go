package probe

import (
	"github.com/deploymenttheory/vfio-probe/internal/pci"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
)

// Validate validates a probe request. It never touches a device node.
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid device target", err)
	}

	if _, err := pci.ParseAddress(r.Target.Address); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid device address", err)
	}

	if r.DumpBytes < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "dump bytes must not be negative", nil)
	}

	if r.Preflight && r.SysfsMount == "" {
		return app.NewError(app.ErrCodeInvalidInput, "sysfs mount is required for preflight", nil)
	}

	return nil
}
