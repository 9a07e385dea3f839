package groups

import (
	"github.com/deploymenttheory/vfio-probe/internal/inventory"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
)

// Handle lists IOMMU groups and the drivers bound to their devices. A group
// is ready when every device in it is bound to vfio-pci, which is what the
// kernel requires before it reports the group viable.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if req.SysfsMount == "" {
		return nil, app.NewError(app.ErrCodeInvalidInput, "sysfs mount is required", nil)
	}

	inv, err := inventory.NewInventory(ctx.Logger, req.SysfsMount)
	if err != nil {
		return nil, app.NewError(app.ErrCodeSysfs, "cannot read sysfs", err)
	}
	groups, err := inv.Groups()
	if err != nil {
		return nil, app.NewError(app.ErrCodeSysfs, "cannot list IOMMU groups", err)
	}
	if len(groups) == 0 {
		ctx.Warn("no IOMMU groups found, is the IOMMU enabled?")
	}

	response := &Response{RunID: ctx.RunID, Groups: []GroupResult{}}
	for _, g := range groups {
		gr := GroupResult{ID: g.ID, Ready: len(g.Devices) > 0}
		for _, addr := range g.Devices {
			driver := inv.Driver(addr)
			if driver != inventory.VFIODriver {
				gr.Ready = false
			}
			gr.Devices = append(gr.Devices, DeviceResult{Address: addr, Driver: driver})
		}
		if req.VFIOOnly && !gr.Ready {
			continue
		}
		response.Groups = append(response.Groups, gr)
	}

	ctx.Logger.WithField("groups", len(response.Groups)).Debug("listed IOMMU groups")
	return response, nil
}
