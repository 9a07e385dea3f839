package probe

import (
	"fmt"

	"github.com/deploymenttheory/vfio-probe/internal/inventory"
	"github.com/deploymenttheory/vfio-probe/internal/pci"
	"github.com/deploymenttheory/vfio-probe/internal/vfio"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
)

// Handle processes a probe request. On a failed bring-up it returns the
// partial Response together with the error.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	opts := vfio.Options{
		ContainerPath: req.ContainerPath,
		GroupDir:      req.GroupDir,
		GroupID:       req.Target.GroupID,
		Address:       req.Target.Address,
		PrimaryRegion: req.PrimaryRegion,
		DumpBytes:     req.DumpBytes,
	}
	if req.Enumerate {
		opts.Mode = vfio.Enumerate
	}

	log := ctx.Logger.WithField("device", req.Target.Address).WithField("group", req.Target.GroupID)
	log.WithField("mode", opts.Mode).Debug("starting bring-up")

	response := &Response{
		RunID:   ctx.RunID,
		Address: req.Target.Address,
		Group:   req.Target.GroupID,
		Mode:    opts.Mode.String(),
	}

	// 2. Compare sysfs with the request before opening anything
	if req.Preflight {
		response.Sysfs, response.Warnings = preflight(ctx, req)
		for _, w := range response.Warnings {
			log.Warn(w)
		}
	}

	// 3. Run the handshake
	kernel := req.Kernel
	if kernel == nil {
		kernel = vfio.NewKernel()
	}
	result, runErr := vfio.NewSequencer(kernel, log, opts).Run()
	fillResponse(response, result)

	if runErr != nil {
		kind := vfio.KindOf(runErr)
		response.Failure = &Failure{Kind: kind.String(), Message: runErr.Error()}
		return response, app.NewError(errorCode(kind), fmt.Sprintf("%s failed", kind), runErr)
	}

	log.WithField("regions", len(response.Regions)).Debug("bring-up complete")
	return response, nil
}

// preflight is diagnostic only: sysfs errors become warnings.
func preflight(ctx *app.Context, req *Request) (*inventory.DeviceDetail, []string) {
	addr, err := pci.ParseAddress(req.Target.Address)
	if err != nil {
		return nil, []string{err.Error()}
	}
	inv, err := inventory.NewInventory(ctx.Logger, req.SysfsMount)
	if err != nil {
		return nil, []string{fmt.Sprintf("preflight skipped: %v", err)}
	}
	detail, err := inv.Device(addr)
	if err != nil {
		return nil, []string{fmt.Sprintf("preflight skipped: %v", err)}
	}
	return detail, inventory.Preflight(detail, req.Target.GroupID)
}

func fillResponse(response *Response, result *vfio.Result) {
	for _, st := range result.Trace {
		response.Trace = append(response.Trace, st.String())
	}
	if !reached(result, vfio.APIVerified) {
		return
	}
	response.APIVersion = result.APIVersion
	response.GroupFlags = result.GroupFlags.String()

	for _, ext := range result.Extensions {
		er := ExtensionResult{Model: ext.Model.String(), Supported: ext.Supported}
		if ext.Err != nil {
			er.Error = ext.Err.Error()
		}
		response.Extensions = append(response.Extensions, er)
	}
	if reached(result, vfio.IOMMUSelected) {
		response.IOMMU = result.IOMMU.String()
	}
	if reached(result, vfio.InfoQueried) {
		response.Device = &DeviceResult{
			Flags:   result.Device.Flags.String(),
			Regions: result.Device.NumRegions,
			IRQs:    result.Device.NumIRQs,
		}
	}
	for _, rr := range result.Regions {
		response.Regions = append(response.Regions, newRegionResult(rr))
	}
}

func reached(result *vfio.Result, st vfio.State) bool {
	for _, s := range result.Trace {
		if s == st {
			return true
		}
	}
	return false
}

func errorCode(kind vfio.Kind) string {
	switch kind {
	case vfio.ResourceUnavailable, vfio.IncompatibleVersion, vfio.IommuSetupFailed:
		return app.ErrCodeContainerAccess
	case vfio.GroupNotFound, vfio.GroupNotViable, vfio.AttachFailed:
		return app.ErrCodeGroupAccess
	case vfio.SecurityInvariantViolated:
		return app.ErrCodeSecurity
	default:
		return app.ErrCodeDeviceAccess
	}
}
