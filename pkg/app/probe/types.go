package probe

import (
	"fmt"

	units "github.com/docker/go-units"

	"github.com/deploymenttheory/vfio-probe/internal/inventory"
	"github.com/deploymenttheory/vfio-probe/internal/vfio"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
)

// Request represents one bring-up run against a device
type Request struct {
	Target app.DeviceTarget

	// Enumerate walks every region instead of mapping only the primary one
	Enumerate bool

	ContainerPath string
	GroupDir      string
	SysfsMount    string
	PrimaryRegion uint32
	DumpBytes     int
	Preflight     bool

	// Kernel is the VFIO backend; nil selects the running kernel
	Kernel vfio.Kernel
}

// Response represents everything learned during the run. A failed run still
// produces a Response describing how far it got.
type Response struct {
	RunID      string                  `json:"run_id" yaml:"run_id"`
	Address    string                  `json:"address" yaml:"address"`
	Group      int                     `json:"iommu_group" yaml:"iommu_group"`
	Mode       string                  `json:"mode" yaml:"mode"`
	Sysfs      *inventory.DeviceDetail `json:"sysfs,omitempty" yaml:"sysfs,omitempty"`
	APIVersion int                     `json:"api_version" yaml:"api_version"`
	GroupFlags string                  `json:"group_flags" yaml:"group_flags"`
	Extensions []ExtensionResult       `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	IOMMU      string                  `json:"iommu,omitempty" yaml:"iommu,omitempty"`
	Device     *DeviceResult           `json:"device,omitempty" yaml:"device,omitempty"`
	Regions    []RegionResult          `json:"regions,omitempty" yaml:"regions,omitempty"`
	Warnings   []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Trace      []string                `json:"trace" yaml:"trace"`
	Failure    *Failure                `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// ExtensionResult reports whether the container supports one IOMMU model
type ExtensionResult struct {
	Model     string `json:"model" yaml:"model"`
	Supported bool   `json:"supported" yaml:"supported"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// DeviceResult is the decoded device info
type DeviceResult struct {
	Flags   string `json:"flags" yaml:"flags"`
	Regions uint32 `json:"regions" yaml:"regions"`
	IRQs    uint32 `json:"irqs" yaml:"irqs"`
}

// RegionResult describes one region and what happened when mapping it
type RegionResult struct {
	Index  uint32 `json:"index" yaml:"index"`
	Flags  string `json:"flags" yaml:"flags"`
	Size   uint64 `json:"size" yaml:"size"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Mapped bool   `json:"mapped" yaml:"mapped"`
	Head   string `json:"head,omitempty" yaml:"head,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FormatSize returns the region size in binary units
func (r *RegionResult) FormatSize() string {
	return units.BytesSize(float64(r.Size))
}

// Failure names the step that stopped the run
type Failure struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

func newRegionResult(rr vfio.RegionResult) RegionResult {
	out := RegionResult{
		Index:  rr.Index,
		Flags:  rr.Flags.String(),
		Size:   rr.Size,
		Offset: rr.Offset,
		Mapped: rr.Mapped,
	}
	if len(rr.Head) > 0 {
		out.Head = fmt.Sprintf("% x", rr.Head)
	}
	if rr.Err != nil {
		out.Error = rr.Err.Error()
	}
	return out
}
