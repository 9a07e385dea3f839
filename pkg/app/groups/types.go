package groups

// Request represents an IOMMU group listing
type Request struct {
	SysfsMount string
	// VFIOOnly keeps only groups whose every device is bound to vfio-pci
	VFIOOnly bool
}

// Response represents the groups found in sysfs
type Response struct {
	RunID  string        `json:"run_id" yaml:"run_id"`
	Groups []GroupResult `json:"groups" yaml:"groups"`
}

// GroupResult is one IOMMU group
type GroupResult struct {
	ID      int            `json:"id" yaml:"id"`
	Ready   bool           `json:"ready" yaml:"ready"`
	Devices []DeviceResult `json:"devices" yaml:"devices"`
}

// DeviceResult is one member of a group
type DeviceResult struct {
	Address string `json:"address" yaml:"address"`
	Driver  string `json:"driver,omitempty" yaml:"driver,omitempty"`
}
