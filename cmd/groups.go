package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/vfio-probe/pkg/app/groups"
)

var vfioOnly bool

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List IOMMU groups and the drivers bound to their devices",
	Long: `List every IOMMU group found in sysfs. A group is marked ready when all
of its devices are bound to vfio-pci.

Examples:
  vfio-probe groups
  vfio-probe groups --vfio-only -o json`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroups(cmd)
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)

	groupsCmd.Flags().String("sysfs", "", "sysfs mount point (default /sys)")
	groupsCmd.Flags().BoolVar(&vfioOnly, "vfio-only", false, "show only groups ready for VFIO")
}

func runGroups(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, map[string]string{"sysfs": "sysfs_mount"})
	if err != nil {
		return err
	}
	ctx := newContext(cfg)

	response, err := groups.Handle(ctx, &groups.Request{
		SysfsMount: cfg.SysfsMount,
		VFIOOnly:   vfioOnly,
	})
	if err != nil {
		return err
	}
	return groups.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
