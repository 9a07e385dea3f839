package cmd

import (
	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions <iommu-group-id> <segment:bus:device.function>",
	Short: "Enumerate and map every region of a device",
	Long: `Run the full VFIO bring-up for one device and walk all of its regions.
Each mappable region is mapped read-only, its first bytes copied and the
mapping released. A region that cannot be queried or mapped is reported and
skipped; enumeration continues with the next one.

Examples:
  vfio-probe regions 26 0000:03:00.0
  vfio-probe regions 26 0000:03:00.0 --dump 0 -o yaml`,

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd, args, true)
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)

	addPathFlags(regionsCmd.Flags())
	regionsCmd.Flags().Int("dump", 16, "number of leading bytes to copy from each mapped region")
	regionsCmd.Flags().Bool("preflight", true, "compare sysfs with the request before opening the group")
}
