package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/vfio-probe/internal/config"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
)

var (
	// Global output flags only
	verbose    bool
	quiet      bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "vfio-probe",
	Short: "Bring up a PCI device through VFIO and inspect its regions",
	Long: `vfio-probe walks the VFIO user-space handshake for one PCI function:
open the container, check the API version, attach the IOMMU group, select a
hardware-enforced IOMMU model, resolve the device and read its regions.

The device must already be bound to vfio-pci and every device in its IOMMU
group must be bound to vfio-pci or unbound. Nothing is written to the device;
regions are mapped read-only.

Commands:
  probe       Map the primary region of a device and dump its first bytes
  regions     Enumerate and map every region of a device
  groups      List IOMMU groups and the drivers bound to their devices`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Any failure exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default searches ./vfio-probe.yaml, $HOME/.vfio-probe, /etc/vfio-probe)")
}

// loadConfig binds the flags of the running command that the user actually
// set, so unset flags do not mask config file or environment values.
func loadConfig(cmd *cobra.Command, keys map[string]string) (*config.Config, error) {
	bind := func(flag, key string) error {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			return nil
		}
		return viper.BindPFlag(key, f)
	}
	if err := bind("output", "output"); err != nil {
		return nil, err
	}
	for flag, key := range keys {
		if err := bind(flag, key); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, app.NewError(app.ErrCodeInvalidInput, "invalid configuration", err)
	}
	return cfg, nil
}

// newContext creates the application context for the running command
func newContext(cfg *config.Config) *app.Context {
	ctx := app.NewContext(verbose, quiet)
	ctx.OutputFormat = cfg.Output
	return ctx
}

// addPathFlags registers the node and sysfs location flags shared by commands
func addPathFlags(fs *pflag.FlagSet) {
	fs.String("container", "", "VFIO container node (default /dev/vfio/vfio)")
	fs.String("group-dir", "", "directory holding the VFIO group nodes (default /dev/vfio)")
	fs.String("sysfs", "", "sysfs mount point (default /sys)")
}

var pathFlagKeys = map[string]string{
	"container": "container_path",
	"group-dir": "group_dir",
	"sysfs":     "sysfs_mount",
}
