package cmd

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/vfio-probe/internal/config"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
	"github.com/deploymenttheory/vfio-probe/pkg/app/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe <iommu-group-id> <segment:bus:device.function>",
	Short: "Map the primary region of a device and dump its first bytes",
	Long: `Run the full VFIO bring-up for one device, map its primary region
(BAR0 unless --region says otherwise) read-only, copy its first bytes and
unmap it again. Every resource is released before the command exits.

Examples:
  # Probe BAR0 of a NIC in IOMMU group 26
  vfio-probe probe 26 0000:03:00.0

  # Dump 64 bytes of BAR2 as JSON
  vfio-probe probe 26 0000:03:00.0 --region 2 --dump 64 -o json`,

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd, args, false)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	addPathFlags(probeCmd.Flags())
	probeCmd.Flags().Uint32("region", 0, "index of the region to map")
	probeCmd.Flags().Int("dump", 16, "number of leading bytes to copy from the mapped region")
	probeCmd.Flags().Bool("preflight", true, "compare sysfs with the request before opening the group")
}

var deviceFlagKeys = map[string]string{
	"region":    "primary_region",
	"dump":      "dump_bytes",
	"preflight": "preflight",
}

// parseTarget validates the positional arguments before any device node is
// opened.
func parseTarget(args []string) (app.DeviceTarget, error) {
	group, err := strconv.Atoi(args[0])
	if err != nil {
		return app.DeviceTarget{}, app.NewError(app.ErrCodeInvalidInput, "invalid iommu group id "+strconv.Quote(args[0]), err)
	}
	return app.DeviceTarget{GroupID: group, Address: args[1]}, nil
}

func runProbe(cmd *cobra.Command, args []string, enumerate bool) error {
	target, err := parseTarget(args)
	if err != nil {
		return err
	}

	keys := map[string]string{}
	for flag, key := range pathFlagKeys {
		keys[flag] = key
	}
	for flag, key := range deviceFlagKeys {
		keys[flag] = key
	}
	cfg, err := loadConfig(cmd, keys)
	if err != nil {
		return err
	}

	ctx := newContext(cfg)
	ctx.Log(target.String())

	request := newProbeRequest(cfg, target, enumerate)
	response, err := probe.Handle(ctx, request)
	if response == nil {
		return err
	}

	// A failed run still prints the partial report so the failing step is
	// visible; quiet mode keeps only the error.
	if err != nil && ctx.Quiet {
		return err
	}
	if ferr := probe.FormatOutput(ctx.Out, response, ctx.OutputFormat); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

func newProbeRequest(cfg *config.Config, target app.DeviceTarget, enumerate bool) *probe.Request {
	return &probe.Request{
		Target:        target,
		Enumerate:     enumerate,
		ContainerPath: cfg.ContainerPath,
		GroupDir:      cfg.GroupDir,
		SysfsMount:    cfg.SysfsMount,
		PrimaryRegion: cfg.PrimaryRegion,
		DumpBytes:     cfg.DumpBytes,
		Preflight:     cfg.Preflight,
	}
}
