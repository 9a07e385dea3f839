package probe

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes the report to w in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Run ID:\t%s\n", response.RunID)
	fmt.Fprintf(w, "Device:\t%s (IOMMU group %d)\n", response.Address, response.Group)
	if response.Sysfs != nil {
		driver := response.Sysfs.Driver
		if driver == "" {
			driver = "none"
		}
		fmt.Fprintf(w, "PCI ID:\t%04x:%04x class %06x driver %s\n",
			response.Sysfs.Vendor, response.Sysfs.Device, response.Sysfs.Class, driver)
	}
	if response.GroupFlags != "" {
		fmt.Fprintf(w, "API version:\t%d\n", response.APIVersion)
		fmt.Fprintf(w, "Group flags:\t%s\n", response.GroupFlags)
	}
	if len(response.Extensions) > 0 {
		exts := make([]string, 0, len(response.Extensions))
		for _, e := range response.Extensions {
			state := "no"
			if e.Supported {
				state = "yes"
			}
			exts = append(exts, fmt.Sprintf("%s=%s", e.Model, state))
		}
		fmt.Fprintf(w, "Extensions:\t%s\n", strings.Join(exts, " "))
	}
	if response.IOMMU != "" {
		fmt.Fprintf(w, "IOMMU:\t%s\n", response.IOMMU)
	}
	if response.Device != nil {
		fmt.Fprintf(w, "Device flags:\t%s (%d regions, %d irqs)\n",
			response.Device.Flags, response.Device.Regions, response.Device.IRQs)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(response.Regions) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "REGION\tFLAGS\tSIZE\tOFFSET\tMAPPED\tHEAD\n")
		fmt.Fprintf(w, "------\t-----\t----\t------\t------\t----\n")
		for _, r := range response.Regions {
			head := r.Head
			if r.Error != "" {
				head = "error: " + r.Error
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%#x\t%t\t%s\n",
				r.Index, r.Flags, r.FormatSize(), r.Offset, r.Mapped, head)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	for _, warning := range response.Warnings {
		fmt.Fprintf(out, "\nWarning: %s", warning)
	}
	if len(response.Warnings) > 0 {
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "\nTrace: %s\n", strings.Join(response.Trace, " -> "))
	if response.Failure != nil {
		fmt.Fprintf(out, "Failed (%s): %s\n", response.Failure.Kind, response.Failure.Message)
	}
	return nil
}

func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
