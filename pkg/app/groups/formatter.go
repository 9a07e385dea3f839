package groups

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes the group listing to w in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(out io.Writer, response *Response) error {
	if len(response.Groups) == 0 {
		fmt.Fprintln(out, "No IOMMU groups found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "GROUP\tREADY\tDEVICE\tDRIVER\n")
	fmt.Fprintf(w, "-----\t-----\t------\t------\n")
	for _, g := range response.Groups {
		for i, d := range g.Devices {
			driver := d.Driver
			if driver == "" {
				driver = "-"
			}
			if i == 0 {
				fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", g.ID, g.Ready, d.Address, driver)
			} else {
				fmt.Fprintf(w, "\t\t%s\t%s\n", d.Address, driver)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d groups\n", len(response.Groups))
	return nil
}
