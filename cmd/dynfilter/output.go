package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/internal/client"
	"github.com/alfredjeanlab/dynfilter/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printFilterSummaries(out io.Writer, filters []client.FilterSummary) {
	if len(filters) == 0 {
		fmt.Fprintln(out, "no filters declared")
		return
	}
	for i, f := range filters {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, ui.RenderFilter(f.Name))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, fd := range f.Fields {
			extra := ""
			if len(fd.Choices) > 0 {
				extra = "[" + strings.Join(fd.Choices, ", ") + "]"
			}
			if fd.ForceEmpty {
				extra = strings.TrimSpace(extra + " force_empty")
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
				ui.RenderKey(fd.Key), fd.Query, fd.Input, formatValue(fd.Initial), ui.RenderMuted(extra))
		}
		w.Flush()
	}
}

func printResult(cmd *cobra.Command, res *client.FilterResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	out := cmd.OutOrStdout()

	var flags []string
	if res.Active {
		flags = append(flags, ui.RenderOK("active"))
	} else {
		flags = append(flags, ui.RenderMuted("inactive"))
	}
	if res.FirstInit {
		flags = append(flags, "first visit")
	}
	if res.Reset {
		flags = append(flags, "reset")
	}
	fmt.Fprintf(out, "%s (%s)\n", ui.RenderFilter(res.Filter), strings.Join(flags, ", "))

	keys := make([]string, 0, len(res.Kwargs))
	for k := range res.Kwargs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s = %s\n", ui.RenderKey(k), formatValue(res.Kwargs[k]))
	}
	for _, fe := range res.Form.Errors {
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", ui.RenderError("invalid"), fe.Field, fe.Message)
	}

	fmt.Fprintln(out)
	if len(res.Beads) == 0 {
		fmt.Fprintln(out, ui.RenderMuted("no matching beads"))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tASSIGNEE\tTITLE")
	for _, b := range res.Beads {
		fmt.Fprintf(w, "%s\t%s\tP%d\t%s\t%s\n", b.ID, b.Status, b.Priority, b.Assignee, b.Title)
	}
	w.Flush()
	fmt.Fprintln(out, ui.RenderMuted(fmt.Sprintf("%d of %d", len(res.Beads), res.Total)))
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		return fmt.Sprintf("%q", v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
