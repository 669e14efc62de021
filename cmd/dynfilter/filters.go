package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/internal/client"
)

var filtersCmd = &cobra.Command{
	Use:     "filters",
	Short:   "List the filters the server declares",
	GroupID: "filters",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := api.ListFilters(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(filters)
		}
		printFilterSummaries(cmd.OutOrStdout(), filters)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:     "get <filter>",
	Short:   "Apply a filter's stored values and list matching beads",
	GroupID: "filters",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetFilter(cmd.Context(), args[0], filterRequest(cmd))
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <filter> key=value...",
	Short: "Submit new values for a filter",
	Long: `Submit new values for a filter. Repeat a key to send several values
for a multiple-choice field. Fields left out are submitted empty.`,
	Example: `  dynfilter set Work assignee=alice status=open status=blocked priority=2`,
	GroupID: "filters",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		res, err := api.SubmitFilter(cmd.Context(), args[0], values, filterRequest(cmd))
		if err != nil {
			return err
		}
		if err := printResult(cmd, res); err != nil {
			return err
		}
		if len(res.Form.Errors) > 0 {
			return fmt.Errorf("%s: submission rejected", args[0])
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:     "reset <filter>",
	Short:   "Restore a filter's initial values",
	GroupID: "filters",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := filterRequest(cmd)
		req.Reset = true
		res, err := api.GetFilter(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the server is up",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := api.Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd, resetCmd} {
		c.Flags().String("sort", "", "sort column, prefixed with - for descending")
		c.Flags().Int("limit", 0, "maximum beads to list (server default 50)")
		c.Flags().Int("offset", 0, "beads to skip")
	}
}

func filterRequest(cmd *cobra.Command) client.FilterRequest {
	sort, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return client.FilterRequest{Sort: sort, Limit: limit, Offset: offset}
}

// parseAssignments turns key=value arguments into form values.
func parseAssignments(args []string) (url.Values, error) {
	values := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", arg)
		}
		values.Add(key, value)
	}
	return values, nil
}
