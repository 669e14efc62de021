package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/internal/client"
	"github.com/alfredjeanlab/dynfilter/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	noColor    bool
	newSession bool

	api *client.HTTPClient
)

func defaultServer() string {
	if s := os.Getenv("DYNFILTER_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// skipClient overrides the root PersistentPreRunE for commands that do not
// talk to a server.
func skipClient(cmd *cobra.Command, args []string) error {
	ui.SetColor(ui.ShouldUseColor(os.Stdout) && !noColor)
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "dynfilter",
	Short:        "Session-backed declarative filters over beads",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(ui.ShouldUseColor(os.Stdout) && !noColor)
		opts := client.Options{Token: authToken, Timeout: 30 * time.Second}
		if !newSession {
			opts.Session = savedSession(serverURL)
		}
		api = client.NewHTTPClient(serverURL, opts)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if api == nil || api.Session() == "" {
			return nil
		}
		return rememberSession(serverURL, api.Session())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "dynfilter server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("DYNFILTER_TOKEN"), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&newSession, "new-session", false, "start a fresh filter session instead of resuming the saved one")

	rootCmd.AddGroup(
		&cobra.Group{ID: "filters", Title: "Filter Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)

	rootCmd.AddCommand(filtersCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
