package main

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/internal/config"
	"github.com/alfredjeanlab/dynfilter/internal/session"
	"github.com/alfredjeanlab/dynfilter/internal/store/postgres"
	"github.com/alfredjeanlab/dynfilter/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:               "session",
	Short:             "Inspect stored filter sessions",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the filter values stored in a session (default: this CLI's session)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := savedSession(serverURL)
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("no session id given and none saved for %s", serverURL)
		}
		return withSessions(func(sessions sessionStore) error {
			data, err := sessions.Load(cmd.Context(), id)
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("session %s not found or expired", id)
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(data)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.RenderMuted(id))
			for _, name := range sortedKeys(data) {
				fmt.Fprintln(out, ui.RenderFilter(name))
				values := data[name]
				for _, key := range sortedKeys(values) {
					fmt.Fprintf(out, "  %s = %s\n", ui.RenderKey(key), formatValue(values[key]))
				}
			}
			return nil
		})
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(func(sessions sessionStore) error {
			recs, err := sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(recs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILTERS\tEXPIRES")
			for _, r := range recs {
				expires := "-"
				if !r.ExpiresAt.IsZero() {
					expires = r.ExpiresAt.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", r.ID, len(r.Data), expires)
			}
			return w.Flush()
		})
	},
}

var sessionPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(func(sessions sessionStore) error {
			n, err := sessions.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d expired sessions purged\n", n)
			return nil
		})
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionListCmd, sessionPurgeCmd)
}

// withSessions opens the configured session backend for fn.
func withSessions(fn func(sessionStore) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.SessionBackend == config.SessionMemory {
		return fmt.Errorf("memory sessions live inside the server process and cannot be inspected")
	}

	var db *sql.DB
	if cfg.SessionBackend == config.SessionPostgres {
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		db = store.DB()
	}
	sessions, closeSessions, err := openSessions(cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()
	return fn(sessions)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
