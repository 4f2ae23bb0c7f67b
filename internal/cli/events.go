package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/smsbridge/smsbridge/internal/eventlog"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent provider diagnostics",
	Long: `Print the most recent warnings and errors recorded by the SMS provider,
newest first. Requires events.enabled = true.`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "Number of events to show")
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return configHints(err)
	}
	if !cfg.Events.Enabled {
		return withHints(errors.New("the event log is disabled"),
			"smsbridge config set events.enabled true")
	}

	store, err := eventlog.Open(cmd.Context(), cfg.Events.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	return printEvents(cmd, events)
}

func printEvents(cmd *cobra.Command, events []eventlog.Event) error {
	if outputFormat(cmd) == "json" {
		return writeJSON(cmd.OutOrStdout(), events)
	}
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events recorded.")
		return nil
	}

	color := colorFor(cmd.OutOrStdout())
	cols := []string{"TIME", "LEVEL", "PROVIDER", "EVENT", "MESSAGE ID", "DETAIL"}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	for _, e := range events {
		fmt.Fprintln(w, strings.Join([]string{
			e.CreatedAt.Local().Format(time.DateTime),
			levelColor(e.Level, color),
			e.Provider,
			e.Event,
			orDash(e.MessageID),
			truncate(e.Detail, 80),
		}, "\t"))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to at most n runes, flattening newlines.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
