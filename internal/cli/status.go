package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smsbridge/smsbridge/internal/cli/ui"
	"github.com/smsbridge/smsbridge/internal/sms"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <message-id>",
	Short: "Show the delivery status of a sent message",
	Long: `Ask the gateway for the current delivery status of one message.

With --watch the status is polled every --interval until it is delivered or
failed, or until --timeout passes. Transient lookup failures show up as
timed_out and polling continues.

Examples:
  smsbridge status 0b6f4c58-6a39-4b8e-8c29-2c1f0f1d6a43
  smsbridge status 0b6f4c58-6a39-4b8e-8c29-2c1f0f1d6a43 --watch --interval 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("watch", false, "Poll until the message reaches a final status")
	statusCmd.Flags().Duration("interval", 5*time.Second, "Delay between polls with --watch")
	statusCmd.Flags().Duration("timeout", 10*time.Minute, "Give up watching after this long")
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", args[0], err)
	}
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	b, err := newBridge(cmd, nil, "text")
	if err != nil {
		return configHints(err)
	}
	defer b.Close()

	jsonOut := outputFormat(cmd) == "json"

	var status sms.Status
	if !watch {
		status = b.provider.MessageStatus(cmd.Context(), id)
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		sp := ui.NewStepSpinner(cmd.ErrOrStderr(), jsonOut || !colorFor(cmd.ErrOrStderr()))
		sp.Start(fmt.Sprintf("Waiting for %s", id))
		status, err = watchStatus(ctx, b.provider, id, interval, func(attempt int, s sms.Status) {
			sp.Update(fmt.Sprintf("%s (poll %d)", s, attempt))
		})
		switch {
		case err != nil:
			sp.Fail()
		case status == sms.StatusFailed:
			sp.Fail()
		default:
			sp.Done()
		}
		if err != nil {
			return withHints(fmt.Errorf("no final status for %s after %s: last status %s", id, timeout, status),
				"smsbridge events   # review gateway diagnostics")
		}
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"message_id": id.String(),
			"status":     status,
			"terminal":   status.IsTerminal(),
		})
	}
	color := colorFor(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", id, statusColor(status, color))
	return nil
}

// watchStatus polls provider until the message reaches a terminal status or
// ctx ends. onPoll, if non-nil, sees every observed status. On ctx expiry the
// last observed status is returned with ctx's error.
func watchStatus(ctx context.Context, provider sms.Provider, id uuid.UUID, interval time.Duration, onPoll func(attempt int, s sms.Status)) (sms.Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	status := sms.StatusUnknown
	for attempt := 1; ; attempt++ {
		status = provider.MessageStatus(ctx, id)
		if onPoll != nil {
			onPoll(attempt, status)
		}
		if status.IsTerminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
