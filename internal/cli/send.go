package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/smsbridge/smsbridge/internal/cli/ui"
	"github.com/smsbridge/smsbridge/internal/sms"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one SMS through the configured provider",
	Long: `Send a single SMS and print the gateway correlation id.

Use the id with 'smsbridge status <id>' to follow delivery. When the gateway
accepts the message but returns no usable id, the send still succeeds and a
warning is printed instead.

Examples:
  smsbridge send --to +64211234567 --body "Your table is ready"
  smsbridge send --to +64211234567 --body "hi" --json`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().String("to", "", "Destination phone number in international format (required)")
	sendCmd.Flags().String("body", "", "Message text (required)")
	sendCmd.Flags().Bool("skip-validation", false, "Pass the number to the gateway without normalizing it")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("body")
}

func runSend(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	body, _ := cmd.Flags().GetString("body")
	skipValidation, _ := cmd.Flags().GetBool("skip-validation")

	b, err := newBridge(cmd, nil, "text")
	if err != nil {
		return configHints(err)
	}
	defer b.Close()

	phone := to
	if !skipValidation {
		phone, err = sms.NormalizePhone(to)
		if err != nil {
			return withHints(fmt.Errorf("%w: %q", err, to),
				"use international format, e.g. +64211234567")
		}
		if !sms.IsAllowedCountry(phone, b.cfg.SMS.AllowedCountries) {
			return withHints(fmt.Errorf("phone number country %q not allowed", sms.PhoneCountry(phone)),
				"smsbridge config set sms.allowed_countries NZ,AU,"+sms.PhoneCountry(phone))
		}
	}

	id, sendErr := b.provider.Send(cmd.Context(), sms.SendRequest{PhoneNumber: phone, Message: body})

	if outputFormat(cmd) == "json" {
		out := map[string]any{
			"message_id": id.String(),
			"tracked":    id != uuid.Nil,
			"to":         phone,
			"status":     "sent",
		}
		var se *sms.SendError
		if errors.As(sendErr, &se) {
			out["status"] = "failed"
			out["error"] = se.Error()
			out["code"] = se.StatusCode
		}
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		return sendErr
	}

	if sendErr != nil {
		if id != uuid.Nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  message id: %s\n", id)
		}
		return withHints(sendErr, "smsbridge events   # review gateway diagnostics")
	}

	color := colorFor(cmd.OutOrStdout())
	if id == uuid.Nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Sent to %s\n", ui.SymbolCheck, phone)
		fmt.Fprint(cmd.ErrOrStderr(), ui.FormatWarning(
			"the gateway accepted the message but returned no usable message id, so delivery cannot be tracked",
			"smsbridge events   # see why the id was unavailable",
		))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Sent to %s\n", ui.SymbolCheck, phone)
	fmt.Fprintf(cmd.OutOrStdout(), "  message id: %s\n", bold(id.String(), color))
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", dim("follow with: smsbridge status "+id.String()+" --watch", color))
	return nil
}
