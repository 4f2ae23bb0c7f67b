package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/smsbridge/smsbridge/internal/cli/ui"
	"github.com/smsbridge/smsbridge/internal/config"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion is called from main to inject build-time version info.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

var rootCmd = &cobra.Command{
	Use:   "smsbridge",
	Short: "SMS gateway bridge for eTXT, Twilio, Telnyx, Plivo and AWS SNS",
	Long: `smsbridge sends SMS through a configured gateway (eTXT, Twilio, Telnyx,
Plivo, AWS SNS, or a log-only provider for development), polls delivery status,
and exposes the same operations over a small HTTP API. One binary. One config file.

Get started:
  smsbridge config init
  smsbridge serve

Send one message from the command line:
  smsbridge send --to +64211234567 --body "hello"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format (shorthand for --output json)")
	rootCmd.PersistentFlags().String("output", "table", "Output format: table or json")
	rootCmd.PersistentFlags().String("config", "", "Path to smsbridge.toml config file")
	rootCmd.PersistentFlags().String("log-file", "", "Also append JSON logs (all levels) to this file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	initHelp()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// outputFormat returns the resolved output format from flags.
// --json is a shorthand for --output json.
func outputFormat(cmd *cobra.Command) string {
	jsonFlag, _ := cmd.Flags().GetBool("json")
	if jsonFlag {
		return "json"
	}
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		return "table"
	}
	return out
}

// writeJSON pretty-prints v to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig resolves the configuration for a command from --config, the
// environment and any flag overrides.
func loadConfig(cmd *cobra.Command, flags map[string]string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	return config.Load(configPath, flags)
}

// colorFor reports whether output written to w should be colored.
func colorFor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.ColorEnabledFd(f.Fd())
}
