package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/smsbridge/smsbridge/internal/cli/ui"
	"github.com/smsbridge/smsbridge/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print resolved configuration",
	Long: `Load and print the resolved smsbridge configuration as TOML.
Shows the result of merging defaults, smsbridge.toml, environment variables, and flags.`,
	RunE: runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default smsbridge.toml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long: `Get a specific configuration value by dotted key path.
Examples: server.port, sms.provider, sms.etxt.base_url, events.enabled`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in smsbridge.toml",
	Long: `Set a configuration value in the smsbridge.toml config file.
Creates the file if it doesn't exist.
Examples:
  smsbridge config set sms.provider etxt
  smsbridge config set sms.etxt.api_key <key>
  smsbridge config set sms.allowed_countries NZ,AU,US`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func configPathFor(cmd *cobra.Command) string {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return config.DefaultPath
	}
	return configPath
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return configHints(err)
	}

	if outputFormat(cmd) == "json" {
		return writeJSON(cmd.OutOrStdout(), cfg)
	}

	out, err := cfg.ToTOML()
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPathFor(cmd)
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return withHints(fmt.Errorf("%s already exists", path),
			"smsbridge config init --force   # overwrite it")
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.GenerateDefault(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if outputFormat(cmd) == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"path": path})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.SymbolCheck, path)
	fmt.Fprintf(cmd.OutOrStdout(), "  Next: smsbridge config set sms.provider etxt\n")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if !config.IsValidKey(args[0]) {
		return fmt.Errorf("unknown configuration key: %s", args[0])
	}
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return configHints(err)
	}

	value, err := config.GetValue(cfg, args[0])
	if err != nil {
		return err
	}

	if outputFormat(cmd) == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"key": args[0], "value": value})
	}
	if list, ok := value.([]string); ok {
		value = strings.Join(list, ",")
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	configPath := configPathFor(cmd)
	key, value := args[0], args[1]

	if !config.IsValidKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := config.SetValue(configPath, key, value); err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	fmt.Fprintf(cmd.OutOrStdout(), "Written to %s\n", configPath)

	// Values are often set one at a time, so an incomplete file only warns.
	if _, err := config.Load(configPath, nil); err != nil {
		msg := err.Error()
		if _, rest, ok := strings.Cut(msg, ": "); ok {
			msg = rest
		}
		fmt.Fprint(cmd.ErrOrStderr(), ui.FormatWarning(msg))
	}
	return nil
}
