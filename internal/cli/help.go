package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/smsbridge/smsbridge/internal/cli/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	groupMessaging = "messaging"
	groupSetup     = "setup"
)

var commandGroups = map[string]string{
	"serve":   groupMessaging,
	"send":    groupMessaging,
	"status":  groupMessaging,
	"events":  groupMessaging,
	"config":  groupSetup,
	"version": groupSetup,
}

// initHelp groups the root commands and installs the styled help renderer.
func initHelp() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupMessaging, Title: "MESSAGING"},
		&cobra.Group{ID: groupSetup, Title: "SETUP"},
	)
	for _, cmd := range rootCmd.Commands() {
		if gid, ok := commandGroups[cmd.Name()]; ok {
			cmd.GroupID = gid
		}
	}
	rootCmd.SetHelpFunc(styledHelp)
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		styledHelp(cmd, nil)
		return nil
	})
}

func styledHelp(cmd *cobra.Command, _ []string) {
	w := cmd.OutOrStdout()
	c := colorFor(w)

	fmt.Fprintln(w)
	if cmd == rootCmd {
		fmt.Fprintf(w, "  %s %s\n\n", ui.BrandEmoji, boldCyan("smsbridge", c))
	}
	text := cmd.Long
	if text == "" {
		text = cmd.Short
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			fmt.Fprintln(w)
		case strings.HasPrefix(line, "  "):
			fmt.Fprintf(w, "    %s\n", green(strings.TrimSpace(line), c))
		default:
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)

	useLine := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		useLine = cmd.CommandPath() + " [command]"
	}
	fmt.Fprintf(w, "%s\n  %s\n\n", heading("USAGE", c), useLine)

	printCommands(w, cmd, c)

	if cmd == rootCmd {
		printFlagSection(w, "FLAGS", cmd.Flags(), c)
	} else {
		printFlagSection(w, "FLAGS", cmd.LocalNonPersistentFlags(), c)
		printFlagSection(w, "GLOBAL FLAGS", cmd.InheritedFlags(), c)
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "%s\n\n", dim(fmt.Sprintf("Use \"%s [command] --help\" for more information about a command.", cmd.CommandPath()), c))
	}
}

// printCommands lists available subcommands under their group headings.
// Commands without a group are listed under COMMANDS.
func printCommands(w io.Writer, cmd *cobra.Command, c bool) {
	byGroup := make(map[string][]*cobra.Command)
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			byGroup[sub.GroupID] = append(byGroup[sub.GroupID], sub)
		}
	}

	sections := append(append([]*cobra.Group{}, cmd.Groups()...), &cobra.Group{Title: "COMMANDS"})
	for _, g := range sections {
		cmds := byGroup[g.ID]
		if len(cmds) == 0 {
			continue
		}
		width := 0
		for _, sub := range cmds {
			width = max(width, len(sub.Name()))
		}
		fmt.Fprintf(w, "%s\n", heading(g.Title, c))
		for _, sub := range cmds {
			fmt.Fprintf(w, "  %s%s\n", bold(fmt.Sprintf("%-*s", width+4, sub.Name()), c), dim(sub.Short, c))
		}
		fmt.Fprintln(w)
	}
}

func printFlagSection(w io.Writer, title string, fs *pflag.FlagSet, c bool) {
	visible := false
	fs.VisitAll(func(f *pflag.Flag) { visible = visible || !f.Hidden })
	if !visible {
		return
	}
	fmt.Fprintf(w, "%s\n", heading(title, c))
	for _, line := range strings.Split(strings.TrimRight(fs.FlagUsages(), "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			fmt.Fprintln(w, colorizeFlag(line, c))
		}
	}
	fmt.Fprintln(w)
}

// colorizeFlag colors the flag name of one FlagUsages line cyan and dims the
// description. pflag separates the two with at least three spaces.
func colorizeFlag(line string, c bool) string {
	if !c {
		return line
	}
	trimmed := strings.TrimLeft(line, " ")
	indent := line[:len(line)-len(trimmed)]
	if flag, desc, ok := strings.Cut(trimmed, "   "); ok {
		if desc = strings.TrimLeft(desc, " "); desc != "" {
			return indent + cyan(flag, c) + "   " + dim(desc, c)
		}
	}
	return indent + cyan(trimmed, c)
}

func heading(title string, c bool) string {
	return boldCyan(title, c)
}
