package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagGroups orders the flags of every command under a heading.
var flagGroups = []struct {
	name  string
	flags []string
}{
	{"IMPORT OPTIONS", []string{"reload", "list", "no-progress"}},
	{"SEARCH OPTIONS", []string{"feature", "limit", "format"}},
	{"SERVER OPTIONS", []string{"host", "port", "enable-cors"}},
	{"DATABASE OPTIONS", []string{"rebuild", "prune", "force"}},
	{"GLOBAL OPTIONS", []string{"config", "db", "help", "verbose", "quiet", "no-color", "debug"}},
}

// SetupGroupedHelp configures a command to display flags grouped by category
func SetupGroupedHelp(cmd *cobra.Command) {
	originalHelpFunc := cmd.HelpFunc()
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		// First print the original help without flags
		setHidden(cmd, true)
		originalHelpFunc(cmd, args)
		setHidden(cmd, false)

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "\nFlags:")
		for _, group := range flagGroups {
			printFlagGroup(w, cmd, group.name, group.flags)
		}

		fmt.Fprintln(w, "\nEnvironment Variables:")
		for _, env := range envVars {
			fmt.Fprintf(w, "  %-22s %s\n", env.name, env.desc)
		}
		fmt.Fprintf(w, "  %-22s %s\n", "NO_COLOR", "Disable colored output")
	})
}

func setHidden(cmd *cobra.Command, hidden bool) {
	hide := func(flag *pflag.Flag) { flag.Hidden = hidden }
	cmd.Flags().VisitAll(hide)
	cmd.InheritedFlags().VisitAll(hide)
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag
	}
	return cmd.InheritedFlags().Lookup(name)
}

// printFlagGroup prints a group of flags with a header
func printFlagGroup(w io.Writer, cmd *cobra.Command, groupName string, flagNames []string) {
	var flags []*pflag.Flag
	for _, name := range flagNames {
		if flag := lookupFlag(cmd, name); flag != nil {
			flags = append(flags, flag)
		}
	}

	if len(flags) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s:\n", groupName)
	for _, flag := range flags {
		fmt.Fprintln(w, flagLine(flag))
	}
}

func flagLine(flag *pflag.Flag) string {
	shorthand := ""
	if flag.Shorthand != "" {
		shorthand = fmt.Sprintf("-%s, ", flag.Shorthand)
	}

	line := fmt.Sprintf("  %s--%s", shorthand, flag.Name)

	// Add type information
	typeStr := ""
	switch flag.Value.Type() {
	case "string":
		if flag.DefValue != "" {
			typeStr = fmt.Sprintf(" string (default %q)", flag.DefValue)
		} else {
			typeStr = " string"
		}
	case "stringSlice":
		typeStr = " strings"
	case "int", "int32", "int64":
		if flag.DefValue != "0" {
			typeStr = fmt.Sprintf(" int (default %s)", flag.DefValue)
		} else {
			typeStr = " int"
		}
	case "bool":
	default:
		if flag.DefValue != "" && flag.DefValue != "[]" {
			typeStr = fmt.Sprintf(" (default %s)", flag.DefValue)
		}
	}

	// Ensure proper alignment
	padding := max(45-len(line)-len(typeStr), 1)
	return fmt.Sprintf("%s%s%s%s", line, typeStr, strings.Repeat(" ", padding), flag.Usage)
}
