package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/21prnv/InfluenceIq/internal/ui"
)

// helpFunc renders colorized help on stdout.
func helpFunc(cmd *cobra.Command, _ []string) {
	w := os.Stdout
	fmt.Fprintf(w, "\n%s\n", ui.Title(strings.ToUpper(cmd.Name())))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(cmd.Long))
	}

	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Command(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s\n", ui.Command(cmd.CommandPath()), ui.Warn("<command>"))
	}

	if cmd.HasExample() {
		section(w, "Examples")
		for _, line := range strings.Split(cmd.Example, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case strings.HasPrefix(line, "#"):
				fmt.Fprintf(w, "  %s\n", ui.Dim(line))
			default:
				fmt.Fprintf(w, "  %s\n", ui.Success("$ "+strings.TrimPrefix(line, "$ ")))
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		section(w, "Commands")
		width := 0
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && len(c.Name()) > width {
				width = len(c.Name())
			}
		}
		for _, c := range cmd.Commands() {
			if !c.IsAvailableCommand() || c.Name() == "help" {
				continue
			}
			fmt.Fprintf(w, "  %s  %s\n", ui.Command(fmt.Sprintf("%-*s", width, c.Name())), ui.Dim(c.Short))
		}
	}

	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		printFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		printFlags(w, cmd.InheritedFlags().FlagUsages())
	}
	fmt.Fprintln(w)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", ui.Heading(title))
}

// printFlags colors pflag's usage block: flag names green, descriptions dim.
func printFlags(w io.Writer, usages string) {
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		name, desc, ok := strings.Cut(trimmed, "   ")
		if !ok {
			fmt.Fprintf(w, "  %s\n", ui.Success(trimmed))
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", ui.Success(fmt.Sprintf("%-30s", name)), ui.Dim(strings.TrimSpace(desc)))
	}
}
