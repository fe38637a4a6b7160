package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// walkCommands visits every command in the tree depth-first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong appends the list of available subcommands to a parent
// command's Long text. It runs once per parent.
func enrichParentLong(cmd *cobra.Command) {
	if !cmd.HasSubCommands() || strings.Contains(cmd.Long, "\n\nSubcommands:\n") {
		return
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString("\n\nSubcommands:\n")
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			fmt.Fprintf(&sb, "  %-12s %s\n", sub.Name(), sub.Short)
		}
	}
	cmd.Long = sb.String()
}

// enrichCommandTree enriches every parent below root. The root help already
// lists its commands by group.
func enrichCommandTree(root *cobra.Command) {
	for _, sub := range root.Commands() {
		walkCommands(sub, enrichParentLong)
	}
}
