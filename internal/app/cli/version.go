package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"submux/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "submux %s\n", version.GetVersion())
			fmt.Fprintf(out, "Platform: %s\n", version.Platform())
			if version.BuildTime != "" {
				fmt.Fprintf(out, "Build Time: %s\n", version.BuildTime)
			}
			if version.GitCommit != "" {
				fmt.Fprintf(out, "Git Commit: %s\n", version.GitCommit)
			}
		},
	}
}
