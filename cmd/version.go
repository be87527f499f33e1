package cmd

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmism/common"
)

// GitCommit is set at build time with -ldflags "-X github.com/mensylisir/xmism/cmd.GitCommit=...".
var GitCommit = "unknown"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of xmism",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, %s %s/%s)\n",
				common.AppName, common.AppVersion, GitCommit, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
		},
	}
}
