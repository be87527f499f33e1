package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/util"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	logLevel   string
}

// NewRootCommand builds the xmism command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   common.AppName,
		Short: "Run index lifecycle policies against an OpenSearch cluster",
		Long: `xmism applies the actions of an index lifecycle policy to managed indices.

Each action is split into steps (delete the index, update its replica count,
send a notification). Steps are retried with the backoff configured on the
action and their outcome is recorded as managed index metadata.

Quick start:
  xmism run -c runner.yaml --index logs-000001   # Run the whole policy
  xmism run -c runner.yaml --index logs-000001 --action 1
  xmism version`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", util.GetenvOrDefault(configEnv, ""), "Path to the runner configuration file (env "+configEnv+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides spec.log.level")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute runs the root command until it returns or the process is interrupted.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
