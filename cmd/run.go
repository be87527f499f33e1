package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmism/action"
	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/config"
	"github.com/mensylisir/xmism/logger"
	"github.com/mensylisir/xmism/runtime"
	"github.com/mensylisir/xmism/step"
	"github.com/mensylisir/xmism/task"
	xmtime "github.com/mensylisir/xmism/time"
	"github.com/mensylisir/xmism/util"
)

const maxMessageWidth = 120

const metricsPath = "/metrics"

// configEnv names the configuration file when --config is not given.
const configEnv = "XMISM_CONFIG"

func newRunCommand(root *rootOptions) *cobra.Command {
	args := runtime.NewCliArgs()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured policy against managed indices",
		Long: `Run the actions of the configured policy against every --index.

Indices run concurrently, bounded by spec.concurrency. An index is given as
its name, optionally followed by ":<uuid>" to set the index uuid recorded in
the metadata and used as the notification reference id.

Examples:
  # Whole policy
  xmism run -c runner.yaml --index logs-000001 --index logs-000002

  # Only the second action, exposing Prometheus metrics while running
  xmism run -c runner.yaml --index logs-000001:Kd3c0Zl2Q --action 1 --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args.Debug = root.verbose
			args.LogLevel = root.logLevel
			return runPolicy(cmd.Context(), cmd.OutOrStdout(), root.configPath, args)
		},
	}

	cmd.Flags().StringArrayVar(&args.Indices, "index", nil, "Managed index to run the policy against (repeatable)")
	cmd.Flags().IntVar(&args.Action, "action", -1, "Run only the action at this position of the policy")
	cmd.Flags().StringVar(&args.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address; overrides spec.metrics.listenAddress")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func runPolicy(ctx context.Context, out io.Writer, configPath string, args *runtime.CliArgs) error {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}
	config.SetDefaults(cfg)
	spec := cfg.Spec

	if err := initLogger(spec.Log, args); err != nil {
		return err
	}
	log := logger.Log.WithField("app", common.AppName)

	reg := prometheus.NewRegistry()
	cr, err := runtime.NewClusterRuntime(cfg, args, reg, log)
	if err != nil {
		return err
	}

	actions, offset, err := selectActions(cr.Policy, args)
	if err != nil {
		return err
	}
	metas, err := managedIndices(args.Indices, cr.Policy.ID)
	if err != nil {
		return err
	}

	if addr := util.FirstNonEmpty(args.MetricsAddr, spec.Metrics.ListenAddress); addr != "" {
		shutdown, err := serveMetrics(addr, reg, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	runner := &task.Runner{Concurrency: spec.Concurrency, Offset: offset}
	results := runner.Run(ctx, cr, actions, metas)

	failed := printResults(out, results, time.Now())
	if failed > 0 {
		return errors.Errorf("%d of %d index(es) did not complete", failed, len(results))
	}
	return nil
}

func initLogger(spec config.LogSpec, args *runtime.CliArgs) error {
	levelName := util.FirstNonEmpty(args.LogLevel, spec.Level)
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", levelName)
	}
	return logger.InitGlobalLogger(spec.Dir, args.Debug || spec.Verbose, level)
}

// selectActions returns the actions to run and the policy position of the first one.
func selectActions(policy config.PolicySpec, args *runtime.CliArgs) ([]action.Action, int, error) {
	actions, err := action.FromPolicy(policy)
	if err != nil {
		return nil, 0, err
	}
	if args.RunsWholePolicy() {
		return actions, 0, nil
	}
	if args.Action >= len(actions) {
		return nil, 0, errors.Errorf("--action %d is out of range, policy %s has %d action(s)", args.Action, policy.ID, len(actions))
	}
	return actions[args.Action : args.Action+1], args.Action, nil
}

// managedIndices builds the starting metadata for every "name" or "name:uuid" argument.
func managedIndices(indices []string, policyID string) ([]step.ManagedIndexMetaData, error) {
	if len(indices) == 0 {
		return nil, errors.New("at least one --index is required")
	}
	metas := make([]step.ManagedIndexMetaData, 0, len(indices))
	seen := make(map[string]struct{}, len(indices))
	for _, arg := range indices {
		name, uuid, _ := strings.Cut(arg, ":")
		if name == "" {
			return nil, errors.Errorf("invalid --index %q: index name is empty", arg)
		}
		if _, dup := seen[name]; dup {
			return nil, errors.Errorf("index %s given more than once", name)
		}
		seen[name] = struct{}{}
		metas = append(metas, step.ManagedIndexMetaData{Index: name, IndexUUID: uuid, PolicyID: policyID})
	}
	return metas, nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Entry) (func(), error) {
	reg.MustRegister(collectors.NewGoCollector())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen for metrics on %s", addr)
	}
	srv := &http.Server{Handler: metricsHandler(reg), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
	log.Infof("Serving metrics on %s%s", ln.Addr(), metricsPath)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// printResults writes one line per index and returns how many did not complete.
func printResults(out io.Writer, results []task.Result, now time.Time) int {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tACTION\tSTEP\tSTATUS\tELAPSED\tMESSAGE")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		actionName, stepName, status, elapsed, message := "-", "-", "-", "-", ""
		if am := r.Metadata.ActionMetaData; am != nil {
			actionName = am.Name
			elapsed = xmtime.ShortDur(xmtime.SinceMillis(am.StartTime, now))
		}
		if sm := r.Metadata.StepMetaData; sm != nil {
			stepName = sm.Name
			status = sm.Status.String()
		}
		if m, ok := r.Metadata.Info[step.InfoMessage]; ok {
			message = fmt.Sprint(m)
		} else if r.Err != nil {
			message = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Index, actionName, stepName, status, elapsed,
			util.TruncateString(message, maxMessageWidth, "..."))
	}
	_ = w.Flush()
	return failed
}
