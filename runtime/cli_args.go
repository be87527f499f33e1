package runtime

// CliArgs holds command-line arguments that affect a run.
// These are passed from the Cobra command execution logic.
type CliArgs struct {
	Indices     []string // managed indices to run the policy against
	Action      int      // index of the single action to run, -1 for the whole policy
	MetricsAddr string   // overrides spec.metrics.listenAddress when set

	Debug    bool   // set by -v or --log-level=debug
	LogLevel string // overrides spec.log.level when set
}

// NewCliArgs creates a new instance of CliArgs with default values.
func NewCliArgs() *CliArgs {
	return &CliArgs{
		Action: -1,
	}
}

// RunsWholePolicy reports whether every action of the policy should run.
func (a *CliArgs) RunsWholePolicy() bool {
	return a == nil || a.Action < 0
}
