package runtime

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/config"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/script"
)

// DefaultTemplateCacheTTL is how long a compiled message template stays cached unused.
const DefaultTemplateCacheTTL = 10 * time.Minute

// ClusterRuntime holds all runtime information for one run against a cluster.
// It embeds a Runtime built from the defaulted configuration.
type ClusterRuntime struct {
	Runtime
	Spec   *config.RunnerSpec // defaulted and validated runner specification
	Policy config.PolicySpec
	Arg    *CliArgs
	Log    *logrus.Entry
}

// NewClusterRuntime applies defaults to cfg and creates the cluster client, template
// service and Prometheus metrics registered with reg. A nil reg uses the Noop registry.
func NewClusterRuntime(cfg *config.Config, args *CliArgs, reg prometheus.Registerer, baseLogger *logrus.Entry) (*ClusterRuntime, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil when creating ClusterRuntime")
	}
	if args == nil {
		args = NewCliArgs()
	}
	if baseLogger == nil {
		baseLogger = logrus.NewEntry(logrus.StandardLogger())
	}

	// Step 1: defaults are applied in place
	config.SetDefaults(cfg)
	spec := cfg.Spec

	// Step 2: cluster client
	client, err := cluster.NewHTTPClient(cluster.Config{
		Endpoint:           spec.Cluster.Endpoint,
		Username:           spec.Cluster.Username,
		Password:           spec.Cluster.Password,
		Timeout:            spec.Cluster.Timeout,
		InsecureSkipVerify: spec.Cluster.InsecureSkipVerify,
		ChannelCacheTTL:    spec.Cluster.ChannelCacheTTL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cluster client")
	}

	// Step 3: metrics
	var registry metrics.Registry = metrics.Noop
	if reg != nil {
		registry, err = metrics.NewPrometheusRegistry(reg, spec.Metrics.Namespace)
		if err != nil {
			return nil, errors.Wrap(err, "failed to register action metrics")
		}
	}

	base, err := NewRuntime(Config{
		NodeName:      spec.NodeName,
		User:          spec.User,
		Client:        client,
		ScriptService: script.NewMustacheService(DefaultTemplateCacheTTL),
		Metrics:       registry,
	})
	if err != nil {
		return nil, err
	}

	scopedLogger := baseLogger.WithFields(logrus.Fields{
		"runtime_scope": "cluster",
		"runner_name":   cfg.Metadata.Name,
	})
	scopedLogger.Infof("ClusterRuntime initialized for %s as node %s with %d action(s) of policy %s.",
		spec.Cluster.Endpoint, spec.NodeName, len(spec.Policy.Actions), spec.Policy.ID)

	return &ClusterRuntime{
		Runtime: base,
		Spec:    spec,
		Policy:  spec.Policy,
		Arg:     args,
		Log:     scopedLogger,
	}, nil
}

// LogEntry returns the scoped logger for this ClusterRuntime.
func (cr *ClusterRuntime) LogEntry() *logrus.Entry {
	return cr.Log
}
