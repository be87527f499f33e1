package config

import (
	"time"

	"github.com/mensylisir/xmism/notify"
	"github.com/mensylisir/xmism/script"
)

// Kind is the only kind a runner configuration file may declare.
const Kind = "LifecycleRunner"

// Config is the top-level configuration structure.
type Config struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   MetadataSpec `yaml:"metadata"`
	Spec       *RunnerSpec  `yaml:"spec"`
}

// MetadataSpec defines metadata for the runner configuration.
type MetadataSpec struct {
	Name string `yaml:"name"`
}

// RunnerSpec defines where the runner connects to and which policy it applies.
type RunnerSpec struct {
	Cluster     ClusterSpec  `yaml:"cluster"`
	NodeName    string       `yaml:"nodeName,omitempty"` // reported as node_id on metrics
	User        *notify.User `yaml:"user,omitempty"`
	Log         LogSpec      `yaml:"log,omitempty"`
	Metrics     MetricsSpec  `yaml:"metrics,omitempty"`
	Concurrency int          `yaml:"concurrency,omitempty"`
	Policy      PolicySpec   `yaml:"policy"`
}

// ClusterSpec defines how to reach the cluster's REST API.
type ClusterSpec struct {
	Endpoint           string        `yaml:"endpoint"`
	Username           string        `yaml:"username,omitempty"`
	Password           string        `yaml:"password,omitempty"`
	Timeout            time.Duration `yaml:"timeout,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify,omitempty"`
	ChannelCacheTTL    time.Duration `yaml:"channelCacheTTL,omitempty"`
}

// LogSpec defines file logging. An empty Dir logs to the console only.
type LogSpec struct {
	Dir     string `yaml:"dir,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
	Level   string `yaml:"level,omitempty"`
}

// MetricsSpec defines the Prometheus endpoint. An empty ListenAddress disables it.
type MetricsSpec struct {
	ListenAddress string `yaml:"listenAddress,omitempty"`
	Namespace     string `yaml:"namespace,omitempty"`
}

// PolicySpec is the ordered list of actions applied to every managed index.
type PolicySpec struct {
	ID      string       `yaml:"id"`
	Actions []ActionSpec `yaml:"actions"`
}

// ActionSpec configures one action. Only the section matching Type is read.
type ActionSpec struct {
	Type         string            `yaml:"type"`
	Retry        *RetrySpec        `yaml:"retry,omitempty"`
	ReplicaCount *ReplicaCountSpec `yaml:"replicaCount,omitempty"`
	Notification *NotificationSpec `yaml:"notification,omitempty"`
}

// RetrySpec defines how often and how long to wait before a step is executed again.
type RetrySpec struct {
	Count   *int          `yaml:"count,omitempty"` // pointer to distinguish 0 from not set
	Backoff string        `yaml:"backoff,omitempty"`
	Delay   time.Duration `yaml:"delay,omitempty"`
}

// ReplicaCountSpec configures the replica_count action.
type ReplicaCountSpec struct {
	NumberOfReplicas *int `yaml:"numberOfReplicas"`
}

// NotificationSpec configures the notification action.
type NotificationSpec struct {
	Destination     *notify.Destination `yaml:"destination,omitempty"`
	Channel         *notify.Channel     `yaml:"channel,omitempty"`
	MessageTemplate script.Script       `yaml:"messageTemplate"`
}
