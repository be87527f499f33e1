package config

import (
	"os"
	"time"

	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/script"
)

// Define default constants
const (
	DefaultAPIVersion      = "xmism.mensylisir.io/v1alpha1"
	DefaultTimeout         = 30 * time.Second
	DefaultChannelCacheTTL = 5 * time.Minute
	DefaultRetryCount      = 3
	DefaultBackoff         = BackoffExponential
	DefaultRetryDelay      = time.Minute
	DefaultConcurrency     = 4
	DefaultNamespace       = common.AppName
	DefaultLogLevel        = "info"
)

// SetDefaults fills every unset field of cfg.Spec in place.
func SetDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Spec == nil {
		cfg.Spec = &RunnerSpec{}
	}
	spec := cfg.Spec

	if spec.Cluster.Timeout == 0 {
		spec.Cluster.Timeout = DefaultTimeout
	}
	if spec.Cluster.ChannelCacheTTL == 0 {
		spec.Cluster.ChannelCacheTTL = DefaultChannelCacheTTL
	}
	if spec.NodeName == "" {
		spec.NodeName = defaultNodeName()
	}
	if spec.Concurrency == 0 {
		spec.Concurrency = DefaultConcurrency
	}
	if spec.Metrics.Namespace == "" {
		spec.Metrics.Namespace = DefaultNamespace
	}
	if spec.Log.Level == "" {
		spec.Log.Level = DefaultLogLevel
	}

	for i := range spec.Policy.Actions {
		setActionDefaults(&spec.Policy.Actions[i])
	}
}

func setActionDefaults(a *ActionSpec) {
	if a.Retry == nil {
		a.Retry = &RetrySpec{}
	}
	if a.Retry.Count == nil {
		count := DefaultRetryCount
		a.Retry.Count = &count
	}
	if a.Retry.Backoff == "" {
		a.Retry.Backoff = DefaultBackoff
	}
	if a.Retry.Delay == 0 {
		a.Retry.Delay = DefaultRetryDelay
	}
	if a.Notification != nil && a.Notification.MessageTemplate.Lang == "" {
		a.Notification.MessageTemplate.Lang = script.LangMustache
	}
}

func defaultNodeName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return common.AppName
}
