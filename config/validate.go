package config

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/script"
)

// Backoff strategies accepted in retry.backoff.
const (
	BackoffExponential = "exponential"
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
)

// Validate checks the structure of cfg. Every error names the offending field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion == "" {
		return errors.New("apiVersion is a required field")
	}
	if cfg.Kind != Kind {
		return errors.Errorf("kind must be '%s', got '%s'", Kind, cfg.Kind)
	}
	if cfg.Metadata.Name == "" {
		return errors.New("metadata.name is a required field")
	}
	if cfg.Spec == nil {
		return errors.New("spec section is missing or empty")
	}
	return validateSpec(cfg.Spec)
}

func validateSpec(spec *RunnerSpec) error {
	if spec.Cluster.Endpoint == "" {
		return errors.New("spec.cluster.endpoint is a required field")
	}
	u, err := url.Parse(spec.Cluster.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("spec.cluster.endpoint must be an http(s) URL, got '%s'", spec.Cluster.Endpoint)
	}
	if spec.Cluster.Timeout < 0 {
		return errors.New("spec.cluster.timeout must not be negative")
	}
	if spec.Concurrency < 0 {
		return errors.New("spec.concurrency must not be negative")
	}
	if spec.Log.Level != "" {
		if _, err := logrus.ParseLevel(spec.Log.Level); err != nil {
			return errors.Wrap(err, "spec.log.level")
		}
	}
	if spec.Policy.ID == "" {
		return errors.New("spec.policy.id is a required field")
	}
	if len(spec.Policy.Actions) == 0 {
		return errors.New("spec.policy.actions must contain at least one action")
	}
	for i := range spec.Policy.Actions {
		if err := validateAction(&spec.Policy.Actions[i]); err != nil {
			return errors.Wrapf(err, "spec.policy.actions[%d]", i)
		}
	}
	return nil
}

func validateAction(a *ActionSpec) error {
	switch a.Type {
	case common.ActionDelete:
	case common.ActionReplicaCount:
		if a.ReplicaCount == nil || a.ReplicaCount.NumberOfReplicas == nil {
			return errors.New("replicaCount.numberOfReplicas is required")
		}
		if *a.ReplicaCount.NumberOfReplicas < 0 {
			return errors.Errorf("replicaCount.numberOfReplicas must not be negative, got %d", *a.ReplicaCount.NumberOfReplicas)
		}
	case common.ActionNotification:
		n := a.Notification
		if n == nil {
			return errors.New("notification section is required")
		}
		if strings.TrimSpace(n.MessageTemplate.Source) == "" {
			return errors.New("notification.messageTemplate.source is required")
		}
		if lang := n.MessageTemplate.Lang; lang != "" && lang != script.LangMustache {
			return errors.Errorf("notification.messageTemplate.lang must be '%s', got '%s'", script.LangMustache, lang)
		}
		if n.Destination != nil {
			if err := n.Destination.Validate(); err != nil {
				return errors.Wrap(err, "notification.destination")
			}
		}
		if n.Channel != nil && n.Channel.ID == "" {
			return errors.New("notification.channel.id is required")
		}
	case "":
		return errors.New("type is a required field")
	default:
		return errors.Errorf("unknown action type '%s'", a.Type)
	}

	if r := a.Retry; r != nil {
		if r.Count != nil && *r.Count < 0 {
			return errors.Errorf("retry.count must not be negative, got %d", *r.Count)
		}
		switch r.Backoff {
		case "", BackoffExponential, BackoffConstant, BackoffLinear:
		default:
			return errors.Errorf("retry.backoff must be one of %s, %s or %s, got '%s'",
				BackoffExponential, BackoffConstant, BackoffLinear, r.Backoff)
		}
		if r.Delay < 0 {
			return errors.New("retry.delay must not be negative")
		}
	}
	return nil
}
