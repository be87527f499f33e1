// Package action turns configured policy actions into the steps that carry them out.
package action

import (
	"github.com/pkg/errors"

	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/config"
	"github.com/mensylisir/xmism/notify"
	"github.com/mensylisir/xmism/script"
	"github.com/mensylisir/xmism/step"
	"github.com/mensylisir/xmism/step/attemptdelete"
	"github.com/mensylisir/xmism/step/notification"
	"github.com/mensylisir/xmism/step/replicacount"
)

// Action is one entry of a policy state.
type Action interface {
	Type() string
	// Steps returns new step instances, in execution order, each time it is called.
	Steps() []step.Step
	Retry() Retry
}

type base struct {
	retry Retry
}

func (b base) Retry() Retry { return b.retry }

// DeleteAction deletes the managed index.
type DeleteAction struct {
	base
}

func NewDeleteAction(retry Retry) *DeleteAction {
	return &DeleteAction{base: base{retry: retry}}
}

func (a *DeleteAction) Type() string { return common.ActionDelete }

func (a *DeleteAction) Steps() []step.Step {
	return []step.Step{attemptdelete.NewAttemptDeleteStep()}
}

// ReplicaCountAction sets the number of replicas of the managed index.
type ReplicaCountAction struct {
	base
	NumberOfReplicas int
}

func NewReplicaCountAction(numberOfReplicas int, retry Retry) *ReplicaCountAction {
	return &ReplicaCountAction{base: base{retry: retry}, NumberOfReplicas: numberOfReplicas}
}

func (a *ReplicaCountAction) Type() string { return common.ActionReplicaCount }

func (a *ReplicaCountAction) Steps() []step.Step {
	return []step.Step{replicacount.NewAttemptReplicaCountStep(a.NumberOfReplicas)}
}

// NotificationAction sends a rendered message to a destination, a channel, or both.
type NotificationAction struct {
	base
	Destination     *notify.Destination
	Channel         *notify.Channel
	MessageTemplate script.Script
}

func NewNotificationAction(destination *notify.Destination, channel *notify.Channel, messageTemplate script.Script, retry Retry) *NotificationAction {
	return &NotificationAction{
		base:            base{retry: retry},
		Destination:     destination,
		Channel:         channel,
		MessageTemplate: messageTemplate,
	}
}

func (a *NotificationAction) Type() string { return common.ActionNotification }

func (a *NotificationAction) Steps() []step.Step {
	return []step.Step{notification.NewAttemptNotificationStep(a.Destination, a.Channel, a.MessageTemplate)}
}

// FromConfig builds the action described by spec.
func FromConfig(spec config.ActionSpec) (Action, error) {
	retry := retryFromSpec(spec.Retry)
	switch spec.Type {
	case common.ActionDelete:
		return NewDeleteAction(retry), nil
	case common.ActionReplicaCount:
		if spec.ReplicaCount == nil || spec.ReplicaCount.NumberOfReplicas == nil {
			return nil, errors.New("replica_count action requires numberOfReplicas")
		}
		return NewReplicaCountAction(*spec.ReplicaCount.NumberOfReplicas, retry), nil
	case common.ActionNotification:
		if spec.Notification == nil {
			return nil, errors.New("notification action requires a notification section")
		}
		n := spec.Notification
		return NewNotificationAction(n.Destination, n.Channel, n.MessageTemplate, retry), nil
	default:
		return nil, errors.Errorf("unknown action type '%s'", spec.Type)
	}
}

// FromPolicy builds every action of the policy, in order.
func FromPolicy(policy config.PolicySpec) ([]Action, error) {
	actions := make([]Action, 0, len(policy.Actions))
	for i, spec := range policy.Actions {
		a, err := FromConfig(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "policy %s action %d", policy.ID, i)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
