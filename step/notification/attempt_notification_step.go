package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmism/hook"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/notify"
	"github.com/mensylisir/xmism/script"
	"github.com/mensylisir/xmism/step"
)

const (
	// Name is the name of the notification step.
	Name = "attempt_notification"
	// ChannelTitle is the title of every event sent through a notification channel.
	ChannelTitle = "Index Management-ISM-Notification Action"
)

// AttemptNotificationStep renders the message template against the managed index metadata
// and delivers it to the legacy destination and the channel, whichever are configured.
type AttemptNotificationStep struct {
	step.BaseStep
	Destination     *notify.Destination
	Channel         *notify.Channel
	MessageTemplate script.Script
}

// NewAttemptNotificationStep creates a notification step in the starting state.
func NewAttemptNotificationStep(destination *notify.Destination, channel *notify.Channel, messageTemplate script.Script) *AttemptNotificationStep {
	return &AttemptNotificationStep{
		BaseStep:        step.NewBaseStep(Name),
		Destination:     destination,
		Channel:         channel,
		MessageTemplate: messageTemplate,
	}
}

func SuccessMessage(index string) string {
	return fmt.Sprintf("Successfully sent notification [index=%s]", index)
}

func FailedMessage(index string) string {
	return fmt.Sprintf("Failed to send notification [index=%s]", index)
}

func (s *AttemptNotificationStep) Execute(ctx context.Context, registry metrics.Registry) step.Step {
	sc := s.Context()
	if sc == nil {
		return s
	}
	if registry == nil {
		registry = metrics.Noop
	}
	am := registry.GetActionMetrics(metrics.Notification)
	tags := sc.Tags()
	indexName := sc.Metadata.Index
	log := s.Logger()

	s.PreExecute(log)
	err := hook.Call(hook.Funcs{
		TryFn: func() error {
			message, err := s.compileTemplate(sc)
			if err != nil {
				return err
			}
			if s.Destination != nil {
				legacy, err := s.Destination.BuildLegacyMessage("", message)
				if err != nil {
					return err
				}
				if err := sc.Client.PublishLegacy(ctx, legacy); err != nil {
					return err
				}
			}
			if s.Channel != nil {
				event := notify.ChannelEvent{
					ChannelID:   s.Channel.ID,
					Title:       ChannelTitle,
					ReferenceID: sc.Metadata.IndexUUID,
					Severity:    notify.SeverityInfo,
					Message:     message,
					User:        sc.User,
				}
				if err := sc.Client.SendNotification(ctx, event); err != nil {
					return err
				}
			}
			// both deliveries fail on any invalid response
			s.SetResult(step.StatusCompleted, map[string]any{step.InfoMessage: SuccessMessage(indexName)})
			am.Successes.Add(1, tags)
			return nil
		},
		CatchFn: func(err error) error {
			f := step.Classify(err)
			msg := FailedMessage(indexName)
			log.WithError(f.Cause).Error(msg)
			s.SetResult(step.StatusFailed, f.Info(msg))
			am.Failures.Add(1, tags)
			return nil
		},
	})
	if s.FailUnhandled(err, FailedMessage(indexName), log) {
		am.Failures.Add(1, tags)
	}
	s.PostExecute(log)

	return s
}

func (s *AttemptNotificationStep) compileTemplate(sc *step.StepContext) (string, error) {
	if sc.ScriptService == nil {
		return "", errors.New("no script service to compile the message template")
	}
	tmpl, err := sc.ScriptService.Compile(s.MessageTemplate)
	if err != nil {
		return "", err
	}
	metaMap, err := sc.Metadata.ToMap()
	if err != nil {
		return "", errors.Wrap(err, "failed to convert managed index metadata")
	}
	return tmpl.Execute(map[string]any{"ctx": metaMap})
}

// IsIdempotent is false: a retried attempt may deliver the message twice.
func (s *AttemptNotificationStep) IsIdempotent() bool { return false }

var _ step.Step = (*AttemptNotificationStep)(nil)
