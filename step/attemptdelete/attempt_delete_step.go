package attemptdelete

import (
	"context"
	"fmt"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/hook"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/step"
)

// Name is the name of the delete step.
const Name = "attempt_delete"

// AttemptDeleteStep deletes the managed index.
type AttemptDeleteStep struct {
	step.BaseStep
}

// NewAttemptDeleteStep creates a delete step in the starting state.
func NewAttemptDeleteStep() *AttemptDeleteStep {
	return &AttemptDeleteStep{BaseStep: step.NewBaseStep(Name)}
}

func SuccessMessage(index string) string {
	return fmt.Sprintf("Successfully deleted index [index=%s]", index)
}

func FailedMessage(index string) string {
	return fmt.Sprintf("Failed to delete index [index=%s]", index)
}

func SnapshotMessage(index string) string {
	return fmt.Sprintf("Index had snapshot in progress, retrying deletion [index=%s]", index)
}

func (s *AttemptDeleteStep) Execute(ctx context.Context, registry metrics.Registry) step.Step {
	sc := s.Context()
	if sc == nil {
		return s
	}
	if registry == nil {
		registry = metrics.Noop
	}
	am := registry.GetActionMetrics(metrics.Delete)
	tags := sc.Tags()
	indexName := sc.Metadata.Index
	log := s.Logger()

	s.PreExecute(log)
	err := hook.Call(hook.Funcs{
		TryFn: func() error {
			resp, err := sc.Client.DeleteIndex(ctx, indexName)
			if err != nil {
				return err
			}
			if resp.Acknowledged {
				s.SetResult(step.StatusCompleted, map[string]any{step.InfoMessage: SuccessMessage(indexName)})
				am.Successes.Add(1, tags)
				return nil
			}
			msg := FailedMessage(indexName)
			log.Warn(msg)
			s.SetResult(step.StatusFailed, map[string]any{step.InfoMessage: msg})
			am.Failures.Add(1, tags)
			return nil
		},
		CatchFn: func(err error) error {
			f := step.Classify(err, cluster.IsSnapshotInProgress)
			if f.Transient() {
				msg := SnapshotMessage(indexName)
				log.WithError(f.Cause).Warn(msg)
				s.SetResult(step.StatusConditionNotMet, map[string]any{step.InfoMessage: msg})
				return nil
			}
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

func (s *AttemptDeleteStep) IsIdempotent() bool { return true }

var _ step.Step = (*AttemptDeleteStep)(nil)
