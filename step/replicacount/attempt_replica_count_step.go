package replicacount

import (
	"context"
	"fmt"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/hook"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/step"
)

// Name is the name of the replica count step.
const Name = "attempt_set_replica_count"

// AttemptReplicaCountStep sets index.number_of_replicas on the managed index.
type AttemptReplicaCountStep struct {
	step.BaseStep
	NumberOfReplicas int
}

// NewAttemptReplicaCountStep creates a replica count step in the starting state.
func NewAttemptReplicaCountStep(numberOfReplicas int) *AttemptReplicaCountStep {
	return &AttemptReplicaCountStep{
		BaseStep:         step.NewBaseStep(Name),
		NumberOfReplicas: numberOfReplicas,
	}
}

func SuccessMessage(index string, numberOfReplicas int) string {
	return fmt.Sprintf("Successfully set number_of_replicas to %d [index=%s]", numberOfReplicas, index)
}

func FailedMessage(index string, numberOfReplicas int) string {
	return fmt.Sprintf("Failed to set number_of_replicas to %d [index=%s]", numberOfReplicas, index)
}

func (s *AttemptReplicaCountStep) Execute(ctx context.Context, registry metrics.Registry) step.Step {
	sc := s.Context()
	if sc == nil {
		return s
	}
	if registry == nil {
		registry = metrics.Noop
	}
	am := registry.GetActionMetrics(metrics.ReplicaCount)
	tags := sc.Tags()
	indexName := sc.Metadata.Index
	log := s.Logger()
	start := s.Now()

	s.PreExecute(log)
	err := hook.Call(hook.Funcs{
		TryFn: func() error {
			resp, err := sc.Client.UpdateSettings(ctx, indexName, map[string]any{
				cluster.SettingNumberOfReplicas: s.NumberOfReplicas,
			})
			if err != nil {
				return err
			}
			if resp.Acknowledged {
				s.SetResult(step.StatusCompleted, map[string]any{
					step.InfoMessage: SuccessMessage(indexName, s.NumberOfReplicas),
				})
				return nil
			}
			msg := FailedMessage(indexName, s.NumberOfReplicas)
			log.Warn(msg)
			s.SetResult(step.StatusFailed, map[string]any{step.InfoMessage: msg})
			return nil
		},
		CatchFn: func(err error) error {
			// every error is hard here, a snapshot in progress included
			f := step.Classify(err)
			msg := FailedMessage(indexName, s.NumberOfReplicas)
			log.WithError(f.Cause).Error(msg)
			s.SetResult(step.StatusFailed, f.Info(msg))
			return nil
		},
		FinallyFn: func() {
			am.CumulativeLatency.Add(float64(s.Now().Sub(start).Nanoseconds())/float64(common.NanosPerMillisecond), tags)
		},
	})
	s.FailUnhandled(err, FailedMessage(indexName, s.NumberOfReplicas), log)
	switch s.Status() {
	case step.StatusCompleted:
		am.Successes.Add(1, tags)
	case step.StatusFailed:
		am.Failures.Add(1, tags)
	}
	s.PostExecute(log)

	return s
}

func (s *AttemptReplicaCountStep) IsIdempotent() bool { return true }

var _ step.Step = (*AttemptReplicaCountStep)(nil)
