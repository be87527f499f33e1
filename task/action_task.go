package task

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmism/action"
	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/hook"
	"github.com/mensylisir/xmism/logger"
	"github.com/mensylisir/xmism/runtime"
	"github.com/mensylisir/xmism/step"
	xmtime "github.com/mensylisir/xmism/time"
)

// ActionTask runs the steps of one action, retrying them as the action's retry policy allows.
type ActionTask struct {
	BaseTask
	action      action.Action
	actionIndex int
}

// NewActionTask creates a task for the action at position actionIndex of the policy.
func NewActionTask(a action.Action, actionIndex int) *ActionTask {
	return &ActionTask{
		BaseTask:    NewBaseTask(a.Type(), fmt.Sprintf("Run %s action", a.Type())),
		action:      a,
		actionIndex: actionIndex,
	}
}

func (t *ActionTask) Execute(ctx context.Context, rt runtime.Runtime, meta step.ManagedIndexMetaData, log *logrus.Entry) (step.ManagedIndexMetaData, error) {
	if rt == nil {
		return meta, errors.Errorf("task %s: runtime cannot be nil", t.Name())
	}
	if log == nil {
		log = logger.Log.ForAction(meta.Index, meta.PolicyID, t.Name())
	}

	meta = t.startAction(meta)
	steps := t.action.Steps()
	retry := t.action.Retry()
	log.Infof("Executing task: %s (%s) with %d step(s)", t.Name(), t.Description(), len(steps))

	for i, s := range steps {
		stepLog := log.WithFields(logrus.Fields{
			common.StepName: s.Name(),
			"step_index":    fmt.Sprintf("%d/%d", i+1, len(steps)),
		})
		policy := retry.BackOff()

	attempts:
		for {
			if err := ctx.Err(); err != nil {
				return meta, errors.Wrapf(err, "action %s on index %s interrupted", t.Name(), meta.Index)
			}

			var status step.StepStatus
			var info map[string]any
			meta, status, info = t.executeStep(ctx, rt, s, meta, stepLog)

			switch status {
			case step.StatusCompleted:
				stepLog.Infof("Step %s completed: %v", s.Name(), info[step.InfoMessage])
				break attempts
			case step.StatusConditionNotMet, step.StatusFailed:
				if status == step.StatusFailed && !s.IsIdempotent() {
					return t.fail(meta, s.Name(), status, info, false)
				}
				wait := policy.NextBackOff()
				if wait == backoff.Stop {
					stepLog.Warnf("Step %s ended %s and has no retries left", s.Name(), status)
					return t.fail(meta, s.Name(), status, info, true)
				}
				meta = t.consumeRetry(meta)
				stepLog.Warnf("Step %s ended %s, retrying in %s", s.Name(), status, xmtime.ShortDur(wait))
				if err := t.sleep(ctx, wait); err != nil {
					return meta, errors.Wrapf(err, "action %s on index %s interrupted", t.Name(), meta.Index)
				}
			default:
				// the step never ran
				return t.fail(meta, s.Name(), status, info, false)
			}
		}
	}

	log.Infof("Task %s completed successfully.", t.Name())
	return meta, nil
}

// executeStep runs one attempt of s and folds its outcome into meta. A panicking step is
// reported as failed with the panic as cause.
func (t *ActionTask) executeStep(ctx context.Context, rt runtime.Runtime, s step.Step, meta step.ManagedIndexMetaData, log *logrus.Entry) (step.ManagedIndexMetaData, step.StepStatus, map[string]any) {
	var updated step.ManagedIndexMetaData
	err := hook.Call(hook.Funcs{
		TryFn: func() error {
			s.SetContext(rt.StepContext(meta))
			s.Execute(ctx, rt.Metrics())
			updated = s.GetUpdatedManagedIndexMetadata(meta)
			return nil
		},
		CatchFn: func(err error) error { return err },
	})
	if err == nil {
		return updated, s.Status(), s.Info()
	}

	log.WithError(err).Errorf("Step %s did not return normally", s.Name())
	info := step.Classify(err).Info(fmt.Sprintf("Step %s crashed [index=%s]", s.Name(), meta.Index))
	updated = meta.Copy()
	updated.TransitionTo = nil
	updated.StepMetaData = &step.StepMetaData{Name: s.Name(), StartTime: t.now().UnixMilli(), Status: step.StatusFailed}
	updated.Info = info
	return updated, step.StatusFailed, info
}

func (t *ActionTask) startAction(meta step.ManagedIndexMetaData) step.ManagedIndexMetaData {
	out := meta.Copy()
	if out.ActionMetaData != nil && out.ActionMetaData.Name == t.Name() && out.ActionMetaData.Index == t.actionIndex {
		return out
	}
	start := t.now().UnixMilli()
	out.ActionMetaData = &step.ActionMetaData{Name: t.Name(), StartTime: &start, Index: t.actionIndex}
	out.PolicyRetryInfo = &step.PolicyRetryInfo{}
	return out
}

func (t *ActionTask) consumeRetry(meta step.ManagedIndexMetaData) step.ManagedIndexMetaData {
	out := meta.Copy()
	now := t.now().UnixMilli()
	if out.ActionMetaData == nil {
		out.ActionMetaData = &step.ActionMetaData{Name: t.Name(), Index: t.actionIndex}
	}
	out.ActionMetaData.ConsumedRetries++
	out.ActionMetaData.LastRetryTime = &now
	if out.PolicyRetryInfo == nil {
		out.PolicyRetryInfo = &step.PolicyRetryInfo{}
	}
	out.PolicyRetryInfo.ConsumedRetries++
	return out
}

// fail marks the action and the policy as failed.
func (t *ActionTask) fail(meta step.ManagedIndexMetaData, stepName string, status step.StepStatus, info map[string]any, exhausted bool) (step.ManagedIndexMetaData, error) {
	out := meta.Copy()
	if out.ActionMetaData != nil {
		out.ActionMetaData.Failed = true
	}
	if out.PolicyRetryInfo == nil {
		out.PolicyRetryInfo = &step.PolicyRetryInfo{}
	}
	out.PolicyRetryInfo.Failed = true
	return out, &StepFailedError{
		Index:            meta.Index,
		Action:           t.Name(),
		Step:             stepName,
		Status:           status,
		Info:             info,
		RetriesExhausted: exhausted,
	}
}

var _ Task = (*ActionTask)(nil)
