package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmism/action"
	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/cluster/clustertest"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/runtime"
	"github.com/mensylisir/xmism/step"
	"github.com/mensylisir/xmism/step/attemptdelete"
)

// --- Mock Step Implementations ---

// scriptedStep ends each Execute with the next status of its script.
type scriptedStep struct {
	step.BaseStep
	script     []step.StepStatus
	idempotent bool
	calls      int
	panicAt    int
}

func newScriptedStep(idempotent bool, script ...step.StepStatus) *scriptedStep {
	return &scriptedStep{BaseStep: step.NewBaseStep("scripted"), script: script, idempotent: idempotent, panicAt: -1}
}

func (s *scriptedStep) Execute(context.Context, metrics.Registry) step.Step {
	if s.Context() == nil {
		return s
	}
	defer func() { s.calls++ }()
	if s.calls == s.panicAt {
		panic("scripted step exploded")
	}
	status := s.script[min(s.calls, len(s.script)-1)]
	s.SetResult(status, map[string]any{step.InfoMessage: status.String()})
	return s
}

func (s *scriptedStep) IsIdempotent() bool { return s.idempotent }

// --- Mock Action ---

type mockAction struct {
	typ   string
	steps []step.Step
	retry action.Retry
}

func (a *mockAction) Type() string        { return a.typ }
func (a *mockAction) Steps() []step.Step  { return a.steps }
func (a *mockAction) Retry() action.Retry { return a.retry }

// --- Clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.UnixMilli(1_700_000_000_000)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newRuntime(t *testing.T, client cluster.Client, reg metrics.Registry) runtime.Runtime {
	t.Helper()
	rt, err := runtime.NewRuntime(runtime.Config{NodeName: "node-1", Client: client, Metrics: reg})
	require.NoError(t, err)
	return rt
}

func newTask(a action.Action, clock *fakeClock) *ActionTask {
	task := NewActionTask(a, 0)
	task.SetClock(clock.Now, clock.Sleep)
	return task
}

var testMeta = step.ManagedIndexMetaData{Index: "logs-1", IndexUUID: "u1", PolicyID: "retention"}

func TestActionTask_DeleteCompletes(t *testing.T) {
	client := clustertest.Acknowledging()
	rec := metrics.NewRecorder()
	clock := newFakeClock()

	task := newTask(action.NewDeleteAction(action.DefaultRetry), clock)
	assert.Equal(t, "delete", task.Name())
	assert.Equal(t, "Run delete action", task.Description())

	meta, err := task.Execute(context.Background(), newRuntime(t, client, rec), testMeta, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"logs-1"}, client.Deleted)
	require.NotNil(t, meta.StepMetaData)
	assert.Equal(t, attemptdelete.Name, meta.StepMetaData.Name)
	assert.Equal(t, step.StatusCompleted, meta.StepMetaData.Status)
	require.NotNil(t, meta.ActionMetaData)
	assert.Equal(t, "delete", meta.ActionMetaData.Name)
	assert.Equal(t, clock.Now().UnixMilli(), *meta.ActionMetaData.StartTime)
	assert.False(t, meta.ActionMetaData.Failed)
	assert.Equal(t, &step.PolicyRetryInfo{}, meta.PolicyRetryInfo)
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 1, rec.Action(metrics.Delete).Successes.Count())
	assert.Nil(t, testMeta.StepMetaData, "input metadata must not change")
}

func TestActionTask_SnapshotRetriesUntilDeleted(t *testing.T) {
	attempts := 0
	client := &clustertest.FakeClient{DeleteFunc: func(context.Context, string) (cluster.AcknowledgedResponse, error) {
		attempts++
		if attempts < 3 {
			return cluster.AcknowledgedResponse{}, &cluster.RemoteTransportError{
				Address: "[node-2]",
				Cause:   &cluster.SnapshotInProgressError{Index: "logs-1"},
			}
		}
		return cluster.AcknowledgedResponse{Acknowledged: true}, nil
	}}
	clock := newFakeClock()
	retry := action.Retry{Count: 3, Backoff: "exponential", Delay: time.Second}

	task := newTask(action.NewDeleteAction(retry), clock)
	meta, err := task.Execute(context.Background(), newRuntime(t, client, metrics.Noop), testMeta, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
	assert.Equal(t, step.StatusCompleted, meta.StepMetaData.Status)
	assert.Equal(t, 2, meta.ActionMetaData.ConsumedRetries)
	assert.Equal(t, 2, meta.PolicyRetryInfo.ConsumedRetries)
	assert.False(t, meta.PolicyRetryInfo.Failed)
}

func TestActionTask_RetriesExhausted(t *testing.T) {
	client := &clustertest.FakeClient{DeleteErr: &cluster.SnapshotInProgressError{Index: "logs-1"}}
	clock := newFakeClock()
	retry := action.Retry{Count: 2, Backoff: "constant", Delay: time.Minute}

	task := newTask(action.NewDeleteAction(retry), clock)
	meta, err := task.Execute(context.Background(), newRuntime(t, client, metrics.Noop), testMeta, nil)

	var failed *StepFailedError
	require.ErrorAs(t, err, &failed)
	assert.True(t, failed.RetriesExhausted)
	assert.Equal(t, step.StatusConditionNotMet, failed.Status)
	assert.Equal(t, attemptdelete.Name, failed.Step)
	assert.Equal(t, "delete", failed.Action)
	assert.Contains(t, err.Error(), "after exhausting retries")

	assert.Len(t, client.Deleted, 3)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, clock.sleeps)
	assert.True(t, meta.ActionMetaData.Failed)
	assert.True(t, meta.PolicyRetryInfo.Failed)
	assert.Equal(t, step.StatusConditionNotMet, meta.StepMetaData.Status)
}

func TestActionTask_StepStartTimeSurvivesRetries(t *testing.T) {
	client := &clustertest.FakeClient{DeleteErr: &cluster.SnapshotInProgressError{Index: "logs-1"}}
	clock := newFakeClock()
	start := clock.Now().UnixMilli()
	retry := action.Retry{Count: 1, Backoff: "constant", Delay: time.Hour}

	task := newTask(action.NewDeleteAction(retry), clock)
	s := task.action.Steps()[0].(*attemptdelete.AttemptDeleteStep)
	s.SetClock(clock.Now)
	task.action = &mockAction{typ: "delete", steps: []step.Step{s}, retry: retry}

	meta, err := task.Execute(context.Background(), newRuntime(t, client, metrics.Noop), testMeta, nil)
	require.Error(t, err)
	assert.Equal(t, start+time.Hour.Milliseconds(), clock.Now().UnixMilli())
	assert.Equal(t, start, meta.StepMetaData.StartTime)
	assert.Equal(t, start, *meta.ActionMetaData.LastRetryTime)
}

func TestActionTask_FailedStep(t *testing.T) {
	tests := []struct {
		name       string
		idempotent bool
		script     []step.StepStatus
		wantErr    bool
		wantCalls  int
	}{
		{"non idempotent failure stops at once", false, []step.StepStatus{step.StatusFailed, step.StatusCompleted}, true, 1},
		{"idempotent failure is retried", true, []step.StepStatus{step.StatusFailed, step.StatusCompleted}, false, 2},
		{"idempotent failure runs out of retries", true, []step.StepStatus{step.StatusFailed}, true, 3},
		{"step that never runs fails the action", true, []step.StepStatus{step.StatusStarting}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScriptedStep(tt.idempotent, tt.script...)
			a := &mockAction{typ: "replica_count", steps: []step.Step{s}, retry: action.Retry{Count: 2, Backoff: "linear", Delay: time.Second}}

			meta, err := newTask(a, newFakeClock()).Execute(context.Background(), newRuntime(t, clustertest.Acknowledging(), metrics.Noop), testMeta, nil)

			assert.Equal(t, tt.wantCalls, s.calls)
			if tt.wantErr {
				var failed *StepFailedError
				require.ErrorAs(t, err, &failed)
				assert.True(t, meta.PolicyRetryInfo.Failed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, step.StatusCompleted, meta.StepMetaData.Status)
		})
	}
}

func TestActionTask_PanickingStepIsReportedAsFailed(t *testing.T) {
	s := newScriptedStep(false, step.StatusCompleted)
	s.panicAt = 0
	a := &mockAction{typ: "notification", steps: []step.Step{s}, retry: action.DefaultRetry}

	var meta step.ManagedIndexMetaData
	var err error
	require.NotPanics(t, func() {
		meta, err = newTask(a, newFakeClock()).Execute(context.Background(), newRuntime(t, clustertest.Acknowledging(), metrics.Noop), testMeta, nil)
	})

	var failed *StepFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, step.StatusFailed, meta.StepMetaData.Status)
	assert.Equal(t, "scripted", meta.StepMetaData.Name)
	assert.Contains(t, meta.Info[step.InfoCause], "scripted step exploded")
	assert.Equal(t, "Step scripted crashed [index=logs-1]", meta.Info[step.InfoMessage])
}

func TestActionTask_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := clustertest.Acknowledging()

	_, err := newTask(action.NewDeleteAction(action.DefaultRetry), newFakeClock()).Execute(ctx, newRuntime(t, client, metrics.Noop), testMeta, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, client.Deleted)
}

func TestActionTask_NilRuntime(t *testing.T) {
	_, err := NewActionTask(action.NewDeleteAction(action.DefaultRetry), 0).Execute(context.Background(), nil, testMeta, nil)
	assert.EqualError(t, err, "task delete: runtime cannot be nil")
}

func TestActionTask_KeepsActionMetadataOfSameAction(t *testing.T) {
	started := int64(42)
	meta := testMeta.Copy()
	meta.ActionMetaData = &step.ActionMetaData{Name: "delete", StartTime: &started, ConsumedRetries: 1}

	out, err := newTask(action.NewDeleteAction(action.DefaultRetry), newFakeClock()).Execute(
		context.Background(), newRuntime(t, clustertest.Acknowledging(), metrics.Noop), meta, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), *out.ActionMetaData.StartTime)
	assert.Equal(t, 1, out.ActionMetaData.ConsumedRetries)
}

func TestStepFailedError_Error(t *testing.T) {
	err := &StepFailedError{
		Index:  "logs-1",
		Action: "delete",
		Step:   "attempt_delete",
		Status: step.StatusFailed,
		Info:   map[string]any{"message": "Failed to delete index [index=logs-1]", "cause": "boom"},
	}
	assert.Equal(t, "index logs-1: step attempt_delete of action delete ended failed: Failed to delete index [index=logs-1] (cause: boom)", err.Error())
}
