package attemptdelete

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/cluster/clustertest"
	"github.com/mensylisir/xmism/logger"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/step"
)

const testIndex = "logs-2024.01.01"

func newContext(client cluster.Client) *step.StepContext {
	return &step.StepContext{
		Metadata: step.ManagedIndexMetaData{Index: testIndex, IndexUUID: "uuid-1", PolicyID: "retention"},
		NodeName: "node-1",
		Client:   client,
	}
}

func levels(hook *logtest.Hook, level logrus.Level) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func TestAttemptDeleteStep_Execute(t *testing.T) {
	snapshot := &cluster.SnapshotInProgressError{Index: testIndex, Reason: "Cannot delete indices that are being snapshotted"}

	tests := []struct {
		name         string
		client       *clustertest.FakeClient
		wantStatus   step.StepStatus
		wantInfo     map[string]any
		wantSuccess  int
		wantFailures int
		wantLevel    logrus.Level
	}{
		{
			name:        "acknowledged",
			client:      clustertest.Acknowledging(),
			wantStatus:  step.StatusCompleted,
			wantInfo:    map[string]any{"message": "Successfully deleted index [index=logs-2024.01.01]"},
			wantSuccess: 1,
		},
		{
			name:         "not acknowledged",
			client:       &clustertest.FakeClient{},
			wantStatus:   step.StatusFailed,
			wantInfo:     map[string]any{"message": "Failed to delete index [index=logs-2024.01.01]"},
			wantFailures: 1,
			wantLevel:    logrus.WarnLevel,
		},
		{
			name:       "snapshot in progress",
			client:     &clustertest.FakeClient{DeleteErr: snapshot},
			wantStatus: step.StatusConditionNotMet,
			wantInfo:   map[string]any{"message": "Index had snapshot in progress, retrying deletion [index=logs-2024.01.01]"},
			wantLevel:  logrus.WarnLevel,
		},
		{
			name: "snapshot in progress on a remote node",
			client: &clustertest.FakeClient{DeleteErr: &cluster.RemoteTransportError{
				Address: "[node-2][10.0.0.2:9300][indices:admin/delete]",
				Cause:   snapshot,
			}},
			wantStatus: step.StatusConditionNotMet,
			wantInfo:   map[string]any{"message": "Index had snapshot in progress, retrying deletion [index=logs-2024.01.01]"},
			wantLevel:  logrus.WarnLevel,
		},
		{
			name: "remote error",
			client: &clustertest.FakeClient{DeleteErr: &cluster.RemoteTransportError{
				Address: "[node-2][10.0.0.2:9300][indices:admin/delete]",
				Cause:   &cluster.Error{Type: "index_not_found_exception", Reason: "no such index [logs-2024.01.01]"},
			}},
			wantStatus: step.StatusFailed,
			wantInfo: map[string]any{
				"message": "Failed to delete index [index=logs-2024.01.01]",
				"cause":   "no such index [logs-2024.01.01]",
			},
			wantFailures: 1,
			wantLevel:    logrus.ErrorLevel,
		},
		{
			name:         "error without message",
			client:       &clustertest.FakeClient{DeleteErr: errors.New("")},
			wantStatus:   step.StatusFailed,
			wantInfo:     map[string]any{"message": "Failed to delete index [index=logs-2024.01.01]"},
			wantFailures: 1,
			wantLevel:    logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := logtest.NewLocal(logger.Log.Logger)
			defer hook.Reset()
			rec := metrics.NewRecorder()

			s := NewAttemptDeleteStep()
			s.SetContext(newContext(tt.client))
			got := s.Execute(context.Background(), rec)

			assert.Same(t, s, got)
			assert.Equal(t, tt.wantStatus, s.Status())
			assert.Equal(t, tt.wantInfo, s.Info())
			assert.Equal(t, []string{testIndex}, tt.client.Deleted)

			recorded := rec.Action(metrics.Delete)
			assert.Equal(t, tt.wantSuccess, recorded.Successes.Count())
			assert.Equal(t, tt.wantFailures, recorded.Failures.Count())
			assert.Zero(t, recorded.CumulativeLatency.Count())
			for _, sample := range append(recorded.Successes.Samples(), recorded.Failures.Samples()...) {
				assert.Equal(t, metrics.NewTags(testIndex, "retention", "node-1"), sample.Tags)
				assert.Equal(t, float64(1), sample.Value)
			}

			if tt.wantLevel != 0 {
				assert.NotEmpty(t, levels(hook, tt.wantLevel))
			}
		})
	}
}

func TestAttemptDeleteStep_ErrorWithEmptyMessageHasNoCause(t *testing.T) {
	s := NewAttemptDeleteStep()
	s.SetContext(newContext(&clustertest.FakeClient{DeleteFunc: func(context.Context, string) (cluster.AcknowledgedResponse, error) {
		return cluster.AcknowledgedResponse{}, &cluster.RemoteTransportError{Address: "[node-2]", Cause: &cluster.Error{}}
	}}))
	s.Execute(context.Background(), metrics.NewRecorder())

	assert.Equal(t, step.StatusFailed, s.Status())
	assert.Equal(t, map[string]any{"message": FailedMessage(testIndex)}, s.Info())
}

func TestAttemptDeleteStep_WithoutContextIsNoop(t *testing.T) {
	rec := metrics.NewRecorder()
	s := NewAttemptDeleteStep()

	got := s.Execute(context.Background(), rec)

	assert.Same(t, s, got)
	assert.Equal(t, step.StatusStarting, s.Status())
	assert.Nil(t, s.Info())
	assert.Zero(t, rec.Action(metrics.Delete).Successes.Count())
	assert.Zero(t, rec.Action(metrics.Delete).Failures.Count())
}

func TestAttemptDeleteStep_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &clustertest.FakeClient{DeleteFunc: func(ctx context.Context, _ string) (cluster.AcknowledgedResponse, error) {
		return cluster.AcknowledgedResponse{}, ctx.Err()
	}}
	s := NewAttemptDeleteStep()
	s.SetContext(newContext(client))

	s.Execute(ctx, nil)

	assert.Equal(t, step.StatusFailed, s.Status())
	assert.Contains(t, s.Info()["cause"], "context canceled")
}

func TestAttemptDeleteStep_PanicBecomesFailure(t *testing.T) {
	rec := metrics.NewRecorder()
	client := &clustertest.FakeClient{DeleteFunc: func(context.Context, string) (cluster.AcknowledgedResponse, error) {
		panic("connection pool closed")
	}}
	s := NewAttemptDeleteStep()
	s.SetContext(newContext(client))

	require.NotPanics(t, func() { s.Execute(context.Background(), rec) })
	assert.Equal(t, step.StatusFailed, s.Status())
	assert.Contains(t, s.Info()["cause"], "connection pool closed")
	assert.Equal(t, 1, rec.Action(metrics.Delete).Failures.Count())
}

func TestAttemptDeleteStep_UpdatedMetadata(t *testing.T) {
	s := NewAttemptDeleteStep()
	s.SetContext(newContext(&clustertest.FakeClient{DeleteErr: pkgerrors.Wrap(
		&cluster.SnapshotInProgressError{Index: testIndex}, "transport")}))
	s.Execute(context.Background(), metrics.Noop)

	transition := "delete"
	current := step.ManagedIndexMetaData{Index: testIndex, PolicyID: "retention", TransitionTo: &transition}
	updated := s.GetUpdatedManagedIndexMetadata(current)

	require.NotNil(t, updated.StepMetaData)
	assert.Equal(t, Name, updated.StepMetaData.Name)
	assert.Equal(t, step.StatusConditionNotMet, updated.StepMetaData.Status)
	assert.Nil(t, updated.TransitionTo)
	assert.Equal(t, SnapshotMessage(testIndex), updated.Info["message"])
	assert.NotNil(t, current.TransitionTo)
}

func TestAttemptDeleteStep_IsIdempotent(t *testing.T) {
	assert.True(t, NewAttemptDeleteStep().IsIdempotent())
	assert.Equal(t, "attempt_delete", NewAttemptDeleteStep().Name())
}

func ExampleSuccessMessage() {
	fmt.Println(SuccessMessage("logs-1"))
	// Output: Successfully deleted index [index=logs-1]
}

func TestAttemptDeleteStep_PanicWhileHandlingErrorFails(t *testing.T) {
	hook := logtest.NewLocal(logger.Log.Logger)
	defer hook.Reset()
	rec := metrics.NewRecorder()
	s := NewAttemptDeleteStep()
	s.SetContext(newContext(&clustertest.FakeClient{DeleteErr: clustertest.UnprintableError{}}))

	require.NotPanics(t, func() { s.Execute(context.Background(), rec) })
	assert.Equal(t, step.StatusFailed, s.Status())
	assert.Equal(t, FailedMessage(testIndex), s.Info()["message"])
	assert.Contains(t, s.Info()["cause"], "error text unavailable")
	assert.Equal(t, 1, rec.Action(metrics.Delete).Failures.Count())
	assert.NotEmpty(t, levels(hook, logrus.ErrorLevel))
}
