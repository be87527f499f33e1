// Package clustertest provides an in-memory cluster.Client for tests.
package clustertest

import (
	"context"
	"sync"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/notify"
)

// SettingsUpdate is one recorded UpdateSettings call.
type SettingsUpdate struct {
	Index    string
	Settings map[string]any
}

// FakeClient records every call and answers with the configured responses.
// Func fields take precedence over the static responses when set.
type FakeClient struct {
	mu sync.Mutex

	DeleteResponse cluster.AcknowledgedResponse
	DeleteErr      error
	DeleteFunc     func(ctx context.Context, index string) (cluster.AcknowledgedResponse, error)

	SettingsResponse cluster.AcknowledgedResponse
	SettingsErr      error
	SettingsFunc     func(ctx context.Context, index string, settings map[string]any) (cluster.AcknowledgedResponse, error)

	PublishErr error
	SendErr    error

	Deleted   []string
	Updates   []SettingsUpdate
	Published []notify.LegacyMessage
	Events    []notify.ChannelEvent
}

// Acknowledging returns a client that acknowledges every index request.
func Acknowledging() *FakeClient {
	return &FakeClient{
		DeleteResponse:   cluster.AcknowledgedResponse{Acknowledged: true},
		SettingsResponse: cluster.AcknowledgedResponse{Acknowledged: true},
	}
}

func (f *FakeClient) DeleteIndex(ctx context.Context, index string) (cluster.AcknowledgedResponse, error) {
	f.mu.Lock()
	f.Deleted = append(f.Deleted, index)
	fn := f.DeleteFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, index)
	}
	return f.DeleteResponse, f.DeleteErr
}

func (f *FakeClient) UpdateSettings(ctx context.Context, index string, settings map[string]any) (cluster.AcknowledgedResponse, error) {
	f.mu.Lock()
	f.Updates = append(f.Updates, SettingsUpdate{Index: index, Settings: settings})
	fn := f.SettingsFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, index, settings)
	}
	return f.SettingsResponse, f.SettingsErr
}

func (f *FakeClient) PublishLegacy(_ context.Context, msg notify.LegacyMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = append(f.Published, msg)
	return f.PublishErr
}

func (f *FakeClient) SendNotification(_ context.Context, event notify.ChannelEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, event)
	return f.SendErr
}

// Calls returns how many index requests were made.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Deleted) + len(f.Updates)
}

var _ cluster.Client = (*FakeClient)(nil)

// UnprintableError is an error whose Error method panics.
type UnprintableError struct{}

func (UnprintableError) Error() string { panic("error text unavailable") }
