package cluster

import (
	"context"

	"github.com/mensylisir/xmism/notify"
)

// SettingNumberOfReplicas is the index setting updated by the replica count step.
const SettingNumberOfReplicas = "index.number_of_replicas"

// AcknowledgedResponse is the reply of index-level admin requests. Acknowledged is false
// when the cluster accepted the request but could not confirm it was applied.
type AcknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// IndicesAdmin issues index administration requests. Both calls block until the cluster
// answers or ctx is done; timeouts are the client's responsibility.
type IndicesAdmin interface {
	DeleteIndex(ctx context.Context, index string) (AcknowledgedResponse, error)
	UpdateSettings(ctx context.Context, index string, settings map[string]any) (AcknowledgedResponse, error)
}

// Notifier delivers notifications. Both methods return an error for any delivery failure.
type Notifier interface {
	PublishLegacy(ctx context.Context, msg notify.LegacyMessage) error
	SendNotification(ctx context.Context, event notify.ChannelEvent) error
}

// Client is everything a lifecycle step needs from the cluster.
type Client interface {
	IndicesAdmin
	Notifier
}
