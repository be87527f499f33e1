package runtime

import (
	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/notify"
	"github.com/mensylisir/xmism/script"
	"github.com/mensylisir/xmism/step"
)

// Runtime defines an interface for accessing the process-wide resources steps borrow.
type Runtime interface {
	// NodeName is reported as node_id on every metric sample.
	NodeName() string

	// User is the user notifications are sent on behalf of. May be nil.
	User() *notify.User

	Client() cluster.Client
	ScriptService() script.Service
	Metrics() metrics.Registry

	// StepContext builds the context lent to a step for one managed index.
	StepContext(meta step.ManagedIndexMetaData) *step.StepContext
}
