package step

import (
	"context"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/notify"
	"github.com/mensylisir/xmism/script"
)

// Step is one administrative attempt in the lifecycle of a managed index.
//
// The policy engine creates a fresh Step when a managed index enters the owning action,
// attaches a StepContext, and calls Execute followed by GetUpdatedManagedIndexMetadata
// until Status is terminal. A Step is owned by a single goroutine.
type Step interface {
	// Name is the constant name of the step type.
	Name() string

	// Context returns the attached context, or nil.
	Context() *StepContext

	// SetContext attaches the per-invocation context.
	SetContext(sc *StepContext)

	// Execute performs one attempt and returns the step itself. It blocks on the
	// administrative call and never panics or reports errors: every failure ends up in
	// Status and Info. Without a context it does nothing.
	Execute(ctx context.Context, registry metrics.Registry) Step

	// GetUpdatedManagedIndexMetadata folds the step state into a copy of current.
	// It performs no I/O.
	GetUpdatedManagedIndexMetadata(current ManagedIndexMetaData) ManagedIndexMetaData

	// IsIdempotent reports whether a failed or interrupted attempt can be re-run from
	// scratch without duplicate side effects.
	IsIdempotent() bool

	Status() StepStatus
	Info() map[string]any
}

// StepContext is what the engine lends a step for one invocation. It is not persisted.
type StepContext struct {
	Metadata      ManagedIndexMetaData
	NodeName      string
	User          *notify.User
	Client        cluster.Client
	ScriptService script.Service
}

// Tags returns the metric tags identifying the managed index of this context.
func (sc *StepContext) Tags() metrics.Tags {
	if sc == nil {
		return metrics.Tags{}
	}
	return metrics.NewTags(sc.Metadata.Index, sc.Metadata.PolicyID, sc.NodeName)
}
