package task

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmism/runtime"
	"github.com/mensylisir/xmism/step"
)

// Task drives the steps of one action for one managed index.
type Task interface {
	// Name returns the name of the task, the action type.
	Name() string

	// Description provides a human-readable summary of what the task does.
	Description() string

	// Execute runs every step of the action against meta until each completes, fails for
	// good, or runs out of retries. It returns the last metadata in all cases and a
	// *StepFailedError when the action did not complete.
	Execute(ctx context.Context, rt runtime.Runtime, meta step.ManagedIndexMetaData, logger *logrus.Entry) (step.ManagedIndexMetaData, error)
}
