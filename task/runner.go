package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mensylisir/xmism/action"
	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/logger"
	"github.com/mensylisir/xmism/runtime"
	"github.com/mensylisir/xmism/step"
)

// Result is the outcome of running the policy against one index.
type Result struct {
	Index    string
	Metadata step.ManagedIndexMetaData
	Err      error
}

// Runner runs the actions of a policy against many indices concurrently.
type Runner struct {
	// Concurrency bounds how many indices run at once; values below 1 mean one.
	Concurrency int
	// Offset is the policy position of the first action passed to Run.
	Offset int
	// Now and Sleep override the clock of every task when set.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// RunIndices runs actions for every metadata record with at most concurrency indices in
// flight. Results are in the order of metas.
func RunIndices(ctx context.Context, rt runtime.Runtime, actions []action.Action, metas []step.ManagedIndexMetaData, concurrency int) []Result {
	r := &Runner{Concurrency: concurrency}
	return r.Run(ctx, rt, actions, metas)
}

// Run runs actions for every metadata record. A failing index does not stop the others.
func (r *Runner) Run(ctx context.Context, rt runtime.Runtime, actions []action.Action, metas []step.ManagedIndexMetaData) []Result {
	results := make([]Result, len(metas))
	runID := uuid.NewString()

	var g errgroup.Group
	g.SetLimit(max(r.Concurrency, 1))
	for i, meta := range metas {
		i, meta := i, meta
		g.Go(func() error {
			results[i] = r.runPolicy(ctx, rt, actions, meta, runID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runPolicy(ctx context.Context, rt runtime.Runtime, actions []action.Action, meta step.ManagedIndexMetaData, runID string) Result {
	log := logger.Log.ForIndex(meta.Index, meta.PolicyID).WithField("run_id", runID)

	for i, a := range actions {
		pos := r.Offset + i
		t := NewActionTask(a, pos)
		t.SetClock(r.Now, r.Sleep)

		var err error
		meta, err = t.Execute(ctx, rt, meta, log.WithField(common.ActionName, a.Type()))
		if err != nil {
			log.WithError(err).Errorf("Policy stopped at action %d (%s)", pos, a.Type())
			return Result{Index: meta.Index, Metadata: meta, Err: err}
		}
		if a.Type() == common.ActionDelete {
			// nothing left to manage
			break
		}
	}
	return Result{Index: meta.Index, Metadata: meta}
}
