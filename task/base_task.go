package task

import (
	"context"
	"time"
)

// BaseTask provides the parts of the Task interface that do not depend on the action.
// It can be embedded in concrete task implementations.
type BaseTask struct {
	name        string
	description string
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewBaseTask creates a new BaseTask using the wall clock.
func NewBaseTask(name, description string) BaseTask {
	return BaseTask{
		name:        name,
		description: description,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Name returns the name of the task.
func (bt *BaseTask) Name() string {
	return bt.name
}

// Description returns the description of the task.
func (bt *BaseTask) Description() string {
	return bt.description
}

// SetClock replaces the time source and the wait between retries.
func (bt *BaseTask) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	if now != nil {
		bt.now = now
	}
	if sleep != nil {
		bt.sleep = sleep
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
