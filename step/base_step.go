package step

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/logger"
)

// BaseStep holds the state shared by all steps and implements the parts of Step that do
// not depend on the step type. Concrete steps embed it and add Execute and IsIdempotent.
type BaseStep struct {
	name        string
	status      StepStatus
	info        map[string]any
	stepContext *StepContext
	now         func() time.Time
}

// NewBaseStep returns a BaseStep in StatusStarting.
func NewBaseStep(name string) BaseStep {
	return BaseStep{
		name:   name,
		status: StatusStarting,
		now:    time.Now,
	}
}

func (bs *BaseStep) Name() string { return bs.name }

func (bs *BaseStep) Context() *StepContext { return bs.stepContext }

func (bs *BaseStep) SetContext(sc *StepContext) { bs.stepContext = sc }

func (bs *BaseStep) Status() StepStatus { return bs.status }

// Info returns a copy of the latest info map.
func (bs *BaseStep) Info() map[string]any { return copyInfo(bs.info) }

// SetResult records the outcome of an attempt.
func (bs *BaseStep) SetResult(status StepStatus, info map[string]any) {
	bs.status = status
	bs.info = info
}

// FailUnhandled marks the attempt FAILED with message when err escaped the step's own
// error handling, as hook.Call reports a panic raised while handling an error. It reports
// whether the attempt was marked.
func (bs *BaseStep) FailUnhandled(err error, message string, log *logrus.Entry) bool {
	if err == nil {
		return false
	}
	log.WithError(err).Error(message)
	bs.SetResult(StatusFailed, Classify(err).Info(message))
	return true
}

// SetClock overrides the time source.
func (bs *BaseStep) SetClock(now func() time.Time) { bs.now = now }

// Now returns the current time of the step's clock.
func (bs *BaseStep) Now() time.Time {
	if bs.now == nil {
		return time.Now()
	}
	return bs.now()
}

// StepStartTime returns when the current run of this step started. The recorded start
// time is reused while the metadata still describes an unfinished run of the same step.
func (bs *BaseStep) StepStartTime(current ManagedIndexMetaData) time.Time {
	sm := current.StepMetaData
	switch {
	case sm == nil:
		return bs.Now()
	case sm.Name != bs.name:
		return bs.Now()
	case sm.Status == StatusCompleted:
		// metadata reflects the previous execution, so COMPLETED means a new run
		return bs.Now()
	default:
		return time.UnixMilli(sm.StartTime)
	}
}

// GetUpdatedManagedIndexMetadata returns current with the step metadata and info of this
// step, and without a pending transition.
func (bs *BaseStep) GetUpdatedManagedIndexMetadata(current ManagedIndexMetaData) ManagedIndexMetaData {
	updated := current.Copy()
	updated.StepMetaData = &StepMetaData{
		Name:      bs.name,
		StartTime: bs.StepStartTime(current).UnixMilli(),
		Status:    bs.status,
	}
	updated.TransitionTo = nil
	updated.Info = copyInfo(bs.info)
	return updated
}

// Logger returns an entry scoped to this step and its managed index.
func (bs *BaseStep) Logger() *logrus.Entry {
	sc := bs.stepContext
	if sc == nil {
		return logger.Log.WithField(common.StepName, bs.name)
	}
	return logger.Log.ForStep(sc.Metadata.Index, sc.Metadata.PolicyID, bs.name, sc.NodeName)
}

// PreExecute logs the start of an attempt.
func (bs *BaseStep) PreExecute(log *logrus.Entry) {
	log.Debugf("Executing %s for %s", bs.name, bs.indexName())
}

// PostExecute logs the outcome of an attempt.
func (bs *BaseStep) PostExecute(log *logrus.Entry) {
	log.Debugf("Finished executing %s for %s with status %s", bs.name, bs.indexName(), bs.status)
}

func (bs *BaseStep) indexName() string {
	if bs.stepContext == nil {
		return ""
	}
	return bs.stepContext.Metadata.Index
}
