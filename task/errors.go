package task

import (
	"fmt"

	"github.com/mensylisir/xmism/step"
)

// StepFailedError reports an action that stopped before all its steps completed.
type StepFailedError struct {
	Index  string
	Action string
	Step   string
	Status step.StepStatus
	// Info is the info of the last attempt.
	Info map[string]any
	// RetriesExhausted is set when the step would have been retried but ran out of retries.
	RetriesExhausted bool
}

func (e *StepFailedError) Error() string {
	msg := fmt.Sprintf("index %s: step %s of action %s ended %s", e.Index, e.Step, e.Action, e.Status)
	if e.RetriesExhausted {
		msg += " after exhausting retries"
	}
	if m, ok := e.Info[step.InfoMessage]; ok {
		msg += fmt.Sprintf(": %v", m)
	}
	if c, ok := e.Info[step.InfoCause]; ok {
		msg += fmt.Sprintf(" (cause: %v)", c)
	}
	return msg
}
