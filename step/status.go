package step

import (
	"fmt"

	"github.com/pkg/errors"
)

// StepStatus is the outcome of the latest Execute call of a step.
type StepStatus int

const (
	// StatusStarting is the status of a step that has not executed yet.
	StatusStarting StepStatus = iota
	// StatusConditionNotMet means a transient precondition blocked the step; retry later.
	StatusConditionNotMet
	// StatusCompleted is terminal success.
	StatusCompleted
	// StatusFailed is terminal failure.
	StatusFailed
)

var statusNames = map[StepStatus]string{
	StatusStarting:        "starting",
	StatusConditionNotMet: "condition_not_met",
	StatusCompleted:       "completed",
	StatusFailed:          "failed",
}

func (s StepStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// IsTerminal reports whether no further Execute call is expected.
func (s StepStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStepStatus is the inverse of String.
func ParseStepStatus(v string) (StepStatus, error) {
	for status, name := range statusNames {
		if name == v {
			return status, nil
		}
	}
	return StatusStarting, errors.Errorf("unknown step status %q", v)
}

func (s StepStatus) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, errors.Errorf("unknown step status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *StepStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStepStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
