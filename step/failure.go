package step

import (
	"github.com/mensylisir/xmism/cluster"
)

// Info keys written by steps.
const (
	InfoMessage = "message"
	InfoCause   = "cause"
)

// FailureKind separates failures worth retrying later from hard failures.
type FailureKind int

const (
	FailureHard FailureKind = iota
	FailureTransient
)

func (k FailureKind) String() string {
	if k == FailureTransient {
		return "transient"
	}
	return "hard"
}

// Failure is a classified execution error.
type Failure struct {
	Kind FailureKind
	// Cause is the error with every remote transport envelope removed.
	Cause error
	// Message is Cause's message, possibly empty.
	Message string
}

// Transient reports whether the failure should be retried on a later tick.
func (f Failure) Transient() bool { return f.Kind == FailureTransient }

// Info builds the step info for this failure: message plus the cause when it has one.
func (f Failure) Info(message string) map[string]any {
	info := map[string]any{InfoMessage: message}
	if f.Message != "" {
		info[InfoCause] = f.Message
	}
	return info
}

// Classify unwraps remote transport envelopes from err and decides whether the failure is
// transient. A failure is transient when any predicate matches the unwrapped cause or,
// for errors that never crossed a node boundary, err itself.
func Classify(err error, transient ...func(error) bool) Failure {
	if err == nil {
		return Failure{Kind: FailureHard}
	}
	cause := cluster.UnwrapCause(err)
	f := Failure{Kind: FailureHard, Cause: cause, Message: cause.Error()}
	for _, isTransient := range transient {
		if isTransient(cause) || isTransient(err) {
			f.Kind = FailureTransient
			break
		}
	}
	return f
}
