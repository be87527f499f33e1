package cluster

import (
	"fmt"

	"github.com/pkg/errors"
)

// OpenSearch error types the client maps to dedicated Go types.
const (
	typeRemoteTransport    = "remote_transport_exception"
	typeSnapshotInProgress = "snapshot_in_progress_exception"
)

// Error is an error returned by the cluster that has no dedicated type.
type Error struct {
	Type   string
	Reason string
	Index  string
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Type
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Cause }

// RemoteTransportError is the envelope a failure gets wrapped in when it happened on
// another node than the one that received the request.
type RemoteTransportError struct {
	// Address is "[node][host:port][action]" as reported by the cluster.
	Address string
	Cause   error
}

func (e *RemoteTransportError) Error() string {
	if e.Cause == nil {
		return e.Address
	}
	return fmt.Sprintf("%s: %v", e.Address, e.Cause)
}

func (e *RemoteTransportError) Unwrap() error { return e.Cause }

// SnapshotInProgressError reports that an index cannot be modified because a snapshot
// of it is running.
type SnapshotInProgressError struct {
	Index  string
	Reason string
}

func (e *SnapshotInProgressError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("Cannot delete indices that are being snapshotted: [%s]", e.Index)
}

// UnwrapCause strips every RemoteTransportError envelope found in err's chain and returns
// the innermost cause, without the context added by errors.Wrap along the way.
func UnwrapCause(err error) error {
	for {
		var rte *RemoteTransportError
		if !errors.As(err, &rte) || rte.Cause == nil {
			return errors.Cause(err)
		}
		err = rte.Cause
	}
}

// IsSnapshotInProgress reports whether err, wrapped or not, is a SnapshotInProgressError.
func IsSnapshotInProgress(err error) bool {
	var sip *SnapshotInProgressError
	return errors.As(err, &sip)
}

// errorBody is the "error" object of a failed REST response.
type errorBody struct {
	Type     string     `json:"type"`
	Reason   string     `json:"reason"`
	Index    string     `json:"index"`
	CausedBy *errorBody `json:"caused_by"`
}

func (b *errorBody) toError(status int) error {
	var cause error
	if b.CausedBy != nil {
		cause = b.CausedBy.toError(status)
	}
	switch b.Type {
	case typeRemoteTransport:
		return &RemoteTransportError{Address: b.Reason, Cause: cause}
	case typeSnapshotInProgress:
		return &SnapshotInProgressError{Index: b.Index, Reason: b.Reason}
	default:
		return &Error{Type: b.Type, Reason: b.Reason, Index: b.Index, Status: status, Cause: cause}
	}
}
