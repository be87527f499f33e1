package common

const (
	AppName    = "xmism"
	AppVersion = "0.3.0"
)

// Log field keys, in the order the formatter prints them.
const (
	IndexName  = "Index"
	PolicyName = "Policy"
	ActionName = "Action"
	StepName   = "Step"
	NodeName   = "Node"
)

// Metric tag keys attached to every action metric sample.
const (
	TagIndexName = "index_name"
	TagPolicyID  = "policy_id"
	TagNodeID    = "node_id"
)

// Action types understood by the policy configuration.
const (
	ActionDelete       = "delete"
	ActionReplicaCount = "replica_count"
	ActionNotification = "notification"
)

const (
	NanosPerMicrosecond int64 = 1000
	NanosPerMillisecond int64 = 1000 * NanosPerMicrosecond
	NanosPerSecond      int64 = 1000 * NanosPerMillisecond
)
