package metrics

import (
	"github.com/mensylisir/xmism/common"
)

// Action names under which ActionMetrics are registered.
const (
	Delete       = common.ActionDelete
	ReplicaCount = common.ActionReplicaCount
	Notification = common.ActionNotification
)

// Tags identify the managed index a sample belongs to.
type Tags struct {
	IndexName string
	PolicyID  string
	NodeID    string
}

// NewTags builds the tag set recorded with every action metric sample.
func NewTags(indexName, policyID, nodeID string) Tags {
	return Tags{IndexName: indexName, PolicyID: policyID, NodeID: nodeID}
}

// Labels returns the tags keyed by their metric label names.
func (t Tags) Labels() map[string]string {
	return map[string]string{
		common.TagIndexName: t.IndexName,
		common.TagPolicyID:  t.PolicyID,
		common.TagNodeID:    t.NodeID,
	}
}

// Instrument is an append-only metric. Implementations must be safe for concurrent use.
type Instrument interface {
	Add(value float64, tags Tags)
}

// ActionMetrics groups the instruments shared by every step of one action type.
type ActionMetrics struct {
	Successes         Instrument
	Failures          Instrument
	CumulativeLatency Instrument
}

// Registry hands out the process-wide ActionMetrics for an action type.
type Registry interface {
	GetActionMetrics(action string) *ActionMetrics
}

type noopInstrument struct{}

func (noopInstrument) Add(float64, Tags) {}

var noopActionMetrics = &ActionMetrics{
	Successes:         noopInstrument{},
	Failures:          noopInstrument{},
	CumulativeLatency: noopInstrument{},
}

// Noop is a Registry that drops every sample.
var Noop Registry = noopRegistry{}

type noopRegistry struct{}

func (noopRegistry) GetActionMetrics(string) *ActionMetrics { return noopActionMetrics }

// Actions lists every action type that gets its own ActionMetrics.
func Actions() []string {
	return []string{Delete, ReplicaCount, Notification}
}
