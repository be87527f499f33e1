package step

import (
	"bytes"

	"github.com/goccy/go-json"
)

// StepMetaData records which step ran last, when it started and how it ended.
type StepMetaData struct {
	Name      string     `json:"name"`
	StartTime int64      `json:"start_time"`
	Status    StepStatus `json:"step_status"`
}

// ActionMetaData records the action a managed index is currently in.
type ActionMetaData struct {
	Name            string `json:"name"`
	StartTime       *int64 `json:"start_time,omitempty"`
	Index           int    `json:"index"`
	Failed          bool   `json:"failed"`
	ConsumedRetries int    `json:"consumed_retries"`
	LastRetryTime   *int64 `json:"last_retry_time,omitempty"`
}

// StateMetaData records the policy state a managed index is in.
type StateMetaData struct {
	Name      string `json:"name"`
	StartTime int64  `json:"start_time"`
}

// PolicyRetryInfo records whether the policy is failed and how many retries it used.
type PolicyRetryInfo struct {
	Failed          bool `json:"failed"`
	ConsumedRetries int  `json:"consumed_retries"`
}

// ManagedIndexMetaData is the lifecycle record of one managed index. Steps treat it as a
// value: they return updated copies and never modify the one they were given.
type ManagedIndexMetaData struct {
	Index             string           `json:"index"`
	IndexUUID         string           `json:"index_uuid"`
	PolicyID          string           `json:"policy_id"`
	PolicySeqNo       *int64           `json:"policy_seq_no,omitempty"`
	PolicyPrimaryTerm *int64           `json:"policy_primary_term,omitempty"`
	RolledOver        *bool            `json:"rolled_over,omitempty"`
	IndexCreationDate *int64           `json:"index_creation_date,omitempty"`
	TransitionTo      *string          `json:"transition_to,omitempty"`
	StateMetaData     *StateMetaData   `json:"state,omitempty"`
	ActionMetaData    *ActionMetaData  `json:"action,omitempty"`
	StepMetaData      *StepMetaData    `json:"step,omitempty"`
	PolicyRetryInfo   *PolicyRetryInfo `json:"retry_info,omitempty"`
	Info              map[string]any   `json:"info,omitempty"`
}

// Copy returns a deep copy so the result shares no pointers with m.
func (m ManagedIndexMetaData) Copy() ManagedIndexMetaData {
	out := m
	out.PolicySeqNo = copyPtr(m.PolicySeqNo)
	out.PolicyPrimaryTerm = copyPtr(m.PolicyPrimaryTerm)
	out.RolledOver = copyPtr(m.RolledOver)
	out.IndexCreationDate = copyPtr(m.IndexCreationDate)
	out.TransitionTo = copyPtr(m.TransitionTo)
	out.StateMetaData = copyPtr(m.StateMetaData)
	out.StepMetaData = copyPtr(m.StepMetaData)
	out.PolicyRetryInfo = copyPtr(m.PolicyRetryInfo)
	if m.ActionMetaData != nil {
		a := *m.ActionMetaData
		a.StartTime = copyPtr(m.ActionMetaData.StartTime)
		a.LastRetryTime = copyPtr(m.ActionMetaData.LastRetryTime)
		out.ActionMetaData = &a
	}
	out.Info = copyInfo(m.Info)
	return out
}

// ToMap converts the metadata into the generic map message templates see as "ctx".
// Numbers are kept as json.Number so epoch millis render verbatim.
func (m ManagedIndexMetaData) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInfo(info map[string]any) map[string]any {
	if info == nil {
		return nil
	}
	out := make(map[string]any, len(info))
	for k, v := range info {
		out[k] = v
	}
	return out
}
