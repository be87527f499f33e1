package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/script"
)

const sampleRunnerConfigYAML = `
apiVersion: xmism.mensylisir.io/v1alpha1
kind: LifecycleRunner
metadata:
  name: logs-retention
spec:
  cluster:
    endpoint: "https://search.example.com:9200"
    username: admin
    password: secret
    timeout: 10s
    insecureSkipVerify: true
  nodeName: runner-1
  user:
    name: admin
    backendRoles: ["ops"]
    roles: ["all_access"]
  log:
    dir: /var/log/xmism
    level: debug
  metrics:
    listenAddress: ":9464"
    namespace: ism
  concurrency: 8
  policy:
    id: logs-retention
    actions:
      - type: replica_count
        replicaCount:
          numberOfReplicas: 0
        retry:
          count: 5
          backoff: constant
          delay: 30s
      - type: notification
        notification:
          destination:
            slack:
              url: "https://hooks.slack.test/T000"
          channel:
            id: ops-alerts
          messageTemplate:
            source: "Deleting {{ctx.index}}"
            params:
              team: search
      - type: delete
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load_Success(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, sampleRunnerConfigYAML)).Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "xmism.mensylisir.io/v1alpha1", cfg.APIVersion)
	assert.Equal(t, Kind, cfg.Kind)
	assert.Equal(t, "logs-retention", cfg.Metadata.Name)

	spec := cfg.Spec
	require.NotNil(t, spec)
	assert.Equal(t, "https://search.example.com:9200", spec.Cluster.Endpoint)
	assert.Equal(t, 10*time.Second, spec.Cluster.Timeout)
	assert.True(t, spec.Cluster.InsecureSkipVerify)
	assert.Equal(t, "runner-1", spec.NodeName)
	require.NotNil(t, spec.User)
	assert.Equal(t, []string{"ops"}, spec.User.BackendRoles)
	assert.Equal(t, "debug", spec.Log.Level)
	assert.Equal(t, ":9464", spec.Metrics.ListenAddress)
	assert.Equal(t, 8, spec.Concurrency)

	require.Len(t, spec.Policy.Actions, 3)
	rc := spec.Policy.Actions[0]
	assert.Equal(t, common.ActionReplicaCount, rc.Type)
	require.NotNil(t, rc.ReplicaCount.NumberOfReplicas)
	assert.Equal(t, 0, *rc.ReplicaCount.NumberOfReplicas)
	require.NotNil(t, rc.Retry)
	assert.Equal(t, 5, *rc.Retry.Count)
	assert.Equal(t, BackoffConstant, rc.Retry.Backoff)
	assert.Equal(t, 30*time.Second, rc.Retry.Delay)

	n := spec.Policy.Actions[1].Notification
	require.NotNil(t, n)
	assert.Equal(t, "https://hooks.slack.test/T000", n.Destination.Slack.URL)
	assert.Equal(t, "ops-alerts", n.Channel.ID)
	assert.Equal(t, "Deleting {{ctx.index}}", n.MessageTemplate.Source)
	assert.Equal(t, map[string]any{"team": "search"}, n.MessageTemplate.Params)

	assert.Equal(t, common.ActionDelete, spec.Policy.Actions[2].Type)
	assert.Nil(t, spec.Policy.Actions[2].Retry)
}

func TestLoader_Load_FileErrors(t *testing.T) {
	_, err := NewLoader("").Load()
	assert.EqualError(t, err, "configuration file path is empty")

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = NewLoader(writeConfig(t, "")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")

	_, err = NewLoader(writeConfig(t, "spec: [unterminated")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config YAML")
}

func TestParse_ValidationErrors(t *testing.T) {
	const header = "apiVersion: v1\nkind: LifecycleRunner\nmetadata:\n  name: x\n"
	const cluster = "spec:\n  cluster:\n    endpoint: http://localhost:9200\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing apiVersion", "kind: LifecycleRunner\n", "apiVersion is a required field"},
		{"wrong kind", "apiVersion: v1\nkind: Cluster\n", "kind must be 'LifecycleRunner', got 'Cluster'"},
		{"missing name", "apiVersion: v1\nkind: LifecycleRunner\n", "metadata.name is a required field"},
		{"missing spec", header, "spec section is missing or empty"},
		{"missing endpoint", header + "spec:\n  concurrency: 1\n", "spec.cluster.endpoint is a required field"},
		{"endpoint without scheme", header + "spec:\n  cluster:\n    endpoint: localhost:9200\n", "spec.cluster.endpoint must be an http(s) URL"},
		{"bad log level", header + cluster + "  log:\n    level: loud\n", "spec.log.level"},
		{"negative concurrency", header + cluster + "  concurrency: -1\n", "spec.concurrency must not be negative"},
		{"missing policy id", header + cluster + "  policy:\n    actions: [{type: delete}]\n", "spec.policy.id is a required field"},
		{"no actions", header + cluster + "  policy:\n    id: p\n", "spec.policy.actions must contain at least one action"},
		{"unknown action", header + cluster + "  policy:\n    id: p\n    actions: [{type: rollover}]\n", "spec.policy.actions[0]: unknown action type 'rollover'"},
		{"missing action type", header + cluster + "  policy:\n    id: p\n    actions: [{}]\n", "spec.policy.actions[0]: type is a required field"},
		{"replica count without number", header + cluster + "  policy:\n    id: p\n    actions: [{type: replica_count}]\n", "replicaCount.numberOfReplicas is required"},
		{"negative replicas", header + cluster + "  policy:\n    id: p\n    actions: [{type: replica_count, replicaCount: {numberOfReplicas: -1}}]\n", "must not be negative, got -1"},
		{"notification without section", header + cluster + "  policy:\n    id: p\n    actions: [{type: notification}]\n", "notification section is required"},
		{"notification without template", header + cluster + "  policy:\n    id: p\n    actions: [{type: notification, notification: {channel: {id: c}}}]\n", "notification.messageTemplate.source is required"},
		{"notification with painless", header + cluster + "  policy:\n    id: p\n    actions: [{type: notification, notification: {messageTemplate: {source: x, lang: painless}}}]\n", "notification.messageTemplate.lang must be 'mustache'"},
		{"notification with empty destination", header + cluster + "  policy:\n    id: p\n    actions: [{type: notification, notification: {destination: {}, messageTemplate: {source: x}}}]\n", "notification.destination"},
		{"notification with empty channel", header + cluster + "  policy:\n    id: p\n    actions: [{type: notification, notification: {channel: {}, messageTemplate: {source: x}}}]\n", "notification.channel.id is required"},
		{"bad backoff", header + cluster + "  policy:\n    id: p\n    actions: [{type: delete, retry: {backoff: random}}]\n", "retry.backoff must be one of exponential, constant or linear, got 'random'"},
		{"negative retry count", header + cluster + "  policy:\n    id: p\n    actions: [{type: delete, retry: {count: -2}}]\n", "retry.count must not be negative, got -2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
apiVersion: v1
kind: LifecycleRunner
metadata:
  name: minimal
spec:
  cluster:
    endpoint: http://localhost:9200
  nodeName: n1
  policy:
    id: p
    actions:
      - type: delete
      - type: notification
        notification:
          messageTemplate:
            source: hi
`))
	require.NoError(t, err)

	SetDefaults(cfg)

	spec := cfg.Spec
	assert.Equal(t, DefaultTimeout, spec.Cluster.Timeout)
	assert.Equal(t, DefaultChannelCacheTTL, spec.Cluster.ChannelCacheTTL)
	assert.Equal(t, "n1", spec.NodeName)
	assert.Equal(t, DefaultConcurrency, spec.Concurrency)
	assert.Equal(t, "xmism", spec.Metrics.Namespace)
	assert.Equal(t, "info", spec.Log.Level)

	for _, a := range spec.Policy.Actions {
		require.NotNil(t, a.Retry)
		assert.Equal(t, DefaultRetryCount, *a.Retry.Count)
		assert.Equal(t, BackoffExponential, a.Retry.Backoff)
		assert.Equal(t, time.Minute, a.Retry.Delay)
	}
	assert.Equal(t, script.LangMustache, spec.Policy.Actions[1].Notification.MessageTemplate.Lang)
}

func TestSetDefaults_KeepsExplicitValues(t *testing.T) {
	zero := 0
	cfg := &Config{Spec: &RunnerSpec{
		Concurrency: 2,
		Policy: PolicySpec{Actions: []ActionSpec{{
			Type:  common.ActionDelete,
			Retry: &RetrySpec{Count: &zero, Backoff: BackoffLinear, Delay: time.Second},
		}}},
	}}

	SetDefaults(cfg)

	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, 2, cfg.Spec.Concurrency)
	assert.NotEmpty(t, cfg.Spec.NodeName)
	r := cfg.Spec.Policy.Actions[0].Retry
	assert.Equal(t, 0, *r.Count)
	assert.Equal(t, BackoffLinear, r.Backoff)
	assert.Equal(t, time.Second, r.Delay)
}

func TestSetDefaults_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { SetDefaults(nil) })
	cfg := &Config{}
	SetDefaults(cfg)
	require.NotNil(t, cfg.Spec)
	assert.Equal(t, DefaultTimeout, cfg.Spec.Cluster.Timeout)
}
