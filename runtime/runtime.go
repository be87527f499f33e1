package runtime

import (
	"github.com/pkg/errors"

	"github.com/mensylisir/xmism/cluster"
	"github.com/mensylisir/xmism/common"
	"github.com/mensylisir/xmism/metrics"
	"github.com/mensylisir/xmism/notify"
	"github.com/mensylisir/xmism/script"
	"github.com/mensylisir/xmism/step"
)

// baseRuntime implements the Runtime interface.
type baseRuntime struct {
	nodeName      string
	user          *notify.User
	client        cluster.Client
	scriptService script.Service
	metrics       metrics.Registry
}

// Config for creating a new baseRuntime.
type Config struct {
	NodeName      string
	User          *notify.User
	Client        cluster.Client
	ScriptService script.Service
	Metrics       metrics.Registry
}

// NewRuntime creates a new instance of Runtime.
func NewRuntime(cfg Config) (Runtime, error) {
	if cfg.Client == nil {
		return nil, errors.New("runtime: cluster client cannot be nil")
	}
	if cfg.NodeName == "" {
		cfg.NodeName = common.AppName
	}
	if cfg.ScriptService == nil {
		cfg.ScriptService = script.NewMustacheService(DefaultTemplateCacheTTL)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop
	}

	return &baseRuntime{
		nodeName:      cfg.NodeName,
		user:          cfg.User,
		client:        cfg.Client,
		scriptService: cfg.ScriptService,
		metrics:       cfg.Metrics,
	}, nil
}

func (r *baseRuntime) NodeName() string {
	return r.nodeName
}

func (r *baseRuntime) User() *notify.User {
	if r.user == nil {
		return nil
	}
	u := *r.user
	return &u
}

func (r *baseRuntime) Client() cluster.Client {
	return r.client
}

func (r *baseRuntime) ScriptService() script.Service {
	return r.scriptService
}

func (r *baseRuntime) Metrics() metrics.Registry {
	return r.metrics
}

func (r *baseRuntime) StepContext(meta step.ManagedIndexMetaData) *step.StepContext {
	return &step.StepContext{
		Metadata:      meta.Copy(),
		NodeName:      r.nodeName,
		User:          r.User(),
		Client:        r.client,
		ScriptService: r.scriptService,
	}
}
