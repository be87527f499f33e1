package script

import (
	"time"

	"github.com/cbroglie/mustache"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// LangMustache is the only template language supported for message templates.
const LangMustache = "mustache"

// Script is a message template together with its static params.
type Script struct {
	Source string         `yaml:"source" json:"source"`
	Lang   string         `yaml:"lang,omitempty" json:"lang,omitempty"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Template is a compiled Script.
type Template interface {
	// Execute renders the template. vars are layered over the script params.
	Execute(vars map[string]any) (string, error)
}

// Service compiles scripts into templates.
type Service interface {
	Compile(s Script) (Template, error)
}

// MustacheService compiles mustache templates and caches them by source.
type MustacheService struct {
	compiled *gocache.Cache
}

// NewMustacheService creates a service whose compiled templates expire after ttl of disuse.
func NewMustacheService(ttl time.Duration) *MustacheService {
	return &MustacheService{compiled: gocache.New(ttl, 2*ttl)}
}

func (s *MustacheService) Compile(sc Script) (Template, error) {
	lang := sc.Lang
	if lang == "" {
		lang = LangMustache
	}
	if lang != LangMustache {
		return nil, errors.Errorf("unsupported script lang %q, only %q is supported", lang, LangMustache)
	}

	var tmpl *mustache.Template
	if cached, ok := s.compiled.Get(sc.Source); ok {
		tmpl = cached.(*mustache.Template)
		s.compiled.Set(sc.Source, tmpl, gocache.DefaultExpiration)
	} else {
		// rendered text goes into JSON payloads, so no HTML escaping
		parsed, err := mustache.ParseStringRaw(sc.Source, true)
		if err != nil {
			return nil, errors.Wrap(err, "failed to compile message template")
		}
		s.compiled.Set(sc.Source, parsed, gocache.DefaultExpiration)
		tmpl = parsed
	}
	return &mustacheTemplate{tmpl: tmpl, params: sc.Params}, nil
}

type mustacheTemplate struct {
	tmpl   *mustache.Template
	params map[string]any
}

func (t *mustacheTemplate) Execute(vars map[string]any) (string, error) {
	merged := make(map[string]any, len(t.params)+len(vars))
	for k, v := range t.params {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	out, err := t.tmpl.Render(merged)
	if err != nil {
		return "", errors.Wrap(err, "failed to render message template")
	}
	return out, nil
}

var _ Service = (*MustacheService)(nil)
