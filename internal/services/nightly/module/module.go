// Package module wires the nightly service into the API using modkit
package module

import (
	"net/http"

	"obsledger/internal/modkit"
	"obsledger/internal/modkit/httpkit"
	"obsledger/internal/services/nightly/domain"
	nightlyhttp "obsledger/internal/services/nightly/http"
	nightlyrepo "obsledger/internal/services/nightly/repo"
	nightlysvc "obsledger/internal/services/nightly/service"
)

// Ports exposed by the nightly module
type Ports struct {
	Accounting domain.AccountingPort
	Comments   domain.CommentPort
}

// Module implements the nightly service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    Ports
	register func(httpkit.Router)
}

// New constructs a nightly module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("nightly"),
		modkit.WithPrefix("/nights"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)
	svc := nightlysvc.New(deps.PG, nightlyrepo.NewPG(), nightlysvc.Config{
		GapThreshold: cfg.GapThreshold,
		ShiftEnds:    cfg.ShiftEnds,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		ports:  Ports{Accounting: svc, Comments: svc},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		nightlyhttp.Register(r, m.ports.Accounting, m.ports.Comments)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
