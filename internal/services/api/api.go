// Package api provides the HTTP API for the application
package api

import (
	"obsledger/internal/platform/config"
	"obsledger/internal/platform/logger"
	phttp "obsledger/internal/platform/net/http"
	"obsledger/internal/platform/store"

	"obsledger/internal/modkit"
	"obsledger/internal/modkit/httpkit"
	"obsledger/internal/modkit/module"

	metamod "obsledger/internal/services/api/meta/module"
	nightlymod "obsledger/internal/services/nightly/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store
	Logger *logger.Logger
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Log: *opt.Logger,
		Cfg: opt.Config,
		PG:  opt.Store.PG,
	}

	mods := []module.Module{
		metamod.New(deps),
		nightlymod.New(deps),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
