package modkit

import (
	"obsledger/internal/modkit/repokit"
	"obsledger/internal/platform/config"
	"obsledger/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
}
