package httpkit

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"obsledger/internal/platform/net/middleware"
)

// CommonStack is the middleware stack shared by every mounted API scope
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		chimw.RequestID,
		chimw.RealIP,

		// safety
		middleware.RecoverJSON,

		// cache / freshness
		chimw.NoCache,

		// observability
		middleware.AccessLog(middleware.AccessLogOptions{Slow: 2 * time.Second}),

		// cross-origin; night reports are read by internal dashboards
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}),

		chimw.Heartbeat("/health"),
		chimw.RedirectSlashes,
		chimw.StripSlashes,
		chimw.Timeout(30 * time.Second),
	}
}
