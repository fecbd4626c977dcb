// Package http provides http transport for the nightly service
package http

import (
	stdhttp "net/http"

	"obsledger/internal/modkit/httpkit"
	"obsledger/internal/services/nightly/domain"
)

// Register mounts nightly endpoints on the given router
func Register(r httpkit.Router, accounting domain.AccountingPort, comments domain.CommentPort) {
	h := &handlers{accounting: accounting, comments: comments}
	httpkit.PostJSON[domain.NightInput](r, "/accounting", h.night)
	httpkit.PostJSON[domain.CommentInput](r, "/comments", h.addComment)
}

type handlers struct {
	accounting domain.AccountingPort
	comments   domain.CommentPort
}

func (h *handlers) night(r *stdhttp.Request, in domain.NightInput) (any, error) {
	return h.accounting.NightAccounting(r.Context(), in)
}

func (h *handlers) addComment(r *stdhttp.Request, in domain.CommentInput) (any, error) {
	return h.comments.AddComment(r.Context(), in)
}
