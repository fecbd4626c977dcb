package domain

import "context"

// AccountingPort produces night accounting reports
type AccountingPort interface {
	NightAccounting(ctx context.Context, in NightInput) (AccountingReport, error)
}

// CommentPort records operator comments used to classify time gaps
type CommentPort interface {
	AddComment(ctx context.Context, in CommentInput) (CommentRecord, error)
}
