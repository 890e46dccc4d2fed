package in

import (
	"context"

	"tabtrail/internal/modules/storage/dto"
)

type Usecase interface {
	ListSessions(ctx context.Context, query dto.SessionQuery) ([]dto.SessionRow, error)
	ExportSession(ctx context.Context, sessionID string) (string, error)
	RenderSession(ctx context.Context, sessionID string) (string, error)
}
