package in

import (
	"context"
	"fmt"
	"strings"

	"tabtrail/internal/modules/storage/dto"
	storagein "tabtrail/internal/modules/storage/port/in"
	apperrors "tabtrail/internal/platform/errors"
)

type CLIHandler struct {
	usecase storagein.Usecase
}

func NewCLIHandler(usecase storagein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Sessions(ctx context.Context, all, favorites bool, limit int) ([]dto.SessionRow, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, apperrors.ErrInvalidInput)
	}
	return h.usecase.ListSessions(ctx, dto.SessionQuery{
		IncludeDeleted:  all,
		IncludeArchived: all,
		FavoritesOnly:   favorites,
		Limit:           limit,
	})
}

func (h CLIHandler) Export(ctx context.Context, sessionID string) (string, error) {
	return h.usecase.ExportSession(ctx, strings.TrimSpace(sessionID))
}

func (h CLIHandler) Render(ctx context.Context, sessionID string) (string, error) {
	return h.usecase.RenderSession(ctx, strings.TrimSpace(sessionID))
}
