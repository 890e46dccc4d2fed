package usecase

import (
	"context"
	"fmt"
	"strings"

	activityin "tabtrail/internal/modules/activity/port/in"
	"tabtrail/internal/modules/storage/dto"
	storagein "tabtrail/internal/modules/storage/port/in"
	storageout "tabtrail/internal/modules/storage/port/out"
	apperrors "tabtrail/internal/platform/errors"
)

// Interactor serves reads over what the scheduler persisted. Engine may be
// nil when only the index is available, as in one-shot CLI commands.
type Interactor struct {
	engine   activityin.Usecase
	index    storageout.SessionIndex
	exporter storageout.NoteExporter
}

var _ storagein.Usecase = (*Interactor)(nil)

func NewInteractor(engine activityin.Usecase, index storageout.SessionIndex, exporter storageout.NoteExporter) *Interactor {
	return &Interactor{engine: engine, index: index, exporter: exporter}
}

func (i *Interactor) ListSessions(ctx context.Context, query dto.SessionQuery) ([]dto.SessionRow, error) {
	if i.index != nil {
		return i.index.List(ctx, query)
	}
	if i.engine == nil {
		return nil, fmt.Errorf("list sessions: no index or engine configured")
	}
	snap, err := i.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	st := snap.State
	rows := []dto.SessionRow{}
	for idx := len(st.SessionOrder) - 1; idx >= 0; idx-- {
		s := st.Sessions[st.SessionOrder[idx]]
		if s == nil {
			continue
		}
		row := dto.RowFor(s, s.ID == st.ActiveSessionID && s.IsActive())
		if !Matches(row, query) {
			continue
		}
		rows = append(rows, row)
		if query.Limit > 0 && len(rows) == query.Limit {
			break
		}
	}
	return rows, nil
}

// Matches applies the query filters to one row.
func Matches(row dto.SessionRow, query dto.SessionQuery) bool {
	if row.Deleted && !query.IncludeDeleted {
		return false
	}
	if row.Archived && !query.IncludeArchived {
		return false
	}
	if query.FavoritesOnly && !row.Favorite {
		return false
	}
	return true
}

func (i *Interactor) ExportSession(ctx context.Context, sessionID string) (string, error) {
	note, err := i.note(ctx, "export session", sessionID)
	if err != nil {
		return "", err
	}
	return i.exporter.Export(ctx, note)
}

// RenderSession returns the markdown note of a session without writing it.
func (i *Interactor) RenderSession(ctx context.Context, sessionID string) (string, error) {
	note, err := i.note(ctx, "render session", sessionID)
	if err != nil {
		return "", err
	}
	return i.exporter.Render(ctx, note)
}

func (i *Interactor) note(ctx context.Context, op, sessionID string) (dto.SessionNote, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return dto.SessionNote{}, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidInput)
	}
	if i.engine == nil || i.exporter == nil {
		return dto.SessionNote{}, fmt.Errorf("%s: engine and exporter are required", op)
	}
	snap, err := i.engine.Snapshot(ctx)
	if err != nil {
		return dto.SessionNote{}, err
	}
	s := snap.State.Sessions[sessionID]
	if s == nil || s.Deleted {
		return dto.SessionNote{}, fmt.Errorf("session %s: %w", sessionID, apperrors.ErrNotFound)
	}
	active := s.ID == snap.State.ActiveSessionID && s.IsActive()
	return dto.NoteFor(s, active), nil
}
