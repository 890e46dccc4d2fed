package out

import (
	"context"

	"tabtrail/internal/modules/storage/dto"
)

// BlobStore keeps opaque records by key. Get returns apperrors.ErrNotFound
// for a key that was never written.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type SessionIndex interface {
	ReplaceAll(ctx context.Context, rows []dto.SessionRow) error
	List(ctx context.Context, query dto.SessionQuery) ([]dto.SessionRow, error)
}

// NoteExporter writes a session note and returns where it went. Render
// returns the same note body without writing it.
type NoteExporter interface {
	Export(ctx context.Context, note dto.SessionNote) (string, error)
	Render(ctx context.Context, note dto.SessionNote) (string, error)
}

// Diagnostics records a failure on whatever session is active.
type Diagnostics interface {
	RecordDiagnostic(reason, detail string)
}
