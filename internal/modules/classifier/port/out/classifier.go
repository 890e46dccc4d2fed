package out

import (
	"context"

	"tabtrail/internal/modules/classifier/domain"
)

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

type Host interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	// Connect starts the classifier process and keeps it running until the
	// returned connection is closed.
	Connect(ctx context.Context, manifest domain.Manifest) (Conn, error)
}

type Conn interface {
	Classify(ctx context.Context, req domain.Request) (domain.Verdict, error)
	Close() error
}
