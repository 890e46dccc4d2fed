package in

import (
	"context"

	"tabtrail/internal/modules/realtime/dto"
)

// Usecase registers observers of the engine state.
type Usecase interface {
	// Subscribe returns after the initial snapshot is queued on Frames.
	Subscribe(ctx context.Context, mode string) (dto.Subscription, error)
	Unsubscribe(id string)
}
