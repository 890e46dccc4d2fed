package in

import (
	"context"

	"tabtrail/internal/modules/activity/dto"
)

// Usecase is the engine surface consumed by the capture layer and the UI.
type Usecase interface {
	NotifyNavigation(ctx context.Context, signal dto.NavigationSignal) error
	NotifyTabFocusChanged(ctx context.Context, signal dto.TabFocusSignal) error
	NotifyUserActivity(ctx context.Context, signal dto.ActivitySignal) error
	NotifyUserIdle(ctx context.Context, signal dto.IdleSignal) error
	NotifyWindowFocus(ctx context.Context, signal dto.WindowFocusSignal) error
	Tick(ctx context.Context, signal dto.TickSignal) error
	Command(ctx context.Context, input dto.CommandInput) dto.CommandResult
	Snapshot(ctx context.Context) (dto.Snapshot, error)
	ListSessions(ctx context.Context) ([]dto.SessionSummary, error)
}
