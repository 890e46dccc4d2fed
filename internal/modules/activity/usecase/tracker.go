package usecase

import (
	"context"
	"fmt"

	"tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/activity/dto"
	apperrors "tabtrail/internal/platform/errors"
)

func (i *Interactor) NotifyNavigation(ctx context.Context, signal dto.NavigationSignal) error {
	if signal.ToURL == "" {
		return fmt.Errorf("navigation without destination: %w", apperrors.ErrInvalidInput)
	}
	return i.mutate(ctx, domain.EventNavigation, func() bool {
		return i.tracker.Navigation(signal.TabID, signal.FromURL, signal.ToURL, signal.Title, signal.Transition, i.nowMs(signal.TS))
	})
}

func (i *Interactor) NotifyTabFocusChanged(ctx context.Context, signal dto.TabFocusSignal) error {
	return i.mutate(ctx, domain.EventTabFocus, func() bool {
		return i.tracker.TabFocus(signal.TabID, signal.URL, signal.Title, i.nowMs(signal.TS))
	})
}

func (i *Interactor) NotifyUserActivity(ctx context.Context, signal dto.ActivitySignal) error {
	kind := signal.Kind
	if kind == "" {
		kind = "input"
	}
	return i.mutate(ctx, domain.EventActive, func() bool {
		return i.tracker.UserActivity(kind, i.nowMs(signal.TS))
	})
}

func (i *Interactor) NotifyUserIdle(ctx context.Context, signal dto.IdleSignal) error {
	switch signal.State {
	case "", domain.IdleStateIdle, domain.IdleStateLocked:
	default:
		return fmt.Errorf("idle state %q: %w", signal.State, apperrors.ErrInvalidInput)
	}
	return i.mutate(ctx, domain.EventIdle, func() bool {
		return i.tracker.UserIdle(signal.State, i.nowMs(signal.TS))
	})
}

func (i *Interactor) NotifyWindowFocus(ctx context.Context, signal dto.WindowFocusSignal) error {
	return i.mutate(ctx, domain.EventWindowFocus, func() bool {
		return i.tracker.WindowFocus(signal.Focused, i.nowMs(signal.TS))
	})
}

func (i *Interactor) Tick(ctx context.Context, signal dto.TickSignal) error {
	return i.mutate(ctx, "tick", func() bool {
		return i.tracker.Tick(i.nowMs(signal.TS))
	})
}

func (i *Interactor) Snapshot(ctx context.Context) (dto.Snapshot, error) {
	var snap dto.Snapshot
	err := i.loop.Call(ctx, func() {
		snap = dto.Snapshot{State: i.store.State().Clone(), TakenAt: i.nowMs(0)}
	})
	return snap, err
}

func (i *Interactor) ListSessions(ctx context.Context) ([]dto.SessionSummary, error) {
	var out []dto.SessionSummary
	err := i.loop.Call(ctx, func() {
		sessions := i.store.State().OrderedSessions()
		out = make([]dto.SessionSummary, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, dto.Summarize(s))
		}
	})
	return out, err
}

func domainDiagnostic(ts int64, reason, detail string) domain.Event {
	return domain.Event{TS: ts, Type: domain.EventDiagnostic, Reason: reason, Detail: detail}
}
