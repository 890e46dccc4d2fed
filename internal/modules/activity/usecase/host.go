package usecase

import (
	"context"
	"errors"
	"fmt"

	"tabtrail/internal/modules/activity/domain"
	activityout "tabtrail/internal/modules/activity/port/out"
	apperrors "tabtrail/internal/platform/errors"
)

type hostReading struct {
	focused bool
	idle    string
	tab     activityout.HostTab
	failed  []error
}

// refreshHost queries the host off the loop, then applies the reading as a
// loop task. Failed queries fall back to focused and active.
func (i *Interactor) refreshHost(ctx context.Context) {
	if i.host == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, i.hostQueryTimeout)
	defer cancel()

	reading := hostReading{focused: true, idle: domain.IdleStateActive}
	if focused, err := i.host.WindowFocused(ctx); err != nil {
		reading.failed = append(reading.failed, fmt.Errorf("%w: window: %w", apperrors.ErrHostQuery, err))
	} else {
		reading.focused = focused
	}
	if idle, err := i.host.IdleState(ctx); err != nil || idle == "" {
		if err != nil {
			reading.failed = append(reading.failed, fmt.Errorf("%w: idle: %w", apperrors.ErrHostQuery, err))
		}
	} else {
		reading.idle = idle
	}
	if tab, err := i.host.ActiveTab(ctx); err != nil {
		reading.failed = append(reading.failed, fmt.Errorf("%w: tab: %w", apperrors.ErrHostQuery, err))
	} else {
		reading.tab = tab
	}
	i.loop.Post(func() { i.applyHost(reading) })
}

func (i *Interactor) applyHost(r hostReading) {
	now := i.nowMs(0)
	changed := false
	if len(r.failed) > 0 {
		i.logger.Warn().Err(errors.Join(r.failed...)).Msg("host query failed, assuming focused and active")
		if s := i.store.ActiveSession(); s != nil {
			for _, f := range r.failed {
				s.AppendEvent(domainDiagnostic(now, "host_query", f.Error()))
			}
			s.Touch(now)
			changed = true
		}
	}
	tr := i.store.State().Tracking
	if tr.WindowFocused != r.focused {
		changed = i.tracker.WindowFocus(r.focused, now) || changed
	}
	if r.idle == domain.IdleStateActive {
		if tr.IdleState != domain.IdleStateActive {
			changed = i.tracker.UserActivity("host", now) || changed
		}
	} else {
		changed = i.tracker.UserIdle(r.idle, now) || changed
	}
	if r.tab.URL != "" && domain.NormalizeURL(r.tab.URL) != i.store.State().Tracking.CurrentURL {
		changed = i.tracker.TabFocus(r.tab.TabID, r.tab.URL, r.tab.Title, now) || changed
	}
	if changed {
		i.afterMutation("host")
	}
}
