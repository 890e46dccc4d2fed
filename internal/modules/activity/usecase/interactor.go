package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	activityin "tabtrail/internal/modules/activity/port/in"
	activityout "tabtrail/internal/modules/activity/port/out"
	"tabtrail/internal/modules/activity/service"
	"tabtrail/internal/platform/clock"
	"tabtrail/internal/platform/debounce"
)

const (
	DefaultTickInterval     = 30 * time.Second
	DefaultHostQueryTimeout = 2 * time.Second
)

// DefaultAnalysisWindow batches full insight refreshes of the active session.
var DefaultAnalysisWindow = debounce.Window{Quiet: 3 * time.Second, MaxWait: 15 * time.Second}

type Deps struct {
	Loop        *Loop
	Clock       clock.Clock
	Store       *service.StateStore
	Lifecycle   *service.LifecycleService
	Tracker     *service.TrackerService
	Commands    *service.CommandService
	Persister   activityout.Persister
	Broadcaster activityout.Broadcaster
	Host        activityout.HostState
	Logger      zerolog.Logger

	AnalysisWindow   debounce.Window
	TickInterval     time.Duration
	HostQueryTimeout time.Duration
}

// Interactor drives the services from the loop. It holds no locks: every
// method body that touches state runs as a loop task.
type Interactor struct {
	loop        *Loop
	clock       clock.Clock
	store       *service.StateStore
	lifecycle   *service.LifecycleService
	tracker     *service.TrackerService
	commands    *service.CommandService
	persister   activityout.Persister
	broadcaster activityout.Broadcaster
	host        activityout.HostState
	logger      zerolog.Logger

	analysis       *debounce.Debouncer
	analysisTarget string

	tickInterval     time.Duration
	hostQueryTimeout time.Duration
	tickTimer        clock.Timer
}

var _ activityin.Usecase = (*Interactor)(nil)

func NewInteractor(d Deps) *Interactor {
	posted := clock.Posted{Clock: d.Clock, Post: func(fn func()) { d.Loop.Post(fn) }}
	i := &Interactor{
		loop:             d.Loop,
		clock:            posted,
		store:            d.Store,
		lifecycle:        d.Lifecycle,
		tracker:          d.Tracker,
		commands:         d.Commands,
		persister:        d.Persister,
		broadcaster:      d.Broadcaster,
		host:             d.Host,
		logger:           d.Logger,
		tickInterval:     d.TickInterval,
		hostQueryTimeout: d.HostQueryTimeout,
	}
	if i.tickInterval <= 0 {
		i.tickInterval = DefaultTickInterval
	}
	if i.hostQueryTimeout <= 0 {
		i.hostQueryTimeout = DefaultHostQueryTimeout
	}
	window := d.AnalysisWindow
	if window.Quiet <= 0 {
		window = DefaultAnalysisWindow
	}
	i.analysis = debounce.New(posted, window, func(reason string, _ int) { i.runAnalysis(reason) })
	i.lifecycle.OnSessionEnd(i.sessionEnded)
	return i
}

func (i *Interactor) nowMs(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return i.clock.Now().UnixMilli()
}

// mutate runs fn on the loop and schedules the follow-up work when it
// reports a change.
func (i *Interactor) mutate(ctx context.Context, reason string, fn func() bool) error {
	return i.loop.Call(ctx, func() {
		if fn() {
			i.afterMutation(reason)
		}
	})
}

func (i *Interactor) afterMutation(reason string) {
	if i.persister != nil {
		i.persister.SchedulePersist(reason)
	}
	if i.broadcaster != nil {
		i.broadcaster.ScheduleBroadcast(reason)
	}
	i.scheduleAnalysis(reason)
}

// Start syncs with the host once and arms the periodic alarm.
func (i *Interactor) Start(ctx context.Context) error {
	if err := i.loop.Call(ctx, func() {
		now := i.nowMs(0)
		i.tracker.ResumeAccounting(now)
		i.lifecycle.GetActiveSession(now)
		i.afterMutation("startup")
	}); err != nil {
		return err
	}
	i.refreshHost(ctx)
	return i.loop.Call(ctx, i.armTick)
}

// Shutdown stops the alarm, credits pending active time and flushes storage.
func (i *Interactor) Shutdown(ctx context.Context) error {
	if err := i.loop.Call(ctx, func() {
		if i.tickTimer != nil {
			i.tickTimer.Stop()
			i.tickTimer = nil
		}
		i.analysis.Cancel()
		i.tracker.FlushActiveTime(i.nowMs(0))
	}); err != nil {
		return err
	}
	if i.persister == nil {
		return nil
	}
	return i.persister.FlushPersist(ctx)
}

func (i *Interactor) armTick() {
	if i.tickTimer != nil {
		i.tickTimer.Stop()
	}
	i.tickTimer = i.clock.AfterFunc(i.tickInterval, func() {
		i.tickTimer = nil
		if i.tracker.Tick(i.nowMs(0)) {
			i.afterMutation("tick")
		}
		go i.refreshHost(context.Background())
		i.armTick()
	})
}

// RecordDiagnostic appends a diagnostic event to whichever session is active
// when the task runs, not when the failure was observed.
func (i *Interactor) RecordDiagnostic(reason, detail string) {
	i.loop.Post(func() {
		s := i.store.ActiveSession()
		if s == nil {
			return
		}
		now := i.nowMs(0)
		s.AppendEvent(domainDiagnostic(now, reason, detail))
		s.Touch(now)
		if i.broadcaster != nil {
			i.broadcaster.ScheduleBroadcast("diagnostic")
		}
	})
}
