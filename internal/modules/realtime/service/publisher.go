package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/realtime/domain"
	"tabtrail/internal/modules/realtime/dto"
	"tabtrail/internal/platform/clock"
	"tabtrail/internal/platform/debounce"
	apperrors "tabtrail/internal/platform/errors"
)

const (
	DefaultBuffer = 64

	ReasonResync = "resync"
)

var DefaultWindow = debounce.Window{Quiet: 250 * time.Millisecond, MaxWait: 500 * time.Millisecond}

var api = sonic.ConfigStd

type Deps struct {
	Clock  clock.Clock
	Post   func(fn func()) bool
	Call   func(ctx context.Context, fn func()) error
	Source func() *activity.State
	Logger zerolog.Logger
	Window debounce.Window
	Buffer int
}

type subscriber struct {
	id     string
	mode   string
	frames chan dto.Frame
	cursor *domain.Cursor
	seq    uint64
	stale  bool
}

// Publisher batches state changes and fans them out to observers. All
// subscriber state is owned by the engine's control flow; frames are
// encoded there and handed over through buffered channels. A subscriber
// that cannot keep up loses frames and is resynchronized with a snapshot.
type Publisher struct {
	post   func(fn func()) bool
	call   func(ctx context.Context, fn func()) error
	source func() *activity.State
	logger zerolog.Logger
	buffer int

	debouncer *debounce.Debouncer
	subs      map[string]*subscriber
	count     atomic.Int64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

func NewPublisher(d Deps) *Publisher {
	window := d.Window
	if window.Quiet <= 0 {
		window = DefaultWindow
	}
	buffer := d.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	p := &Publisher{
		post:   d.Post,
		call:   d.Call,
		source: d.Source,
		logger: d.Logger,
		buffer: buffer,
		subs:   map[string]*subscriber{},
	}
	posted := clock.Posted{Clock: d.Clock, Post: func(fn func()) { d.Post(fn) }}
	p.debouncer = debounce.New(posted, window, p.fire)
	return p
}

// ScheduleBroadcast must be called on the control flow.
func (p *Publisher) ScheduleBroadcast(reason string) {
	if len(p.subs) == 0 {
		return
	}
	p.debouncer.Schedule(reason)
}

func (p *Publisher) Subscribe(ctx context.Context, mode string) (dto.Subscription, error) {
	switch mode {
	case "":
		mode = domain.ModeDelta
	case domain.ModeDelta, domain.ModeSnapshot:
	default:
		return dto.Subscription{}, fmt.Errorf("stream mode %q: %w", mode, apperrors.ErrInvalidInput)
	}
	sub := &subscriber{
		id:     uuid.NewString(),
		mode:   mode,
		frames: make(chan dto.Frame, p.buffer),
	}
	err := p.call(ctx, func() {
		p.subs[sub.id] = sub
		p.count.Add(1)
		p.snapshot(sub, p.source(), "subscribe")
	})
	if err != nil {
		return dto.Subscription{}, err
	}
	p.logger.Debug().Str("subscriber", sub.id).Str("mode", mode).Msg("observer subscribed")
	return dto.Subscription{ID: sub.id, Mode: mode, Frames: sub.frames}, nil
}

func (p *Publisher) Unsubscribe(id string) {
	p.post(func() {
		sub, ok := p.subs[id]
		if !ok {
			return
		}
		delete(p.subs, id)
		p.count.Add(-1)
		close(sub.frames)
		if len(p.subs) == 0 {
			p.debouncer.Cancel()
		}
	})
}

// Close ends every subscription.
func (p *Publisher) Close(ctx context.Context) error {
	return p.call(ctx, func() {
		p.debouncer.Cancel()
		for id, sub := range p.subs {
			close(sub.frames)
			delete(p.subs, id)
		}
		p.count.Store(0)
	})
}

func (p *Publisher) Subscribers() int {
	return int(p.count.Load())
}

// Stats reports frames handed to subscribers and frames lost to full buffers.
func (p *Publisher) Stats() (sent, dropped uint64) {
	return p.sent.Load(), p.dropped.Load()
}

func (p *Publisher) fire(reason string, _ int) {
	st := p.source()
	if st == nil {
		return
	}
	ids := make([]string, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resync := false
	for _, id := range ids {
		sub := p.subs[id]
		if sub.mode == domain.ModeSnapshot || sub.stale {
			if !p.snapshot(sub, st, reason) {
				resync = true
			}
			continue
		}
		d, ok := domain.ComputeDelta(st, sub.cursor)
		if !ok {
			continue
		}
		sub.seq++
		msg := domain.Message{Type: domain.MessageDelta, Seq: sub.seq, Reason: reason, Delta: &d}
		if !p.send(sub, msg) {
			sub.stale = true
			resync = true
		}
	}
	if resync {
		p.debouncer.Schedule(ReasonResync)
	}
}

// snapshot sends the full state and resets the cursor. It reports false when
// the frame was dropped; the subscriber then stays stale.
func (p *Publisher) snapshot(sub *subscriber, st *activity.State, reason string) bool {
	sub.seq++
	msg := domain.Message{Type: domain.MessageSnapshot, Seq: sub.seq, Reason: reason, State: st}
	if !p.send(sub, msg) {
		sub.stale = true
		return false
	}
	sub.stale = false
	if sub.mode == domain.ModeDelta {
		sub.cursor = domain.NewCursor(st)
	}
	return true
}

func (p *Publisher) send(sub *subscriber, msg domain.Message) bool {
	payload, err := api.Marshal(msg)
	if err != nil {
		p.logger.Error().Err(err).Str("subscriber", sub.id).Msg("encode frame")
		return false
	}
	select {
	case sub.frames <- dto.Frame{Seq: msg.Seq, Type: msg.Type, Payload: payload}:
		p.sent.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn().Str("subscriber", sub.id).Uint64("seq", msg.Seq).Msg("observer buffer full, frame dropped")
		return false
	}
}
