package out

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/activity/usecase"
	streamin "tabtrail/internal/modules/realtime/adapter/in"
	"tabtrail/internal/modules/realtime/domain"
	"tabtrail/internal/modules/realtime/service"
	"tabtrail/internal/platform/clock"
	"tabtrail/internal/platform/debounce"
	apperrors "tabtrail/internal/platform/errors"
)

func TestNewStreamClientURL(t *testing.T) {
	t.Parallel()

	c, err := NewStreamClient("http://127.0.0.1:7717/", "delta")
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:7717/v1/stream?mode=delta", c.URL())

	c, err = NewStreamClient("https://engine.local", "")
	require.NoError(t, err)
	require.Equal(t, "wss://engine.local/v1/stream", c.URL())

	_, err = NewStreamClient("ftp://engine.local", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type engine struct {
	loop  *usecase.Loop
	state *activity.State
	pub   *service.Publisher
	url   string
}

func startEngine(t *testing.T) *engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	e := &engine{loop: usecase.NewLoop(0), state: activity.NewState()}
	s := activity.NewSession("s1", 1_000, 32)
	e.state.AddSession(s)
	e.state.SetActiveSessionID("s1")
	e.pub = service.NewPublisher(service.Deps{
		Clock:  clock.SystemClock{},
		Post:   e.loop.Post,
		Call:   e.loop.Call,
		Source: func() *activity.State { return e.state },
		Logger: zerolog.Nop(),
		Window: debounce.Window{Quiet: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond},
	})
	go e.loop.Run(ctx)

	mux := http.NewServeMux()
	streamin.NewStreamHandler(e.pub, zerolog.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	e.url = srv.URL
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return e
}

func (e *engine) visit(t *testing.T, url string, ts int64) {
	t.Helper()
	err := e.loop.Call(context.Background(), func() {
		s := e.state.Sessions["s1"]
		node, _ := s.EnsureNode(url, url, activity.CategoryCode, ts)
		s.RecordVisit(node, ts)
		s.NavigationCount++
		s.AddActiveTime(node, nil, 250)
		s.AppendEvent(activity.Event{TS: ts, Type: activity.EventNavigation, TabID: 3, URL: url})
		s.Touch(ts)
		e.pub.ScheduleBroadcast("navigation")
	})
	require.NoError(t, err)
}

func (e *engine) snapshot(t *testing.T) *activity.State {
	t.Helper()
	var out *activity.State
	require.NoError(t, e.loop.Call(context.Background(), func() { out = normalized(e.state) }))
	return out
}

func normalized(st *activity.State) *activity.State {
	out := st.Clone()
	out.ActiveGeneration = 0
	for _, s := range out.Sessions {
		s.SetEvents(s.SessionEvents())
	}
	return out
}

func TestStreamMirrorsEngine(t *testing.T) {
	t.Parallel()
	e := startEngine(t)

	client, err := NewStreamClient(e.url, domain.ModeDelta)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		latest *activity.State
		types  []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx, func(st *activity.State, msg domain.Message) {
			mu.Lock()
			latest = normalized(st)
			types = append(types, msg.Type)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool { return e.pub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	e.visit(t, "https://go.dev/", 2_000)
	e.visit(t, "https://go.dev/blog/", 3_000)

	want := e.snapshot(t)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest != nil && len(latest.Sessions["s1"].Nodes) == 2 && len(latest.Sessions["s1"].Events) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, want, latest)
	require.Equal(t, domain.MessageSnapshot, types[0])
	require.Equal(t, domain.MessageDelta, types[len(types)-1])
	mu.Unlock()

	cancel()
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return e.pub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsUnknownMode(t *testing.T) {
	t.Parallel()
	e := startEngine(t)

	client, err := NewStreamClient(e.url, "binary")
	require.NoError(t, err)
	err = client.Run(context.Background(), func(*activity.State, domain.Message) {
		t.Fatal("no message expected")
	})
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}
