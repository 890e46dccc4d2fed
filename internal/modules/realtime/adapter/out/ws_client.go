package out

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/realtime/domain"
	apperrors "tabtrail/internal/platform/errors"
)

// StreamClient follows a running engine's state stream and keeps a local
// mirror of it.
type StreamClient struct {
	url string
}

// NewStreamClient accepts the engine's HTTP base address, e.g.
// http://127.0.0.1:7717.
func NewStreamClient(base, mode string) (*StreamClient, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("stream address %q: %w", base, apperrors.ErrInvalidInput)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("stream scheme %q: %w", u.Scheme, apperrors.ErrInvalidInput)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("stream address %q has no host: %w", base, apperrors.ErrInvalidInput)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/stream"
	if mode != "" {
		u.RawQuery = url.Values{"mode": []string{mode}}.Encode()
	}
	return &StreamClient{url: u.String()}, nil
}

func (c *StreamClient) URL() string {
	return c.url
}

// Run connects and calls onState after every applied message until ctx is
// done or the connection fails. The state passed to onState belongs to the
// mirror and must not be retained across calls. An out-of-sync stream ends
// Run with ErrOutOfSync; connect again to resynchronize.
func (c *StreamClient) Run(ctx context.Context, onState func(st *activity.State, msg domain.Message)) error {
	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	mirror := &domain.Mirror{}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var msg domain.Message
		if err := sonic.ConfigStd.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrDecode, err)
		}
		if err := mirror.Apply(msg); err != nil {
			return err
		}
		onState(mirror.State, msg)
	}
}
