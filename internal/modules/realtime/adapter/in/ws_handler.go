package in

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	realtimein "tabtrail/internal/modules/realtime/port/in"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StreamHandler serves GET /v1/stream?mode=delta|snapshot as a WebSocket
// carrying one JSON message per text frame.
type StreamHandler struct {
	usecase  realtimein.Usecase
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(usecase realtimein.Usecase, logger zerolog.Logger) StreamHandler {
	return StreamHandler{
		usecase: usecase,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

func (h StreamHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/stream", h.stream)
}

func (h StreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("stream upgrade")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.usecase.Subscribe(ctx, r.URL.Query().Get("mode"))
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	defer h.usecase.Unsubscribe(sub.ID)
	log := h.logger.With().Str("subscriber", sub.ID).Str("mode", sub.Mode).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("observer connected")

	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("observer disconnected")
			return
		case frame, ok := <-sub.Frames:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame.Payload); err != nil {
				log.Debug().Err(err).Uint64("seq", frame.Seq).Msg("stream write")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
