package in

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"tabtrail/internal/modules/activity/dto"
	activityin "tabtrail/internal/modules/activity/port/in"
	apperrors "tabtrail/internal/platform/errors"
)

const maxBodyBytes = 1 << 20

// HTTPHandler exposes the engine to the capture layer and UI over HTTP.
type HTTPHandler struct {
	usecase activityin.Usecase
	logger  zerolog.Logger
	timeout time.Duration
}

func NewHTTPHandler(usecase activityin.Usecase, logger zerolog.Logger) HTTPHandler {
	return HTTPHandler{usecase: usecase, logger: logger, timeout: 5 * time.Second}
}

func (h HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/signals/navigation", signal(h, h.usecase.NotifyNavigation))
	mux.HandleFunc("POST /v1/signals/tab-focus", signal(h, h.usecase.NotifyTabFocusChanged))
	mux.HandleFunc("POST /v1/signals/activity", signal(h, h.usecase.NotifyUserActivity))
	mux.HandleFunc("POST /v1/signals/idle", signal(h, h.usecase.NotifyUserIdle))
	mux.HandleFunc("POST /v1/signals/window-focus", signal(h, h.usecase.NotifyWindowFocus))
	mux.HandleFunc("POST /v1/signals/tick", signal(h, h.usecase.Tick))
	mux.HandleFunc("POST /v1/commands", h.command)
	mux.HandleFunc("GET /v1/state", h.state)
	mux.HandleFunc("GET /v1/sessions", h.sessions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "time": time.Now().Format(time.RFC3339Nano)})
	})
}

func signal[T any](h HTTPHandler, notify func(context.Context, T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := notify(ctx, in); err != nil {
			h.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("signal rejected")
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h HTTPHandler) command(w http.ResponseWriter, r *http.Request) {
	var in dto.CommandInput
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.CommandResult{OK: false, Error: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, h.usecase.Command(ctx, in))
}

func (h HTTPHandler) state(w http.ResponseWriter, r *http.Request) {
	snap, err := h.usecase.Snapshot(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h HTTPHandler) sessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.usecase.ListSessions(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return sonic.ConfigStd.Unmarshal(body, v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
