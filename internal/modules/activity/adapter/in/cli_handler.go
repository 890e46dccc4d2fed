package in

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"

	"tabtrail/internal/modules/activity/dto"
	activityin "tabtrail/internal/modules/activity/port/in"
	apperrors "tabtrail/internal/platform/errors"
)

// CLIHandler backs the cobra commands that talk to an in-process engine.
type CLIHandler struct {
	usecase activityin.Usecase
}

func NewCLIHandler(usecase activityin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Sessions(ctx context.Context) ([]dto.SessionSummary, error) {
	return h.usecase.ListSessions(ctx)
}

func (h CLIHandler) Snapshot(ctx context.Context) (dto.Snapshot, error) {
	return h.usecase.Snapshot(ctx)
}

func (h CLIHandler) Command(ctx context.Context, typ, sessionID, summary string) dto.CommandResult {
	return h.usecase.Command(ctx, dto.CommandInput{Type: typ, SessionID: sessionID, Summary: summary})
}

// ReplayRecord is one line of a JSONL capture: a signal kind plus its payload.
type ReplayRecord struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type ReplayStats struct {
	Lines   int
	Applied int
	Skipped int
	LastTS  int64
}

// Replay feeds a JSONL capture of signals through the engine in file order.
// Blank lines are skipped; malformed lines abort with their line number.
// Accounting stops at the last recorded timestamp.
func (h CLIHandler) Replay(ctx context.Context, r io.Reader) (ReplayStats, error) {
	var stats ReplayStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			stats.Skipped++
			continue
		}
		var rec ReplayRecord
		if err := sonic.ConfigStd.UnmarshalFromString(line, &rec); err != nil {
			return stats, fmt.Errorf("line %d: %w", stats.Lines, err)
		}
		ts, err := h.apply(ctx, rec)
		if err != nil {
			return stats, fmt.Errorf("line %d (%s): %w", stats.Lines, rec.Kind, err)
		}
		if ts > stats.LastTS {
			stats.LastTS = ts
		}
		stats.Applied++
	}
	if err := scanner.Err(); err != nil {
		return stats, err
	}
	if stats.LastTS == 0 {
		return stats, nil
	}
	return stats, h.usecase.NotifyWindowFocus(ctx, dto.WindowFocusSignal{Focused: false, TS: stats.LastTS})
}

func (h CLIHandler) apply(ctx context.Context, rec ReplayRecord) (int64, error) {
	switch rec.Kind {
	case "navigation":
		return replay(ctx, rec.Payload, h.usecase.NotifyNavigation, func(in dto.NavigationSignal) int64 { return in.TS })
	case "tab_focus":
		return replay(ctx, rec.Payload, h.usecase.NotifyTabFocusChanged, func(in dto.TabFocusSignal) int64 { return in.TS })
	case "activity":
		return replay(ctx, rec.Payload, h.usecase.NotifyUserActivity, func(in dto.ActivitySignal) int64 { return in.TS })
	case "idle":
		return replay(ctx, rec.Payload, h.usecase.NotifyUserIdle, func(in dto.IdleSignal) int64 { return in.TS })
	case "window_focus":
		return replay(ctx, rec.Payload, h.usecase.NotifyWindowFocus, func(in dto.WindowFocusSignal) int64 { return in.TS })
	case "tick":
		return replay(ctx, rec.Payload, h.usecase.Tick, func(in dto.TickSignal) int64 { return in.TS })
	case "command":
		return replay(ctx, rec.Payload, func(ctx context.Context, in dto.CommandInput) error {
			if res := h.usecase.Command(ctx, in); !res.OK {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		}, func(in dto.CommandInput) int64 { return in.TS })
	default:
		return 0, fmt.Errorf("replay kind %q: %w", rec.Kind, apperrors.ErrInvalidInput)
	}
}

func replay[T any](ctx context.Context, payload []byte, notify func(context.Context, T) error, ts func(T) int64) (int64, error) {
	var in T
	if len(payload) > 0 {
		if err := sonic.ConfigStd.Unmarshal(payload, &in); err != nil {
			return 0, err
		}
	}
	return ts(in), notify(ctx, in)
}
