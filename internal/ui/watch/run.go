package watch

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	activity "tabtrail/internal/modules/activity/domain"
	realtime "tabtrail/internal/modules/realtime/domain"
	apperrors "tabtrail/internal/platform/errors"
)

// Stream delivers mirrored state until ctx is done or the connection ends.
type Stream interface {
	Run(ctx context.Context, onState func(st *activity.State, msg realtime.Message)) error
}

// Run shows the observer until the user quits. A stream that falls out of
// sync is reconnected, which starts over from a snapshot.
func Run(ctx context.Context, stream Stream, address string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewModel(address), tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		program.Send(ClosedMsg{Err: follow(ctx, stream, program.Send)})
	}()
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func follow(ctx context.Context, stream Stream, send func(tea.Msg)) error {
	for {
		err := stream.Run(ctx, func(st *activity.State, msg realtime.Message) {
			send(StateMsg{State: st.Clone(), Seq: msg.Seq, Type: msg.Type, Reason: msg.Reason})
		})
		if !errors.Is(err, apperrors.ErrOutOfSync) || ctx.Err() != nil {
			return err
		}
	}
}
