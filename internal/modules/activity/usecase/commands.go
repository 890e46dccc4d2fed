package usecase

import (
	"context"

	"tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/activity/dto"
)

// Command applies a user command. It never returns an error; failures are
// reported in the result.
func (i *Interactor) Command(ctx context.Context, input dto.CommandInput) dto.CommandResult {
	var result dto.CommandResult
	err := i.loop.Call(ctx, func() {
		now := i.nowMs(input.TS)
		changed, err := i.commands.Apply(input.Type, input.SessionID, input.Summary, now)
		if err != nil {
			result = dto.CommandResult{OK: false, Error: err.Error()}
			return
		}
		result = dto.CommandResult{OK: true}
		switch input.Type {
		case domain.CommandResetState, domain.CommandTrackingPause:
			i.cancelAnalysis()
		}
		if changed {
			i.logger.Info().Str("command", input.Type).Str("session_id", input.SessionID).Msg("command applied")
			i.afterMutation(input.Type)
		}
	})
	if err != nil {
		return dto.CommandResult{OK: false, Error: err.Error()}
	}
	return result
}
