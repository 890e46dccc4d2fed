package out

import (
	"context"

	activityout "tabtrail/internal/modules/activity/port/out"
)

// StaticHost is used when the capture layer pushes every change itself: it
// reports a focused, active window and no tab of its own.
type StaticHost struct {
	Focused bool
	Idle    string
}

func NewStaticHost() StaticHost {
	return StaticHost{Focused: true, Idle: "active"}
}

func (h StaticHost) WindowFocused(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return h.Focused, nil
}

func (h StaticHost) IdleState(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return h.Idle, nil
}

func (h StaticHost) ActiveTab(ctx context.Context) (activityout.HostTab, error) {
	return activityout.HostTab{}, ctx.Err()
}
