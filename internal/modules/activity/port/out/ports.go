package out

import "context"

// Persister is the debounced persistence scheduler.
type Persister interface {
	SchedulePersist(reason string)
	FlushPersist(ctx context.Context) error
	CancelPersist()
}

// Broadcaster batches realtime updates to observers.
type Broadcaster interface {
	ScheduleBroadcast(reason string)
}

// HostState answers questions about the browser the engine cannot observe
// through signals. Calls may block and may fail.
type HostState interface {
	WindowFocused(ctx context.Context) (bool, error)
	IdleState(ctx context.Context) (string, error)
	ActiveTab(ctx context.Context) (HostTab, error)
}

type HostTab struct {
	TabID int
	URL   string
	Title string
}
