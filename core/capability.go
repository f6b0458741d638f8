package core

import "context"

// Handle is an opaque reference to an execution context owned by a
// Capability. The session store holds handles but never inspects them beyond
// the identifiers exposed here.
type Handle interface {
	ID() string
	UserID() string
}

// Capability is the execution boundary for conversational output. A
// capability owns its contexts (allocation, history, internal agent
// selection); callers drive it through this interface only.
//
// Contract:
//   - NewContext allocates a fresh execution context or fails without side
//     effects.
//   - Execute consumes one user content turn and streams zero or more events
//     on the returned events channel, closing it on completion. Terminal
//     faults arrive on the error channel. Both channels are closed when the
//     run ends. Implementations must honor ctx cancellation.
//   - History returns the ordered conversational events recorded for the
//     handle.
type Capability interface {
	Name() string
	NewContext(ctx context.Context, userID string) (Handle, error)
	Execute(ctx context.Context, h Handle, content Content) (<-chan Event, <-chan error, error)
	History(ctx context.Context, h Handle) ([]Event, error)
}
