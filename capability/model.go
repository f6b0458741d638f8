// Package capability implements the agent execution boundary: an opaque
// component that owns per-session execution contexts, drives a language model
// with the accumulated conversation, and streams output events back to the
// dispatcher. Agent selection among the personas happens inside the model,
// biased (not forced) by directed-to annotations in the routed message.
package capability

import (
	"context"
	"fmt"
	"sync"

	"datar/core"
	"datar/logging"
	"datar/model"
)

// Options configures a ModelCapability.
type Options struct {
	// Instruction is the system prompt given to the model on every run.
	Instruction string
	// MaxHistoryTurns bounds how many recorded turns accompany a run.
	MaxHistoryTurns int
	// EventBufferSize sets channel buffering for emitted events.
	EventBufferSize int
	// Streaming toggles partial event emission from the model.
	Streaming bool
	// Logger receives execution lifecycle events.
	Logger logging.Logger
}

// ModelCapability drives a model.Model as the root conversational agent.
// Each handle owns an isolated event history; public methods are safe for
// concurrent use across handles. Concurrent Execute calls on the same handle
// serialize on the context's own lock.
type ModelCapability struct {
	name        string
	llm         model.Model
	instruction string
	maxHistory  int
	bufSize     int
	streaming   bool
	logger      logging.Logger
}

// New constructs a ModelCapability named name, generating with llm.
func New(name string, llm model.Model, optFns ...func(o *Options)) *ModelCapability {
	opts := Options{
		Instruction:     fmt.Sprintf("Eres %s, un agente conversacional.", name),
		MaxHistoryTurns: 20,
		EventBufferSize: 100,
		Streaming:       false,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelCapability{
		name:        name,
		llm:         llm,
		instruction: opts.Instruction,
		maxHistory:  opts.MaxHistoryTurns,
		bufSize:     opts.EventBufferSize,
		streaming:   opts.Streaming,
		logger:      opts.Logger,
	}
}

// Name returns the root agent name used in results and fallback responses.
func (c *ModelCapability) Name() string { return c.name }

// NewContext allocates a fresh execution context. Fails without side effects
// when no model is configured.
func (c *ModelCapability) NewContext(_ context.Context, userID string) (core.Handle, error) {
	if c.llm == nil {
		return nil, fmt.Errorf("no model configured for capability %s", c.name)
	}
	return &executionContext{id: core.NewID(), userID: userID}, nil
}

// Execute runs one conversational turn. The user content is recorded in the
// handle's history, the model is driven with the accumulated turns, and every
// model response is forwarded as an event. The final assistant turn is
// appended to history on success.
func (c *ModelCapability) Execute(
	ctx context.Context,
	h core.Handle,
	content core.Content,
) (<-chan core.Event, <-chan error, error) {
	ec, ok := h.(*executionContext)
	if !ok {
		return nil, nil, fmt.Errorf("handle %s was not allocated by this capability", h.ID())
	}

	userEvent := core.NewEvent("user")
	userEvent.Content = &content
	ec.append(userEvent)

	req := model.Request{
		Instructions: c.instruction,
		Contents:     ec.recentContents(c.maxHistory),
		Stream:       c.streaming,
	}

	events := make(chan core.Event, c.bufSize)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		respCh, errCh := c.llm.Generate(ctx, req)
		for respCh != nil || errCh != nil {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case resp, ok := <-respCh:
				if !ok {
					respCh = nil
					continue
				}
				ev := core.NewEvent(c.name)
				respContent := resp.Content
				ev.Content = &respContent
				ev.Partial = resp.Partial
				if !resp.Partial {
					ec.append(ev)
				}
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case events <- ev:
				}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					c.logger.Error("model generation failed",
						"capability", c.name, "handle_id", ec.id, "error", err)
					errs <- fmt.Errorf("model generation failed: %w", err)
					return
				}
			}
		}
	}()

	return events, errs, nil
}

// History returns a copy of the ordered events recorded for the handle.
func (c *ModelCapability) History(_ context.Context, h core.Handle) ([]core.Event, error) {
	ec, ok := h.(*executionContext)
	if !ok {
		return nil, fmt.Errorf("handle %s was not allocated by this capability", h.ID())
	}
	return ec.snapshot(), nil
}

// executionContext is the concrete handle: an isolated, mutex-guarded event
// history for one session.
type executionContext struct {
	id     string
	userID string

	mu     sync.Mutex
	events []core.Event
}

// ID returns the handle identifier.
func (e *executionContext) ID() string { return e.id }

// UserID returns the identity the context was allocated for.
func (e *executionContext) UserID() string { return e.userID }

func (e *executionContext) append(ev core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *executionContext) snapshot() []core.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Event, len(e.events))
	copy(out, e.events)
	return out
}

// recentContents returns the content of the last maxTurns recorded events,
// oldest first, for use as model context.
func (e *executionContext) recentContents(maxTurns int) []core.Content {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := 0
	if maxTurns > 0 && len(e.events) > maxTurns {
		start = len(e.events) - maxTurns
	}

	contents := make([]core.Content, 0, len(e.events)-start)
	for _, ev := range e.events[start:] {
		if ev.Content == nil {
			continue
		}
		contents = append(contents, *ev.Content)
	}
	return contents
}
