// Package dispatch owns the core orchestration of one chat turn: validate the
// message, resolve or mint the session, bias routing through the optional
// agent hint, drive the execution capability to completion, aggregate its
// text output and record the completed message. It is the only writer of
// session metadata.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"datar/core"
	"datar/logging"
	"datar/registry"
	"datar/session"
)

// Request is one inbound chat turn. SessionID may be empty, in which case a
// fresh id is minted. AgentHint is advisory: it biases routing by annotating
// the message but never forces selection.
type Request struct {
	SessionID string
	Message   string
	AgentHint string
}

// Result is the aggregated outcome of a completed dispatch.
type Result struct {
	Response  string
	AgentName string
	SessionID string
	Timestamp time.Time
}

// Options configures a Dispatcher.
type Options struct {
	// MaxMessageLength caps inbound message size (runes).
	MaxMessageLength int
	// MaxResponseLength caps the aggregated response; longer output is
	// prefix-truncated.
	MaxResponseLength int
	// ExecuteTimeout bounds the capability run. 0 disables the deadline.
	ExecuteTimeout time.Duration
	// Logger receives dispatch lifecycle events.
	Logger logging.Logger
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Dispatcher routes chat turns through the execution capability. Safe for
// concurrent use; all mutable state lives in the session store.
type Dispatcher struct {
	capability core.Capability
	registry   *registry.Registry
	sessions   *session.Store

	maxMessageLen  int
	maxResponseLen int
	executeTimeout time.Duration
	logger         logging.Logger
	clock          func() time.Time
}

// New constructs a Dispatcher with optional overrides.
func New(
	capability core.Capability,
	reg *registry.Registry,
	sessions *session.Store,
	optFns ...func(o *Options),
) *Dispatcher {
	opts := Options{
		MaxMessageLength:  2000,
		MaxResponseLength: 10000,
		ExecuteTimeout:    120 * time.Second,
		Logger:            logging.NoOpLogger{},
		Clock:             time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{
		capability:     capability,
		registry:       reg,
		sessions:       sessions,
		maxMessageLen:  opts.MaxMessageLength,
		maxResponseLen: opts.MaxResponseLength,
		executeTimeout: opts.ExecuteTimeout,
		logger:         opts.Logger,
		clock:          opts.Clock,
	}
}

// Dispatch drives one chat turn to completion.
//
// The turn progresses Validating → SessionResolving → Routing → Executing →
// Aggregating → Completed. Each failing stage short-circuits without mutating
// session metadata: InputError from validation, session.CreationError from
// resolution, ExecutionError from the capability run. The message count
// reflects completed dispatches only.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Result{}, &InputError{Reason: "message must not be empty"}
	}
	if len([]rune(req.Message)) > d.maxMessageLen {
		return Result{}, &InputError{
			Reason: fmt.Sprintf("message exceeds maximum length of %d characters", d.maxMessageLen),
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	handle, err := d.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		d.logger.Error("session resolution failed",
			"session_id", sessionID, "error", err)
		return Result{}, err
	}

	routed, agentName := d.route(req.Message, req.AgentHint)

	start := d.clock()
	text, err := d.execute(ctx, sessionID, handle, routed)
	if err != nil {
		d.logger.Error("dispatch failed",
			"session_id", sessionID,
			"message_excerpt", excerpt(req.Message),
			"error", err)
		return Result{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = fmt.Sprintf("[%s] procesó tu mensaje, pero no generó una respuesta de texto.", d.capability.Name())
	}
	text = truncate(text, d.maxResponseLen)

	if err := d.sessions.RecordCompletedMessage(sessionID); err != nil {
		// The session can only vanish between execute and record through
		// concurrent deletion or eviction; the response is still valid.
		d.logger.Warn("completed message not recorded", "session_id", sessionID, "error", err)
	}

	d.logger.Info("dispatch completed",
		"session_id", sessionID,
		"agent", agentName,
		"message_excerpt", excerpt(req.Message),
		"duration", d.clock().Sub(start))

	return Result{
		Response:  text,
		AgentName: agentName,
		SessionID: sessionID,
		Timestamp: d.clock(),
	}, nil
}

// route applies the advisory agent hint: a resolvable hint prefixes the
// message with a directed-to annotation and resolves the display name used in
// the result. Unknown hints fall back to default routing, not an error.
func (d *Dispatcher) route(message, hint string) (routed, agentName string) {
	routed = message
	agentName = d.capability.Name()

	if hint == "" {
		return routed, agentName
	}

	desc, ok := d.registry.Describe(hint)
	if !ok {
		d.logger.Debug("unknown agent hint, using default routing", "agent_hint", hint)
		return routed, agentName
	}

	routed = fmt.Sprintf("[Dirigido a %s]: %s", desc.DisplayName, message)
	return routed, desc.DisplayName
}

// execute drives the capability run to completion, concatenating every text
// fragment across all emitted events in emission order.
func (d *Dispatcher) execute(ctx context.Context, sessionID string, handle core.Handle, message string) (string, error) {
	if d.executeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.executeTimeout)
		defer cancel()
	}

	events, errs, err := d.capability.Execute(ctx, handle, core.NewUserText(message))
	if err != nil {
		return "", &ExecutionError{SessionID: sessionID, Err: err}
	}

	var b strings.Builder
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return "", &ExecutionError{
				SessionID: sessionID,
				Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
				Err:       ctx.Err(),
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.WriteString(ev.Text())
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return "", &ExecutionError{SessionID: sessionID, Err: err}
			}
		}
	}

	return b.String(), nil
}

// truncate hard-caps s at max runes, preserving the prefix. No attempt is
// made to cut on a semantic boundary.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// excerpt returns a short, loggable prefix of a message so diagnostics never
// carry full message bodies.
func excerpt(s string) string {
	const n = 64
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
