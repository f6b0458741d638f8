// Package datar provides a high-level façade over the session & dispatch
// orchestrator for the DATAR conversational service. Most applications
// interact with this package by:
//  1. Creating a Service via New() (optionally overriding the registry,
//     model, capability or stores)
//  2. Dispatching chat turns through Dispatcher()
//  3. Inspecting sessions through Sessions() and personas through Registry()
//
// The façade wires the registry, session store, execution capability and
// dispatcher together while keeping every piece individually replaceable.
// All defaults are safe for local development and testing; production
// deployments supply a real model and a structured logger.
package datar

import (
	"fmt"
	"strings"
	"time"

	"datar/capability"
	"datar/core"
	"datar/dispatch"
	"datar/logging"
	"datar/model"
	"datar/registry"
	"datar/session"
)

// RootAgentName is the default name of the root conversational agent; it
// appears in dispatch results when no routing hint resolves and in the
// fallback response for text-free runs.
const RootAgentName = "DATAR"

// Options configures the Service instance.
type Options struct {
	// Registry is the persona catalog. Defaults to the DATAR roster.
	Registry *registry.Registry

	// Capability overrides the execution backend entirely. When nil, a
	// ModelCapability is built around Model.
	Capability core.Capability

	// Model generates responses for the default capability. Defaults to a
	// MockModel, which keeps the service runnable without credentials.
	Model model.Model

	// UserID is attached to every allocated execution context.
	UserID string

	// Dispatch bounds.
	MaxMessageLength  int
	MaxResponseLength int
	ExecuteTimeout    time.Duration

	// Session store bounds.
	MaxSessions int
	IdleTTL     time.Duration

	// Streaming toggles partial event emission from the default capability.
	Streaming bool

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Service aggregates the orchestrator and its collaborators.
type Service struct {
	registry   *registry.Registry
	capability core.Capability
	sessions   *session.Store
	dispatcher *dispatch.Dispatcher
	logger     logging.Logger
}

// New creates a Service with optional overrides. Any unset collaborator is
// initialized with an in-memory default.
func New(optFns ...func(o *Options)) *Service {
	opts := Options{
		Registry:          registry.Default(),
		UserID:            "default_user",
		MaxMessageLength:  2000,
		MaxResponseLength: 10000,
		ExecuteTimeout:    120 * time.Second,
		MaxSessions:       1000,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	execCap := opts.Capability
	if execCap == nil {
		llm := opts.Model
		if llm == nil {
			llm = model.NewMockModel(RootAgentName)
		}
		execCap = capability.New(RootAgentName, llm, func(o *capability.Options) {
			o.Instruction = RosterInstruction(opts.Registry)
			o.Streaming = opts.Streaming
			o.Logger = opts.Logger
		})
	}

	sessions := session.NewStore(execCap, func(o *session.Options) {
		o.UserID = opts.UserID
		o.MaxSessions = opts.MaxSessions
		o.IdleTTL = opts.IdleTTL
		o.Logger = opts.Logger
	})

	dispatcher := dispatch.New(execCap, opts.Registry, sessions, func(o *dispatch.Options) {
		o.MaxMessageLength = opts.MaxMessageLength
		o.MaxResponseLength = opts.MaxResponseLength
		o.ExecuteTimeout = opts.ExecuteTimeout
		o.Logger = opts.Logger
	})

	return &Service{
		registry:   opts.Registry,
		capability: execCap,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     opts.Logger,
	}
}

// Registry returns the persona catalog.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Sessions returns the session store.
func (s *Service) Sessions() *session.Store { return s.sessions }

// Dispatcher returns the dispatch orchestrator.
func (s *Service) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Capability returns the execution backend.
func (s *Service) Capability() core.Capability { return s.capability }

// RosterInstruction builds the system prompt describing the persona roster
// and the directed-to routing convention used by dispatch hints.
func RosterInstruction(reg *registry.Registry) string {
	var b strings.Builder
	b.WriteString("Eres DATAR, el agente raíz del sistema agéntico ambiental de la ")
	b.WriteString("Estructura Ecológica Principal de Bogotá. Coordinas un colectivo de personas agénticas:\n")
	for _, d := range reg.List() {
		fmt.Fprintf(&b, "- %s %s (%s): %s\n", d.Emoji, d.DisplayName, d.ID, d.Description)
	}
	b.WriteString("\nCuando un mensaje llega con la anotación \"[Dirigido a <nombre>]:\", ")
	b.WriteString("prioriza la voz de esa persona, pero decide tú la más adecuada. ")
	b.WriteString("Responde siempre en el registro de la persona elegida.")
	return b.String()
}
