package streamgate

import (
	runtimepkg "github.com/streamgate/streamgate/internal/runtime"
	catalogpkg "github.com/streamgate/streamgate/internal/runtime/catalog"
	configpkg "github.com/streamgate/streamgate/internal/runtime/config"
	envelopepkg "github.com/streamgate/streamgate/internal/runtime/envelope"
	errspkg "github.com/streamgate/streamgate/internal/runtime/errors"
	idspkg "github.com/streamgate/streamgate/internal/runtime/ids"
	jsoncodec "github.com/streamgate/streamgate/internal/runtime/jsoncodec"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
	transportpkg "github.com/streamgate/streamgate/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	// Core coordination types.
	EventBuffer     = runtimepkg.EventBuffer
	Coordinator     = runtimepkg.Coordinator
	Registry        = runtimepkg.Registry
	RequestTracker  = runtimepkg.RequestTracker
	Session         = runtimepkg.Session
	SessionState    = runtimepkg.SessionState
	HandlerSet      = runtimepkg.HandlerSet
	UnsubscribeFunc = runtimepkg.UnsubscribeFunc
	UnregisterFunc  = runtimepkg.UnregisterFunc

	CoordinatorOptions = runtimepkg.CoordinatorOptions
	RegistryOptions    = runtimepkg.RegistryOptions

	// Transport primitives.
	Conn     = runtimepkg.Conn
	Listener = runtimepkg.Listener
	Invoker  = runtimepkg.Invoker
	Metrics  = runtimepkg.Metrics

	// Wire contract.
	Envelope        = envelopepkg.Envelope
	MessageStart    = catalogpkg.MessageStart
	MessageChunk    = catalogpkg.MessageChunk
	ToolStart       = catalogpkg.ToolStart
	ToolComplete    = catalogpkg.ToolComplete
	SessionComplete = catalogpkg.SessionComplete
	SessionError    = catalogpkg.SessionError
	SendRequest     = catalogpkg.SendRequest

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	RegistrationError = errspkg.RegistrationError

	// Modular transport types.
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

// Session states, driven only by delivered events.
const (
	StateIdle      = runtimepkg.StateIdle
	StateSending   = runtimepkg.StateSending
	StateStreaming = runtimepkg.StateStreaming
	StateComplete  = runtimepkg.StateComplete
	StateError     = runtimepkg.StateError
)

// The versioned event catalog. One payload shape per name; changing a shape
// is a breaking change that ships under a new name.
const (
	EventMessageStart    = catalogpkg.EventMessageStart
	EventMessageChunk    = catalogpkg.EventMessageChunk
	EventToolStart       = catalogpkg.EventToolStart
	EventToolComplete    = catalogpkg.EventToolComplete
	EventSessionComplete = catalogpkg.EventSessionComplete
	EventSessionError    = catalogpkg.EventSessionError

	MethodSessionSend = catalogpkg.MethodSessionSend

	DefaultBufferCapacity = configpkg.DefaultBufferCapacity

	EnvelopeVersion = envelopepkg.Version
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig

	NewCoordinator = runtimepkg.NewCoordinator
	NewRegistry    = runtimepkg.NewRegistry
	NewSession     = runtimepkg.NewSession

	NewEventBuffer    = runtimepkg.NewEventBuffer
	NewRequestTracker = runtimepkg.NewRequestTracker

	NewConn    = runtimepkg.NewConn
	NewMetrics = runtimepkg.NewMetrics

	EventNames = catalogpkg.Names

	// Envelope constructors and codec.
	NewEnvelope      = envelopepkg.New
	NewProtoEnvelope = envelopepkg.NewProto
	DecodeEnvelope   = envelopepkg.Decode

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrCoordinatorRequired = errspkg.ErrCoordinatorRequired
	ErrTransportRequired   = errspkg.ErrTransportRequired
	ErrInvokerRequired     = errspkg.ErrInvokerRequired
	ErrMethodRequired      = errspkg.ErrMethodRequired
	ErrEventNameRequired   = errspkg.ErrEventNameRequired
	ErrConnClosed          = errspkg.ErrConnClosed
	ErrCoordinatorClosed   = errspkg.ErrCoordinatorClosed
	ErrSessionIDRequired   = errspkg.ErrSessionIDRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.Nop

	CreateULID   = idspkg.CreateULID
	NewRequestID = idspkg.NewRequestID
	NewEventID   = idspkg.NewEventID

	// Modular transport registry.
	// Import individual transports via: _ "github.com/streamgate/streamgate/transport/kafka"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities
)
