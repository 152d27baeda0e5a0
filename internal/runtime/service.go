package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/streamgate/streamgate/internal/runtime/config"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
	transportpkg "github.com/streamgate/streamgate/transport"
)

// ServiceDependencies holds the optional collaborators a Service can use.
// Leave fields nil for the defaults.
type ServiceDependencies struct {
	// TransportRegistry resolves the PubSubSystem name to a builder.
	// Defaults to the global registry populated by the transport packages'
	// init functions.
	TransportRegistry *transportpkg.Registry

	// PrometheusRegisterer receives the streamgate collectors when metrics
	// are enabled. Defaults to prometheus.DefaultRegisterer.
	PrometheusRegisterer prometheus.Registerer
}

// Service assembles the delivery pipeline for one process: the transport
// connection, the per-session coordinator registry, and optional metrics
// exposure. Sessions obtained from the same Service share the transport.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport transportpkg.Transport
	conn      *Conn
	registry  *Registry
	metrics   *Metrics
}

// NewService constructs a Service for the supplied configuration, panicking
// on failure. Use TryNewService when the caller wants to handle errors.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) *Service {
	s, err := TryNewService(ctx, conf, log, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService validates the configuration, builds the configured
// transport, and wires the session registry on top of it.
func TryNewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		log = loggingpkg.Nop()
	}

	log.Info("creating streamgate service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	registry := deps.TransportRegistry
	if registry == nil {
		registry = transportpkg.DefaultRegistry
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	transport, err := registry.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("building %q transport: %w", conf.PubSubSystem, err)
	}

	conn, err := NewConn(transport.Publisher, transport.Subscriber, log)
	if err != nil {
		return nil, err
	}

	var metrics *Metrics
	if conf.MetricsEnabled {
		metrics = NewMetrics(deps.PrometheusRegisterer, conf.PubSubSystem)
	}

	sessions, err := NewRegistry(RegistryOptions{
		Listener:       conn,
		BufferCapacity: conf.EffectiveBufferCapacity(),
		Logger:         log,
		MetricsFor: func(string) *Metrics {
			return metrics
		},
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		Conf:      conf,
		Logger:    log,
		transport: transport,
		conn:      conn,
		registry:  sessions,
		metrics:   metrics,
	}, nil
}

// Session returns a consumer session bound to sessionID's coordinator. The
// caller still needs to Attach it before sending.
func (s *Service) Session(sessionID string) (*Session, error) {
	coord, err := s.registry.Coordinator(sessionID)
	if err != nil {
		return nil, err
	}
	return NewSession(coord, s.conn, s.Logger.With(loggingpkg.LogFields{"session_id": sessionID}))
}

// Coordinator exposes the coordinator for sessionID, creating it on first
// use. Most callers want Session instead.
func (s *Service) Coordinator(sessionID string) (*Coordinator, error) {
	return s.registry.Coordinator(sessionID)
}

// Sessions exposes the underlying registry for hosts that manage coordinator
// lifecycles directly.
func (s *Service) Sessions() *Registry {
	return s.registry
}

// Invoker returns the transport invoker sessions dispatch requests on.
func (s *Service) Invoker() Invoker {
	return s.conn
}

// Transport exposes the publisher/subscriber pair the service runs on.
// Useful for hosts that co-locate the event producer with the consumer, such
// as tests and local demos on the channel transport.
func (s *Service) Transport() transportpkg.Transport {
	return s.transport
}

// Start serves the metrics endpoint when configured and blocks until ctx is
// cancelled, then closes the service.
func (s *Service) Start(ctx context.Context) error {
	if s.Conf.MetricsEnabled && s.Conf.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", s.Conf.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.Logger.Info("serving metrics", loggingpkg.LogFields{"address": server.Addr})
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.Logger.Error("metrics server failed", err, nil)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	return s.Close()
}

// Close shuts down every session coordinator, stops the listener pumps, and
// closes the transport. Safe to call more than once; transport close errors
// from the first call are returned.
func (s *Service) Close() error {
	s.registry.Shutdown()
	s.conn.Close()

	var firstErr error
	if err := s.transport.Publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.transport.Subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
