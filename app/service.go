package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kmathy/carlink/auth"
	"github.com/kmathy/carlink/config"
	"github.com/kmathy/carlink/core/coordinator"
	"github.com/kmathy/carlink/core/garage"
	coremetrics "github.com/kmathy/carlink/core/metrics"
	"github.com/kmathy/carlink/infra/logger"
	"github.com/kmathy/carlink/infra/metrics"
	"github.com/kmathy/carlink/infra/mqtt"
	"github.com/kmathy/carlink/infra/rest"
)

// Service wires the session together: auth, REST client, coordinator and the
// broker connection. One Service is one logical client session.
type Service struct {
	Coordinator *coordinator.Coordinator
	API         *rest.Client
	bus         *mqtt.Client
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration and connects to the broker.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	creds := auth.NewClientCred(cfg.Auth)
	api := rest.NewClient(cfg.API, creds, logger.New("rest"))

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	coord := coordinator.New(coordinator.Config{
		Fetcher:          api,
		Sender:           api,
		Garage:           garage.NewMemoryStore(),
		Sink:             sink,
		Log:              logger.New("coordinator"),
		DebounceWindow:   time.Duration(cfg.Session.DebounceWindowSeconds) * time.Second,
		OperationTimeout: time.Duration(cfg.Session.OperationTimeoutSeconds) * time.Second,
		SettleDelay:      time.Duration(cfg.Session.SettleDelaySeconds) * time.Second,
	})

	bus, err := mqtt.NewClient(cfg.MQTT, cfg.UserID, cfg.VINs, creds, coord.HandleMessage, logger.New("mqtt"))
	if err != nil {
		coord.Close()
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	return &Service{
		Coordinator: coord,
		API:         api,
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close disconnects from the broker and cancels all pending operations.
func (s *Service) Close() error {
	s.bus.Close()
	s.Coordinator.Close()
	return nil
}
