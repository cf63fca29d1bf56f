package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/symbiosis/api/runs"
	"github.com/kilianp07/symbiosis/config"
	"github.com/kilianp07/symbiosis/core/events"
	"github.com/kilianp07/symbiosis/core/exchange"
	coremetrics "github.com/kilianp07/symbiosis/core/metrics"
	"github.com/kilianp07/symbiosis/core/model"
	"github.com/kilianp07/symbiosis/core/runlog"
	"github.com/kilianp07/symbiosis/core/uncertainty"
	"github.com/kilianp07/symbiosis/infra/logger"
	"github.com/kilianp07/symbiosis/infra/metrics"
	"github.com/kilianp07/symbiosis/internal/eventbus"
)

const eventBuffer = 4096

// Service wires the optimizer, the uncertainty engine, metrics and the run
// log behind one configuration.
type Service struct {
	cfg       *config.Config
	optimizer *exchange.Optimizer
	engine    *uncertainty.Engine
	bus       *eventbus.Bus[events.Event]
	sink      coremetrics.Sink
	store     runlog.Store
	log       logger.Logger

	stop context.CancelFunc
	wait func()
}

// Option overrides a dependency built from the configuration.
type Option func(*Service)

// WithLogger replaces the zerolog logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithSink replaces the sink built from metrics.sinks.
func WithSink(sink coremetrics.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithStore replaces the run log opened from runlog.
func WithStore(st runlog.Store) Option {
	return func(s *Service) { s.store = st }
}

// New creates a Service from the configuration and starts the event
// collector. Call Close to flush pending events.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewWithLevel("service", cfg.Logging.Level)
	}
	if s.sink == nil {
		sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		s.sink = sink
	}
	if s.store == nil {
		store, err := runlog.Open(cfg.RunLog)
		if err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
		s.store = store
	}

	s.optimizer = exchange.NewOptimizer(
		exchange.WithSolver(cfg.Optimizer.Solver()),
		exchange.WithOptions(cfg.Optimizer.Options()),
		exchange.WithLogger(s.log),
	)
	s.bus = eventbus.New[events.Event](eventBuffer)
	s.engine = uncertainty.NewEngine(s.optimizer,
		uncertainty.WithLogger(s.log),
		uncertainty.WithPublisher(s.bus),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.wait = metrics.StartEventCollector(ctx, s.bus, s.sink, s.log)
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config { return s.cfg }

// Settings returns the configured batch settings.
func (s *Service) Settings() (uncertainty.Settings, error) {
	return s.cfg.Uncertainty.Settings()
}

// Thresholds returns the configured robustness thresholds.
func (s *Service) Thresholds() uncertainty.Thresholds { return s.cfg.Uncertainty.Thresholds }

// Optimize solves inst once with the configured costs and synergies.
func (s *Service) Optimize(ctx context.Context, inst model.Instance) (exchange.Result, error) {
	p, err := s.cfg.Problem(inst)
	if err != nil {
		return exchange.Result{}, err
	}
	start := time.Now()
	res, err := s.optimizer.Solve(ctx, p)
	if err != nil {
		return res, err
	}
	s.bus.Publish(events.SolveEvent{
		Status:     res.Status.String(),
		Objective:  res.Objective,
		ActiveArcs: len(res.ActiveArcs()),
		Duration:   time.Since(start),
		Time:       time.Now(),
	})
	return res, nil
}

// Baseline returns the cost of inst when no exchange takes place.
func (s *Service) Baseline(inst model.Instance) (exchange.CostBreakdown, error) {
	p, err := s.cfg.Problem(inst)
	if err != nil {
		return exchange.CostBreakdown{}, err
	}
	return exchange.Baseline(p)
}

// RunBatch runs a Monte Carlo batch on inst and appends its summary to the
// run log. A batch cut short by ctx is still logged and returned with the
// context error.
func (s *Service) RunBatch(ctx context.Context, inst model.Instance, st uncertainty.Settings, caseName string) (*uncertainty.Batch, error) {
	p, err := s.cfg.Problem(inst)
	if err != nil {
		return nil, err
	}
	batch, runErr := s.engine.Run(ctx, p, st)
	if batch == nil {
		return nil, runErr
	}
	rec := runlog.NewRecord(batch, caseName, s.cfg.RunLog.TopLinks, runErr)
	// the batch context may be done already
	if err := s.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Errorf("run log append: %v", err)
	}
	return batch, runErr
}

// History returns run log records matching q.
func (s *Service) History(ctx context.Context, q runlog.Query) ([]runlog.Record, error) {
	return s.store.Query(ctx, q)
}

// ServeMetrics exposes Prometheus metrics and the run log API until ctx
// ends. It returns immediately when no address is configured.
func (s *Service) ServeMetrics(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusAddr == "" {
		return nil
	}
	return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr, map[string]http.Handler{
		runs.Path: runs.NewHandler(s.store, s.cfg.RunLog.APIToken),
	})
}

// Close drains pending events into the sink and releases the run log.
func (s *Service) Close() error {
	s.bus.Close()
	s.wait()
	s.stop()
	if d := s.bus.Dropped(); d > 0 {
		s.log.Warnf("%d metric events dropped", d)
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return s.store.Close()
}
