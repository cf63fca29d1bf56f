package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/symbiosis/core/metrics"
	"github.com/kilianp07/symbiosis/infra/logger"
)

const defaultInfluxTimeout = 5 * time.Second

// InfluxConfig addresses an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// InfluxSink writes scenario and batch results to InfluxDB as points.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A URL ending in the
// write path is accepted.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultInfluxTimeout
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink when
// the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordScenario writes one scenario_result point.
func (s *InfluxSink) RecordScenario(r coremetrics.ScenarioRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("scenario_result").
		AddTag("batch_id", r.BatchID).
		AddTag("status", r.Status).
		AddField("scenario", r.Scenario).
		AddField("objective", round3(r.Objective)).
		AddField("active_arcs", r.ActiveArcs).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000))
	for k, v := range r.Recovered {
		p = p.AddField("recovered_"+k, round3(v))
	}
	p = p.SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBatch writes one batch_result point.
func (s *InfluxSink) RecordBatch(r coremetrics.BatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("batch_result").
		AddTag("batch_id", r.BatchID).
		AddField("scenarios", r.Scenarios).
		AddField("failures", r.Failures).
		AddField("mean_objective", round3(r.MeanObjective)).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000))
	if r.Error != "" {
		p = p.AddField("error", r.Error)
	}
	p = p.SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSolve writes one solve_result point.
func (s *InfluxSink) RecordSolve(r coremetrics.SolveRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("solve_result").
		AddTag("status", r.Status).
		AddField("objective", round3(r.Objective)).
		AddField("active_arcs", r.ActiveArcs).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
