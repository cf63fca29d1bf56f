package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/symbiosis/config"
	coremetrics "github.com/kilianp07/symbiosis/core/metrics"
	"github.com/kilianp07/symbiosis/core/model"
	"github.com/kilianp07/symbiosis/core/runlog"
	"github.com/kilianp07/symbiosis/core/uncertainty"
	"github.com/kilianp07/symbiosis/infra/logger"
)

type recordingSink struct {
	mu        sync.Mutex
	scenarios []coremetrics.ScenarioRecord
	batches   []coremetrics.BatchRecord
	solves    []coremetrics.SolveRecord
}

func (s *recordingSink) RecordScenario(r coremetrics.ScenarioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, r)
	return nil
}

func (s *recordingSink) RecordBatch(r coremetrics.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, r)
	return nil
}

func (s *recordingSink) RecordSolve(r coremetrics.SolveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solves = append(s.solves, r)
	return nil
}

func twoFirmInstance(t *testing.T) model.Instance {
	t.Helper()
	inst, err := model.NewInstance(
		[][]float64{{100}, {0}},
		[][]float64{{0}, {80}},
		[][]float64{{0, 10}, {10, 0}},
	)
	require.NoError(t, err)
	return inst
}

func testConfig() *config.Config {
	cfg := config.Default()
	// heat only, scrap has no supply in the fixture
	off := false
	cfg.Synergies = []config.SynergyConfig{{Name: "scrap_polymer", Enabled: &off}}
	return cfg
}

func TestService_OptimizeAndBatch(t *testing.T) {
	sink := &recordingSink{}
	store, err := runlog.NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 1, 1)
	require.NoError(t, err)

	svc, err := New(testConfig(), WithSink(sink), WithStore(store), WithLogger(logger.NopLogger{}))
	require.NoError(t, err)

	inst := twoFirmInstance(t)
	res, err := svc.Optimize(context.Background(), inst)
	require.NoError(t, err)
	require.True(t, res.IsOptimal())
	assert.InDelta(t, 80/0.9, res.Flow(model.HeatToElectricity, 0, 1), 1e-4)

	base, err := svc.Baseline(inst)
	require.NoError(t, err)
	assert.Greater(t, base.Total, res.Objective)

	st, err := svc.Settings()
	require.NoError(t, err)
	st.Scenarios = 12
	st.Workers = 3
	st.Seed = 7
	batch, err := svc.RunBatch(context.Background(), inst, st, "two-firms")
	require.NoError(t, err)
	require.Len(t, batch.Runs, 12)
	assert.Equal(t, 0, batch.Failures())

	recs, err := svc.History(context.Background(), runlog.Query{Case: "two-firms"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, batch.ID, recs[0].ID)
	require.NotEmpty(t, recs[0].TopLinks)
	assert.Equal(t, string(uncertainty.ClassRobust), recs[0].TopLinks[0].Class)

	require.NoError(t, svc.Close())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.solves, 1)
	assert.Equal(t, "optimal", sink.solves[0].Status)
	assert.Len(t, sink.scenarios, 12)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, batch.ID, sink.batches[0].BatchID)
}

func TestService_InvalidInstance(t *testing.T) {
	svc, err := New(testConfig(), WithSink(coremetrics.NopSink{}), WithLogger(logger.NopLogger{}))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	inst := twoFirmInstance(t)
	inst.Names = []string{"only-one"}
	_, err = svc.Optimize(context.Background(), inst)
	assert.Error(t, err)
	_, err = svc.RunBatch(context.Background(), inst, uncertainty.DefaultSettings(), "")
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	svc, err := New(nil, WithLogger(logger.NopLogger{}))
	require.NoError(t, err)
	assert.NotNil(t, svc.Config())
	assert.Equal(t, uncertainty.DefaultThresholds(), svc.Thresholds())
	assert.NoError(t, svc.ServeMetrics(context.Background()))
	assert.NoError(t, svc.Close())
}
