package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordScenario(ScenarioRecord) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordBatch(BatchRecord) error {
	r.count++
	return r.err
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, NopSink{})
	if err := m.RecordScenario(ScenarioRecord{}); err != nil {
		t.Fatalf("record scenario: %v", err)
	}
	if err := m.RecordBatch(BatchRecord{}); err != nil {
		t.Fatalf("record batch: %v", err)
	}
	if err := m.RecordSolve(SolveRecord{}); err != nil {
		t.Fatalf("record solve: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("down")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	if err := NewMultiSink(s1, s2).RecordBatch(BatchRecord{}); !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
	if s2.count != 0 {
		t.Fatalf("second sink should not be called")
	}
}
