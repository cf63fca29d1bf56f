package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScenario forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordScenario(r ScenarioRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordScenario(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordBatch forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordBatch(r BatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordBatch(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordSolve forwards to the sinks implementing SolveRecorder.
func (m *MultiSink) RecordSolve(r SolveRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SolveRecorder); ok {
			if err := rec.RecordSolve(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks that hold resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
