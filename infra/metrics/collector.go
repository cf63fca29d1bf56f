package metrics

import (
	"context"
	"sync"

	"github.com/kilianp07/symbiosis/core/events"
	coremetrics "github.com/kilianp07/symbiosis/core/metrics"
	"github.com/kilianp07/symbiosis/infra/logger"
	"github.com/kilianp07/symbiosis/internal/eventbus"
)

// StartEventCollector subscribes to the bus and records every event on sink.
// It stops when ctx is canceled or the bus is closed; the returned function
// blocks until the collector goroutine has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.Sink, log logger.Logger) (wait func()) {
	if bus == nil || sink == nil {
		return func() {}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %s event: %v", ev.EventName(), err)
				}
			}
		}
	}()
	return wg.Wait
}

func record(sink coremetrics.Sink, ev events.Event) error {
	switch e := ev.(type) {
	case events.ScenarioEvent:
		return sink.RecordScenario(coremetrics.ScenarioRecord{
			BatchID:    e.BatchID,
			Scenario:   e.Scenario,
			Status:     e.Status,
			Objective:  e.Objective,
			ActiveArcs: e.ActiveArcs,
			Recovered:  e.Recovered,
			Duration:   e.Duration,
			Time:       e.Time,
		})
	case events.BatchEvent:
		errStr := ""
		if e.Err != nil {
			errStr = e.Err.Error()
		}
		return sink.RecordBatch(coremetrics.BatchRecord{
			BatchID:       e.BatchID,
			Scenarios:     e.Scenarios,
			Failures:      e.Failures,
			MeanObjective: e.MeanObjective,
			Duration:      e.Duration,
			Error:         errStr,
			Time:          e.Time,
		})
	case events.SolveEvent:
		if r, ok := sink.(coremetrics.SolveRecorder); ok {
			return r.RecordSolve(coremetrics.SolveRecord{
				Status:     e.Status,
				Objective:  e.Objective,
				ActiveArcs: e.ActiveArcs,
				Duration:   e.Duration,
				Time:       e.Time,
			})
		}
	}
	return nil
}
