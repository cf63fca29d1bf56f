// Package events defines the events emitted on the event bus while
// optimizations and scenario batches run.
//
// Available event types:
//   - SolveEvent: a single exchange optimization finished
//   - ScenarioEvent: one scenario of a batch finished
//   - BatchEvent: a scenario batch finished
package events
