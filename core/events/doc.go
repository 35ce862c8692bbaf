// Package events defines the search related events emitted on the event bus.
//
// Available event types:
//   - Progress: periodic report and every new incumbent
//   - Round: a round of the search ended
//   - Done: the run finished
package events
