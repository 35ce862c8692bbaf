package metrics

import (
	"context"

	"github.com/kilianp07/rcpsched/core/events"
	coremetrics "github.com/kilianp07/rcpsched/core/metrics"
	"github.com/kilianp07/rcpsched/infra/logger"
	"github.com/kilianp07/rcpsched/internal/eventbus"
)

// CollectEvents records the search events read from sub. It returns when
// sub is closed or ctx is done. Sink failures are logged and skipped.
func CollectEvents(ctx context.Context, sub <-chan eventbus.Event, sink coremetrics.MetricsSink, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			var err error
			switch e := ev.(type) {
			case events.Progress:
				err = sink.RecordProgress(e)
			case events.Round:
				if r, ok := sink.(coremetrics.RoundRecorder); ok {
					err = r.RecordRound(e)
				}
			case events.Done:
				if r, ok := sink.(coremetrics.ResultRecorder); ok {
					err = r.RecordResult(e)
				}
			}
			if err != nil {
				log.Warnf("metrics sink: %v", err)
			}
		}
	}
}

// StartEventCollector subscribes to the bus and records events in the
// background until the context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		CollectEvents(ctx, sub, sink, log)
	}()
}
