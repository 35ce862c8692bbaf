// Package mqtt publishes search progress to an MQTT broker so dashboards
// can follow long runs.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"github.com/kilianp07/rcpsched/core/events"
	"github.com/kilianp07/rcpsched/infra/logger"
	"github.com/kilianp07/rcpsched/core/monitoring"
	"github.com/kilianp07/rcpsched/internal/eventbus"
)

// Message is the payload written to the progress topic.
type Message struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	Data  any    `json:"data"`
}

// ProgressPublisher forwards search events to Config.ProgressTopic.
// Non-incumbent progress reports are rate limited; incumbents, round ends
// and the final result always go out.
type ProgressPublisher struct {
	cli        pahoClient
	topic      string
	qos        byte
	retained   bool
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewProgressPublisher connects to the broker described by cfg.
func NewProgressPublisher(cfg Config, log logger.Logger) (*ProgressPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &ProgressPublisher{
		cli:        c,
		topic:      cfg.ProgressTopic,
		qos:        cfg.QoS,
		retained:   cfg.Retained,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}, nil
}

func envelope(ev eventbus.Event) (Message, bool) {
	switch e := ev.(type) {
	case events.Progress:
		return Message{Type: "progress", RunID: e.RunID, Data: e}, true
	case events.Round:
		return Message{Type: "round", RunID: e.RunID, Data: e}, true
	case events.Done:
		return Message{Type: "done", RunID: e.RunID, Data: e}, true
	}
	return Message{}, false
}

// Publish sends ev unless it is a throttled progress report or not a
// search event. It retries with exponential backoff and reports the final
// failure to the monitor.
func (p *ProgressPublisher) Publish(ctx context.Context, ev eventbus.Event) error {
	msg, ok := envelope(ev)
	if !ok {
		return nil
	}
	if pr, isProgress := ev.(events.Progress); isProgress && !pr.Incumbent && !p.limiter.Allow() {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.topic, p.qos, p.retained, payload)
		token.Wait()
		if publishErr = token.Error(); publishErr == nil {
			p.log.Debugf("published %s of run %s", msg.Type, msg.RunID)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	monitoring.Capture(publishErr, "mqtt", "run_id", msg.RunID, "type", msg.Type)
	return publishErr
}

// Run publishes everything received on sub until it is closed or ctx ends.
// Publish failures are logged and do not stop the loop.
func (p *ProgressPublisher) Run(ctx context.Context, sub <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := p.Publish(ctx, ev); err != nil {
				p.log.Warnf("mqtt publish: %v", err)
			}
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *ProgressPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
