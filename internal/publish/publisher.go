// Package publish delivers UAV reports and heartbeats to the downstream
// collector over NATS, per spec.md §4.G. Payloads are msgpack-encoded;
// the outbound queue is bounded and drops the newest message on overflow
// rather than blocking the correlator.
package publish

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"wifitap/internal/logging"
	"wifitap/internal/types"
)

const (
	topicUAV       = "uav"
	topicHeartbeat = "heartbeat"
	topicAlert     = "alert"
)

type outboundMessage struct {
	topic   string
	payload interface{}
}

// Publisher owns the bounded outbound queue and the NATS connection to the
// collector. The correlator and watchdog tasks hand it reports and
// heartbeats; a single goroutine drains the queue and publishes.
type Publisher struct {
	logger *logging.Logger
	nc      *nats.Conn
	queue   chan outboundMessage
	hwm     int
	dropped uint64
}

// New connects to the collector at addr ("nats://host:port") and returns a
// Publisher with a queue of the given capacity, per spec.md §4.G's
// zmq_buffer_size / zmq_hwm config knobs (repurposed here as the Go
// channel capacity and its soft high-water mark).
func New(addr string, bufferSize, hwm int, logger *logging.Logger) (*Publisher, error) {
	nc, err := nats.Connect(addr,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.LogPublishEvent("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.LogPublishEvent("nats_connected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to collector at %s: %w", addr, err)
	}

	logger.LogPublishEvent("nats_connected", "addr", addr)

	return &Publisher{
		logger: logger,
		nc:     nc,
		queue:  make(chan outboundMessage, bufferSize),
		hwm:    hwm,
	}, nil
}

// Close drains the outbound queue, publishing whatever is already buffered,
// then closes the NATS connection.
func (p *Publisher) Close() {
	for {
		select {
		case msg := <-p.queue:
			if err := p.publish(msg); err != nil {
				p.logger.LogPublishEvent("publish_error", "topic", msg.topic, "error", err)
			}
		default:
			p.nc.Close()
			return
		}
	}
}

// PublishReport enqueues a UAV report for delivery on the "uav" topic.
func (p *Publisher) PublishReport(report types.UavReport) {
	p.enqueue(topicUAV, report)
}

// PublishHeartbeat enqueues a heartbeat for delivery on the "heartbeat"
// topic.
func (p *Publisher) PublishHeartbeat(hb types.Heartbeat) {
	p.enqueue(topicHeartbeat, hb)
}

// PublishAlert enqueues an arbitrary payload for delivery on the "alert"
// topic. Nothing in the tap calls it; the topic is reserved.
func (p *Publisher) PublishAlert(payload interface{}) {
	p.enqueue(topicAlert, payload)
}

// enqueue drops the newest message if the queue is at its high-water
// mark, per spec.md §4.G's explicit drop-newest-on-overflow policy — a
// slow or disconnected collector must never apply backpressure to the
// correlator.
func (p *Publisher) enqueue(topic string, payload interface{}) {
	if len(p.queue) >= p.hwm {
		p.drop(topic)
		return
	}

	select {
	case p.queue <- outboundMessage{topic: topic, payload: payload}:
	default:
		p.drop(topic)
	}
}

func (p *Publisher) drop(topic string) {
	atomic.AddUint64(&p.dropped, 1)
	p.logger.LogPublishEvent("queue_full", "topic", topic, "depth", len(p.queue))
}

// QueueDepth returns the current outbound queue depth, for heartbeat/debug
// use.
func (p *Publisher) QueueDepth() int {
	return len(p.queue)
}

// HWM returns the configured high-water mark, so callers (the watchdog)
// can judge queue depth as a fraction of capacity.
func (p *Publisher) HWM() int {
	return p.hwm
}

// DroppedCount returns the cumulative number of messages dropped for
// high-water-mark overflow, per spec.md §4.G's drop counter requirement.
func (p *Publisher) DroppedCount() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Run drains the outbound queue until ctx is cancelled, publishing each
// message as a two-frame (topic, msgpack payload) NATS message.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.queue:
			if err := p.publish(msg); err != nil {
				p.logger.LogPublishEvent("publish_error", "topic", msg.topic, "error", err)
			}
		}
	}
}

func (p *Publisher) publish(msg outboundMessage) error {
	data, err := msgpack.Marshal(msg.payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", msg.topic, err)
	}

	if err := p.nc.Publish(msg.topic, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", msg.topic, err)
	}

	return nil
}
