package sinks

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vortexartec/gencore/pkg/contracts"
)

var (
	_ contracts.Publisher = (*NATSPublisher)(nil)
	_ contracts.Queue     = (*JetStreamQueue)(nil)
	_ contracts.Publisher = (*LogSink)(nil)
	_ contracts.Queue     = (*LogSink)(nil)
)

// corePublisher is the slice of *nats.Conn used for pub/sub.
type corePublisher interface {
	Publish(subj string, data []byte) error
}

// streamPublisher is the slice of nats.JetStreamContext used for queueing.
type streamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher broadcasts on core NATS subjects. Delivery is at-most-once.
type NATSPublisher struct {
	conn corePublisher
}

func NewNATSPublisher(conn corePublisher) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(topic, msg); err != nil {
		return fmt.Errorf("nats: publish %s: %w", topic, err)
	}
	return nil
}

// JetStreamQueue enqueues onto a JetStream stream subject and waits for the
// server ack.
type JetStreamQueue struct {
	js streamPublisher
}

func NewJetStreamQueue(js streamPublisher) *JetStreamQueue {
	return &JetStreamQueue{js: js}
}

func (q *JetStreamQueue) Enqueue(ctx context.Context, queue string, msg []byte) error {
	if _, err := q.js.Publish(queue, msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("jetstream: enqueue %s: %w", queue, err)
	}
	return nil
}

// EnsureStream creates the stream carrying subjects if it does not exist.
func EnsureStream(js nats.JetStreamManager, name string, subjects ...string) error {
	if _, err := js.StreamInfo(name); err == nil {
		return nil
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: nats.WorkQueuePolicy,
	}); err != nil {
		return fmt.Errorf("jetstream: add stream %s: %w", name, err)
	}
	return nil
}

// LogSink stands in for the broker in zero-config mode.
type LogSink struct {
	Log zerolog.Logger
}

func (s *LogSink) Publish(_ context.Context, topic string, msg []byte) error {
	s.Log.Debug().Str("topic", topic).Int("bytes", len(msg)).Msg("Event published (log sink)")
	return nil
}

func (s *LogSink) Enqueue(_ context.Context, queue string, msg []byte) error {
	s.Log.Debug().Str("queue", queue).Int("bytes", len(msg)).Msg("Message enqueued (log sink)")
	return nil
}
