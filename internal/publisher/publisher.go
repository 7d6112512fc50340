package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/pkg/model"
)

// msgPublisher is the subset of nats.JetStreamContext used here.
type msgPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher wraps a JetStream context and publishes canonical event envelopes.
type Publisher struct {
	logger  *zap.Logger
	nc      *nats.Conn
	js      msgPublisher
	venue   string
	service string
}

// New creates a Publisher with JetStream enabled.
func New(logger *zap.Logger, nc *nats.Conn, venue, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		logger:  logger,
		nc:      nc,
		js:      js,
		venue:   venue,
		service: service,
	}, nil
}

// Subject builds a venue-scoped subject: evt.<name>.v1.<VENUE>.
func (p *Publisher) Subject(name string) string {
	return "evt." + name + ".v1." + p.venue
}

// PublishEnvelope serializes and publishes an envelope to env.Topic.
func (p *Publisher) PublishEnvelope(ctx context.Context, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", env.Topic),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: env.Topic,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"venue":          []string{env.Venue},
			"maker":          []string{env.Maker},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, env.Topic)

	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", env.Topic),
			zap.String("event_type", env.EventType),
			zap.String("maker", env.Maker),
			zap.Error(err))
		metrics.IncNATSMessage(env.Topic, "error")
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", env.Topic),
		zap.String("event_type", env.EventType),
		zap.String("maker", env.Maker))

	metrics.IncNATSMessage(env.Topic, "ok")
	return nil
}

// PublishEvent wraps payload in an envelope for subject evt.<name>.v1.<VENUE>.
// correlationID ties together all events of one workflow run; uuid.Nil mints a new one.
func (p *Publisher) PublishEvent(ctx context.Context, name, maker string, correlationID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		Venue:         p.venue,
		Maker:         maker,
		Topic:         p.Subject(name),
		EventType:     name,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}
	return p.PublishEnvelope(ctx, env)
}

// Healthy reports whether the underlying NATS connection is up.
func (p *Publisher) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
