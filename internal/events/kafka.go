// Package events publishes terminal reschedule outcomes to Kafka so other
// services (notifications, analytics) can follow calendar changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/reschedule"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer Writer
	logger *slog.Logger
	buffer int
}

type Config struct {
	Brokers string
	Topic   string
	// Buffer is the bus subscription size.
	Buffer int
}

func SplitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewKafkaPublisher returns nil when no brokers are configured.
func NewKafkaPublisher(cfg Config, logger *slog.Logger) *Publisher {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	})
	return NewPublisher(writer, cfg.Buffer, logger)
}

func NewPublisher(w Writer, buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{writer: w, logger: logger, buffer: buffer}
}

type outcomeMessage struct {
	EventID       string             `json:"event_id"`
	EventType     string             `json:"event_type"`
	AppointmentID string             `json:"appointment_id"`
	StylistID     string             `json:"stylist_id,omitempty"`
	ClientID      string             `json:"client_id,omitempty"`
	Op            reschedule.Op      `json:"op"`
	State         reschedule.State   `json:"state"`
	Kind          reschedule.Kind    `json:"kind,omitempty"`
	Description   string             `json:"description"`
	ConflictWith  string             `json:"conflict_with,omitempty"`
	Start         *time.Time         `json:"start,omitempty"`
	End           *time.Time         `json:"end,omitempty"`
	Status        appointment.Status `json:"status,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func eventType(o reschedule.Outcome) string {
	return "appointment." + string(o.Op) + "." + string(o.State)
}

// Message encodes an outcome keyed by appointment id so all changes to one
// appointment land on the same partition in order.
func Message(o reschedule.Outcome) (kafka.Message, error) {
	m := outcomeMessage{
		EventID:       o.AttemptID.String(),
		EventType:     eventType(o),
		AppointmentID: o.AppointmentID.String(),
		Op:            o.Op,
		State:         o.State,
		Kind:          o.Kind,
		Description:   o.Description,
		OccurredAt:    o.At.UTC(),
	}
	if o.After.ID != uuid.Nil {
		start, end := o.After.Start.UTC(), o.After.End.UTC()
		m.StylistID = o.After.StylistID.String()
		m.ClientID = o.After.ClientID.String()
		m.Start, m.End = &start, &end
		m.Status = o.After.Status
	}
	if o.ConflictWith != uuid.Nil {
		m.ConflictWith = o.ConflictWith.String()
	}

	value, err := json.Marshal(m)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal outcome: %w", err)
	}
	return kafka.Message{
		Key:   []byte(m.AppointmentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(m.EventID)},
			{Key: "event_type", Value: []byte(m.EventType)},
		},
		Time: m.OccurredAt,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, o reschedule.Outcome) error {
	msg, err := Message(o)
	if err != nil {
		return err
	}
	msg.Headers = injectTraceHeaders(ctx, msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write outcome %s: %w", o.AttemptID, err)
	}
	return nil
}

// Run forwards every outcome published on bus until ctx is done, then
// closes the writer.
func (p *Publisher) Run(ctx context.Context, bus *reschedule.Bus) {
	outcomes, unsubscribe := bus.Subscribe(p.buffer)
	defer unsubscribe()
	p.Forward(ctx, outcomes)
}

// Forward publishes outcomes until ctx is done or the channel closes. No-op
// commits are skipped. The writer is closed on return.
func (p *Publisher) Forward(ctx context.Context, outcomes <-chan reschedule.Outcome) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn("kafka writer close failed", slog.Any("err", err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			if o.NoOp {
				continue
			}
			if err := p.Publish(ctx, o); err != nil {
				p.logger.Error("outcome publish failed",
					slog.String("appointment_id", o.AppointmentID.String()),
					slog.Any("err", err),
				)
			}
		}
	}
}

// headerCarrier adapts Kafka headers to the OpenTelemetry propagator so
// consumers can continue the trace of the request that caused the change.
type headerCarrier struct {
	headers *[]kafka.Header
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &headers})
	return headers
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i := range *c.headers {
		if (*c.headers)[i].Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

var _ propagation.TextMapCarrier = headerCarrier{}
