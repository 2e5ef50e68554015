// Package publish streams veto round records and run summaries to Kafka so
// downstream consumers can follow a run while it is in progress.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/banshee-data/veto.report/internal/monitoring"
	"github.com/banshee-data/veto.report/internal/veto"
)

var logf = monitoring.Component("publish")

// Message type header values.
const (
	TypeRound   = "round"
	TypeSummary = "summary"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes one message per committed round and one summary per run,
// all keyed by run ID so a run stays on a single partition.
type Publisher struct {
	w     MessageWriter
	topic string
}

// New wraps an existing writer.
func New(w MessageWriter, topic string) *Publisher {
	return &Publisher{w: w, topic: topic}
}

// NewKafkaPublisher creates a publisher writing synchronously to topic.
func NewKafkaPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic is empty")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}
	logf("publishing rounds to %s on %v", topic, brokers)
	return New(w, topic), nil
}

// Summary is the payload of the message published when a run finishes.
type Summary struct {
	RunID        string          `json:"run_id"`
	Primary      string          `json:"primary"`
	Outcome      veto.Outcome    `json:"outcome"`
	StopReason   veto.StopReason `json:"stop_reason,omitempty"`
	Rounds       int             `json:"rounds"`
	Winners      []string        `json:"winners"`
	PrimaryTotal int             `json:"primary_total"`
	Remaining    int             `json:"remaining"`
	Efficiency   float64         `json:"efficiency"`
	Deadtime     float64         `json:"deadtime"`
	Skipped      []string        `json:"skipped,omitempty"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// NewSummary condenses a result.
func NewSummary(res *veto.Result) Summary {
	s := Summary{
		RunID:        res.RunID,
		Primary:      res.Primary,
		Outcome:      res.Outcome,
		StopReason:   res.StopReason,
		Rounds:       len(res.Rounds),
		Winners:      res.Winners(),
		PrimaryTotal: res.PrimaryTotal,
		Remaining:    res.Remaining.Len(),
		Efficiency:   res.Efficiency(),
		Deadtime:     res.Deadtime(),
		FinishedAt:   res.FinishedAt,
	}
	for _, sk := range res.Skipped {
		s.Skipped = append(s.Skipped, sk.Channel)
	}
	return s
}

func (p *Publisher) write(ctx context.Context, runID, kind string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	msg := kafka.Message{
		Key:   []byte(runID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(kind)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", kind, p.topic, err)
	}
	return nil
}

// PublishRound publishes a single round record.
func (p *Publisher) PublishRound(ctx context.Context, runID string, rec veto.RoundRecord) error {
	return p.write(ctx, runID, TypeRound, rec)
}

// PublishResult publishes the run summary.
func (p *Publisher) PublishResult(ctx context.Context, res *veto.Result) error {
	if res == nil {
		return fmt.Errorf("publish summary: nil result")
	}
	return p.write(ctx, res.RunID, TypeSummary, NewSummary(res))
}

// RoundHook adapts the publisher to a controller round hook.
func (p *Publisher) RoundHook() veto.RoundHook {
	return p.PublishRound
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
