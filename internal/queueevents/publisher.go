// Package queueevents publishes a best-effort "report digested" notification
// after a successful digest commit. It is an additive downstream fan-out:
// the durable queue stays the database (spec.md §4.6), this is purely for
// external subscribers that want a push signal.
package queueevents

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ethicnology/crash-cache/internal/digest"
)

// Config configures the Kafka writer backing a Publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration // defaults to 5s
}

// Publisher wraps a kafka-go Writer, producing one message per digested
// report. A nil Publisher (returned when no brokers or no topic are
// configured) makes Publish a no-op.
type Publisher struct {
	writer       *kafka.Writer
	writeTimeout time.Duration
}

// New constructs a Publisher, or returns nil if no brokers or no topic are
// configured —
// the feature is optional (§ DOMAIN STACK).
func New(cfg Config) *Publisher {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			Async:        true, // fire-and-forget: never blocks the digest path
		},
		writeTimeout: timeout,
	}
}

// wireReport is the JSON shape of a digest-completion notification.
type wireReport struct {
	ProjectID   int32  `json:"project_id"`
	EventID     string `json:"event_id"`
	ArchiveHash string `json:"archive_hash"`
	IssueID     *int32 `json:"issue_id,omitempty"`
}

// Publish best-effort produces a digest.DigestedReport notification keyed
// by archive hash. Failures are logged, never surfaced — a lost
// notification must never fail or retry the digest transaction that
// already committed.
func (p *Publisher) Publish(ctx context.Context, report digest.DigestedReport) {
	if p == nil {
		return
	}

	value, err := json.Marshal(wireReport{
		ProjectID:   report.ProjectID,
		EventID:     report.EventID,
		ArchiveHash: report.ArchiveHash,
		IssueID:     report.IssueID,
	})
	if err != nil {
		log.Printf("[queueevents] marshal error: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(report.ArchiveHash), Value: value, Time: time.Now().UTC()}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		log.Printf("[queueevents] publish error: %v", err)
	}
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
