// Package events publishes run completion notices to NATS.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// RunEvent is the payload sent when a run finishes.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Repositories []string  `json:"repositories"`
	Failed       []string  `json:"failed,omitempty"`
	Files        int       `json:"files"`
	BrokenLinks  int       `json:"broken_links"`
}

// Publisher sends run events.
type Publisher interface {
	Publish(ctx context.Context, ev RunEvent) error
	Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, RunEvent) error { return nil }
func (Noop) Close()                                  {}

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes events as JSON on one subject.
type NATSPublisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// Connect dials the server at url.
func Connect(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("docweave"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).
			Retryable().
			Build()
	}
	logger.Info("NATS publisher connected", logfields.URL(url), slog.String("subject", subject))
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: c, subject: subject, logger: logger}
}

// Publish sends ev and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal run event").Build()
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish run event").
			WithContext("subject", p.subject).
			Retryable().
			Build()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to flush run event").
			WithContext("subject", p.subject).
			Retryable().
			Build()
	}
	p.logger.Debug("Published run event", logfields.RunID(ev.RunID), slog.String("status", ev.Status))
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() { p.conn.Close() }
