// Package notify publishes snapshot run outcomes to NATS.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
)

const publishTimeout = 5 * time.Second

// Outcome is the JSON payload published for every finished run.
type Outcome struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"` // succeeded | failed
	Backend     string    `json:"backend,omitempty"`
	Config      string    `json:"config_fingerprint,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Posts       int       `json:"posts"`
	Tags        int       `json:"tags"`
	Pages       int       `json:"pages"`
	Assets      int       `json:"assets"`
	BrokenLinks int       `json:"broken_links,omitempty"`
	Code        int       `json:"code,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Notifier receives run outcomes.
type Notifier interface {
	Notify(ctx context.Context, o Outcome) error
	Close() error
}

// Nop discards outcomes.
type Nop struct{}

func (Nop) Notify(context.Context, Outcome) error { return nil }
func (Nop) Close() error                          { return nil }

// conn is the subset of *nats.Conn used by Publisher.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// Publisher publishes outcomes on a NATS subject.
type Publisher struct {
	conn    conn
	subject string
}

// Connect dials NATS using the notify configuration. An empty URL yields Nop.
func Connect(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.NATSURL == "" {
		return Nop{}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("sitesnap"),
		nats.Timeout(publishTimeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.NATSURL).
			Build()
	}
	slog.Info("NATS notifier connected", logfields.URL(cfg.NATSURL), slog.String("subject", subjectOrDefault(cfg.Subject)))
	return newPublisher(nc, cfg.Subject), nil
}

func newPublisher(c conn, subject string) *Publisher {
	return &Publisher{conn: c, subject: subjectOrDefault(subject)}
}

func subjectOrDefault(s string) string {
	if s == "" {
		return config.DefaultNotifySubject
	}
	return s
}

// Notify publishes o and waits for the server to acknowledge the flush.
func (p *Publisher) Notify(ctx context.Context, o Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return errors.InternalError("failed to marshal run outcome").WithCause(err).Build()
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.NetworkError("failed to publish run outcome").
			WithCause(err).
			WithContext("subject", p.subject).
			Build()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.NetworkError("failed to flush run outcome").
			WithCause(err).
			WithContext("subject", p.subject).
			Build()
	}
	slog.Debug("Published run outcome", logfields.RunID(o.RunID), slog.String("subject", p.subject), slog.String("status", o.Status))
	return nil
}

// Subject returns the subject outcomes are published on.
func (p *Publisher) Subject() string { return p.subject }

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
