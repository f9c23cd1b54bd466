package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

// SubjectSubmitted is the default subject for submission events.
const SubjectSubmitted = "intake.record.submitted"

// SubmittedEvent is published after a record was stored.
type SubmittedEvent struct {
	SubmissionID string         `json:"submission_id"`
	SessionID    string         `json:"session_id"`
	FormType     types.FormType `json:"form_type"`
	Reference    string         `json:"reference"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	Record       types.Record   `json:"record"`
}

type Publisher interface {
	Publish(subject string, data any) error
}

type NATSClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNATSClient(url, token string, logger *slog.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("intake"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSClient{conn: nc, logger: logger}, nil
}

func (c *NATSClient) Publish(subject string, data any) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Subscribe delivers raw payloads published on subject.
func (c *NATSClient) Subscribe(subject string, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func (c *NATSClient) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}

// PublishingRecorder announces every stored submission. Publishing is
// best effort: a failed publish is logged and the submission still succeeds.
type PublishingRecorder struct {
	next      agent.Recorder
	publisher Publisher
	subject   string
	logger    *slog.Logger
}

func NewPublishingRecorder(next agent.Recorder, publisher Publisher, subject string, logger *slog.Logger) *PublishingRecorder {
	if subject == "" {
		subject = SubjectSubmitted
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishingRecorder{next: next, publisher: publisher, subject: subject, logger: logger}
}

func (p *PublishingRecorder) Record(ctx context.Context, sub *agent.Submission) error {
	if err := p.next.Record(ctx, sub); err != nil {
		return err
	}
	event := SubmittedEvent{
		SubmissionID: sub.ID,
		SessionID:    sub.SessionID,
		FormType:     sub.FormType,
		Reference:    sub.Reference,
		SubmittedAt:  sub.SubmittedAt,
		Record:       sub.Record,
	}
	if err := p.publisher.Publish(p.subject, event); err != nil {
		p.logger.Warn("failed to publish submission event", "subject", p.subject, "reference", sub.Reference, "error", err)
	}
	return nil
}

var _ agent.Recorder = (*PublishingRecorder)(nil)
