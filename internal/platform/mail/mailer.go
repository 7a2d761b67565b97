package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/task"
)

// Errors returned by NewMailer
var (
	ErrNilTransport = errors.New("transport cannot be nil")
	ErrNilSubmitter = errors.New("task submitter cannot be nil")
)

// Mailer sends mail immediately or through the task runner.
type Mailer struct {
	transport Transport
	submitter task.Submitter
	from      string
	logger    *slog.Logger
}

// NewMailer creates a Mailer that sends as from.
func NewMailer(transport Transport, submitter task.Submitter, from string, logger *slog.Logger) (*Mailer, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if logger == nil {
		return nil, task.ErrNilLogger
	}
	return &Mailer{
		transport: transport,
		submitter: submitter,
		from:      from,
		logger:    logger.With("component", "mailer"),
	}, nil
}

// Send delivers msg now.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := m.transport.Deliver(ctx, m.from, msg); err != nil {
		return err
	}
	m.logger.Debug("mail sent", "subject", msg.Subject, "recipients", len(msg.Recipients()))
	return nil
}

// Queue hands msg to the task runner for delivery.
func (m *Mailer) Queue(ctx context.Context, msg Message) error {
	return m.Later(ctx, msg, 0)
}

// Later hands msg to the task runner for delivery after delay.
func (m *Mailer) Later(ctx context.Context, msg Message, delay time.Duration) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := m.submitter.SubmitAfter(ctx, newQueuedMailTask(msg, m), delay); err != nil {
		return fmt.Errorf("failed to queue mail: %w", err)
	}
	m.logger.Debug("mail queued", "subject", msg.Subject, "delay", delay)
	return nil
}

// queuedMailTask delivers a message on a worker.
type queuedMailTask struct {
	*task.Base
	msg    Message
	mailer *Mailer
}

func newQueuedMailTask(msg Message, mailer *Mailer) *queuedMailTask {
	return &queuedMailTask{
		Base:   task.NewBase(task.TaskTypeQueuedMail),
		msg:    msg,
		mailer: mailer,
	}
}

// Payload returns the message as JSON
func (t *queuedMailTask) Payload() []byte {
	data, _ := json.Marshal(t.msg)
	return data
}

// Execute delivers the message
func (t *queuedMailTask) Execute(ctx context.Context) error {
	return t.mailer.Send(ctx, t.msg)
}
