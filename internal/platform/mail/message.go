package mail

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
)

// Subjects of the two mail kinds
const (
	SubjectTest   = "Nightwatch Test Mail"
	SubjectQueued = "Nightwatch Queued Test Mail"
)

// ErrNoRecipients is returned for a message without a To address.
var ErrNoRecipients = errors.New("mail message has no recipients")

var bodyTemplate = template.Must(template.New("body").Parse(`<h1>{{.Heading}}</h1><p>{{.Message}}</p>`))

// Message is a rendered HTML mail.
type Message struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Validate checks the message can be delivered.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}

// Recipients returns the To and Cc addresses together.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc))
	out = append(out, m.To...)
	return append(out, m.Cc...)
}

// NewTestMail builds the mail sent synchronously by the harness.
func NewTestMail(to []string, message string) (Message, error) {
	return build(to, SubjectTest, "Nightwatch Test", message)
}

// NewQueuedMail builds the mail delivered through the queue.
func NewQueuedMail(to []string, message string) (Message, error) {
	return build(to, SubjectQueued, "Nightwatch Queued Test", message)
}

// WithCc returns a copy of m that also copies cc.
func (m Message) WithCc(cc ...string) Message {
	m.Cc = append(append([]string(nil), m.Cc...), cc...)
	return m
}

func build(to []string, subject, heading, message string) (Message, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct{ Heading, Message string }{heading, message})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render mail body: %w", err)
	}

	msg := Message{
		To:      append([]string(nil), to...),
		Subject: subject,
		HTML:    buf.String(),
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
