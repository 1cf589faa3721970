// Package mail sends transactional email such as login and verification codes.
package mail

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrMissingRecipient is returned when a message has no recipient.
var ErrMissingRecipient = errors.New("message recipient is required")

// Message is an outbound email. Body may carry one-time codes and is never logged.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records outbound mail in the log instead of delivering it, for development and
// single-process deployments without a mail relay.
type LogMailer struct{}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send logs the recipient and subject of msg.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrMissingRecipient
	}

	log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("Mail queued")

	return nil
}

// Outbox keeps sent messages in memory so tests can read them back.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Send appends msg to the outbox.
func (o *Outbox) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrMissingRecipient
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of all sent messages.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]Message(nil), o.messages...)
}

// Last returns the most recently sent message.
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.messages) == 0 {
		return Message{}, false
	}
	return o.messages[len(o.messages)-1], true
}
