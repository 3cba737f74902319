// Package mailer delivers contact submissions as HTML email.
package mailer

import "context"

// Message is one outbound email.
type Message struct {
	To           string
	From         string
	ReplyTo      string
	Subject      string
	HTML         string
	SubmissionID string
}

// Sender delivers a message. Implementations report failure through the
// returned error; the pipeline maps it to a server-error outcome.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}
