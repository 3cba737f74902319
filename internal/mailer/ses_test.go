package mailer

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	s := NewSESSenderWithClient(fake)

	err := s.Send(context.Background(), &Message{
		To:           "inbox@abev.dev",
		From:         "contact-form@abev.dev",
		ReplyTo:      "jane@example.com",
		Subject:      "[Portfolio] Jane - from example.org",
		HTML:         "<p>hi</p>",
		SubmissionID: "sub-1",
	})
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	assert.Equal(t, "contact-form@abev.dev", *fake.input.FromEmailAddress)
	assert.Equal(t, []string{"inbox@abev.dev"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, []string{"jane@example.com"}, fake.input.ReplyToAddresses)
	assert.Equal(t, "[Portfolio] Jane - from example.org", *fake.input.Content.Simple.Subject.Data)
	assert.Equal(t, "<p>hi</p>", *fake.input.Content.Simple.Body.Html.Data)

	require.Len(t, fake.input.EmailTags, 1)
	assert.Equal(t, "submission_id", *fake.input.EmailTags[0].Name)
	assert.Equal(t, "sub-1", *fake.input.EmailTags[0].Value)
}

func TestSESSender_SendFailure(t *testing.T) {
	fake := &fakeSES{err: assert.AnError}
	s := NewSESSenderWithClient(fake)

	err := s.Send(context.Background(), &Message{To: "inbox@abev.dev", From: "contact-form@abev.dev"})
	assert.Error(t, err)
}

func TestSESSender_NoReplyToOmitsHeader(t *testing.T) {
	fake := &fakeSES{}
	s := NewSESSenderWithClient(fake)

	err := s.Send(context.Background(), &Message{To: "inbox@abev.dev", From: "contact-form@abev.dev"})
	require.NoError(t, err)
	assert.Empty(t, fake.input.ReplyToAddresses)
}
