package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSESClient struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestAWSSESEmailService_SendPasswordResetEmail(t *testing.T) {
	client := &mockSESClient{}
	svc := NewAWSSESEmailServiceWithClient(client, "noreply@tourney.test", "https://admin.tourney.test", newDiscardLogger())

	err := svc.SendPasswordResetEmail(context.Background(), "coach@uni.edu", "abc-_123", time.Now().Add(time.Hour))

	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "noreply@tourney.test", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"coach@uni.edu"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Reset your password", aws.ToString(client.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "https://admin.tourney.test/reset-password?token=abc-_123")
	assert.Contains(t, aws.ToString(client.input.Message.Body.Html.Data), "https://admin.tourney.test/reset-password?token=abc-_123")
}

func TestAWSSESEmailService_SendFailure(t *testing.T) {
	client := &mockSESClient{err: errors.New("throttled")}
	svc := NewAWSSESEmailServiceWithClient(client, "noreply@tourney.test", "https://admin.tourney.test", newDiscardLogger())

	err := svc.SendPasswordResetEmail(context.Background(), "coach@uni.edu", "tok", time.Now().Add(time.Hour))

	assert.ErrorContains(t, err, "failed to send email")
}

func TestLogEmailService_SendPasswordResetEmail(t *testing.T) {
	svc := NewLogEmailService("http://localhost:5173", newDiscardLogger())

	assert.NoError(t, svc.SendPasswordResetEmail(context.Background(), "coach@uni.edu", "tok", time.Now()))
}

func TestBuildResetLink_EscapesToken(t *testing.T) {
	assert.Equal(t, "http://x/reset-password?token=a%2Bb", buildResetLink("http://x", "a+b"))
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
