package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/tourney/pkg/logger"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// SESClient is the subset of the SES API used to deliver mail
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESClient
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, baseURL, logger), nil
}

// NewAWSSESEmailServiceWithClient creates an SES email service around an existing client
func NewAWSSESEmailServiceWithClient(client SESClient, fromAddress, baseURL string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// SendPasswordResetEmail sends the password reset link to email
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	resetLink := buildResetLink(s.baseURL, token)
	validFor := time.Until(expiresAt).Round(time.Minute)
	if validFor < time.Minute {
		validFor = time.Minute
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Reset Your Password</h1>
        </div>
        <p>We received a request to reset the password for your tournament admin account.</p>
        <p><a href="%s" class="button">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p>This link can be used once and expires in %s.</p>
        <p>If you did not ask for a password reset you can ignore this email. Your password will not change.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, resetLink, resetLink, validFor)

	textBody := fmt.Sprintf(`Reset Your Password

We received a request to reset the password for your tournament admin account.

Open the link below to choose a new password:
%s

This link can be used once and expires in %s.

If you did not ask for a password reset you can ignore this email. Your password will not change.

This is an automated message. Please do not reply to this email.
`, resetLink, validFor)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Reset your password"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password reset email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogEmailService logs outgoing mail instead of delivering it. Used for local development.
type LogEmailService struct {
	baseURL string
	logger  *slog.Logger
}

// NewLogEmailService creates a new LogEmailService
func NewLogEmailService(baseURL string, logger *slog.Logger) *LogEmailService {
	return &LogEmailService{baseURL: baseURL, logger: logger}
}

// SendPasswordResetEmail logs the reset link host and expiry. The token itself is never logged.
func (s *LogEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("password reset email (not sent)",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("reset_url_base", s.baseURL),
		slog.Int("token_length", len(token)),
		slog.Time("expires_at", expiresAt))
	return nil
}

func buildResetLink(baseURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", baseURL, url.QueryEscape(token))
}
