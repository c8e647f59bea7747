package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/secureauth/sentinel/internal/models"
)

// Notifier delivers security alerts to an out-of-band channel.
type Notifier interface {
	Send(ctx context.Context, alert *models.SecurityAlert) error
}

// AWSSESNotifier emails alerts to the security mailbox using AWS SES.
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES alert notifier
func NewAWSSESNotifier(region, fromAddress, toAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// Send emails a single alert. Delivery failures are returned to the caller;
// the alert itself is already persisted by the time this runs.
func (n *AWSSESNotifier) Send(ctx context.Context, alert *models.SecurityAlert) error {
	subject := fmt.Sprintf("[%s] Security alert: %s", strings.ToUpper(string(alert.Severity)), alert.AlertType)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .severity { display: inline-block; background-color: #dc3545; color: white; padding: 4px 12px; border-radius: 4px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Security Alert</h1>
            <span class="severity">%s</span>
        </div>
        <div class="content">
            <p><strong>Type:</strong> %s</p>
            <p><strong>Account:</strong> %s</p>
            <p><strong>Detected at:</strong> %s</p>
            <p>%s</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, alert.Severity, alert.AlertType, alert.AccountID, alert.CreatedAt.Format("2006-01-02 15:04:05 UTC"), alert.Message)

	textBody := fmt.Sprintf(`Security Alert [%s]

Type: %s
Account: %s
Detected at: %s

%s

This is an automated message. Please do not reply to this email.
`, strings.ToUpper(string(alert.Severity)), alert.AlertType, alert.AccountID, alert.CreatedAt.Format("2006-01-02 15:04:05 UTC"), alert.Message)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
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

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send alert email via SES",
			slog.String("alert_type", alert.AlertType),
			slog.String("account_id", alert.AccountID.String()),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("alert email sent",
		slog.String("alert_type", alert.AlertType),
		slog.String("message_id", *result.MessageId))

	return nil
}

// NoopNotifier discards alerts. Used when email notification is disabled.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, *models.SecurityAlert) error { return nil }
