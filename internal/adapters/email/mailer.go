package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"roombooking/internal/domain"
)

const (
	sendTimeout = 10 * time.Second
	charset     = "UTF-8"
)

// SESConfig carries the AWS credentials for the SES provider. Empty keys
// are passed through; SES then rejects the send, which the caller logs.
type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

// MailerConfig selects and configures the outbound mail provider.
type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
}

// NewMailer returns an SES mailer for provider "ses". Any other provider
// falls back to a mailer that only logs.
func NewMailer(cfg MailerConfig, logger *slog.Logger) (domain.Mailer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "ses":
		m, err := newSESMailer(cfg, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "noop", "":
	default:
		logger.Warn("unknown mail provider, notifications will only be logged", "provider", cfg.Provider)
	}
	return &noopMailer{logger: logger}, nil
}

type sesMailer struct {
	client   *ses.Client
	from     string
	fromName string
	logger   *slog.Logger
}

func newSESMailer(cfg MailerConfig, logger *slog.Logger) (*sesMailer, error) {
	if cfg.FromAddress == "" {
		return nil, errors.New("ses mailer requires a from address")
	}
	if cfg.SES.InsecureSkipVerify {
		logger.Warn("SES TLS verification disabled")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SES.InsecureSkipVerify, //nolint:gosec // opt-in for local SES emulators
	}
	client := ses.NewFromConfig(aws.Config{
		Region:      cfg.SES.Region,
		HTTPClient:  &http.Client{Transport: transport},
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.SES.AccessKeyID, cfg.SES.SecretAccessKey, "")),
	})
	return &sesMailer{client: client, from: cfg.FromAddress, fromName: cfg.FromName, logger: logger}, nil
}

func (m *sesMailer) Send(to, subject, html, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	out, err := m.client.SendEmail(ctx, buildSendEmailInput(m.source(), to, subject, html, text))
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	m.logger.Info("notification sent", "provider", "ses", "message_id", aws.ToString(out.MessageId))
	return nil
}

func (m *sesMailer) source() string {
	if m.fromName == "" {
		return m.from
	}
	return fmt.Sprintf("%s <%s>", m.fromName, m.from)
}

// buildSendEmailInput omits empty bodies; SES rejects a body part with no data.
func buildSendEmailInput(source, to, subject, html, text string) *ses.SendEmailInput {
	body := &types.Body{Html: content(html), Text: content(text)}
	return &ses.SendEmailInput{
		Source:      aws.String(source),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message:     &types.Message{Subject: content(subject), Body: body},
	}
}

func content(data string) *types.Content {
	if data == "" {
		return nil
	}
	return &types.Content{Data: aws.String(data), Charset: aws.String(charset)}
}

type noopMailer struct {
	logger *slog.Logger
}

func (m *noopMailer) Send(to, subject, _, _ string) error {
	m.logger.Debug("notification skipped, no mail provider", "to", to, "subject", subject)
	return nil
}
