package services

import (
	"context"
	"fmt"
	"log/slog"

	"roombooking/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: orDefault(logger)}
}

// SendReservationConfirmed sends the "reservation_confirmed" template.
func (s *emailService) SendReservationConfirmed(ctx context.Context, data *domain.ReservationEmailData) error {
	return s.send(ctx, "reservation_confirmed", data)
}

// SendReservationCancelled sends the "reservation_cancelled" template.
func (s *emailService) SendReservationCancelled(ctx context.Context, data *domain.ReservationEmailData) error {
	return s.send(ctx, "reservation_cancelled", data)
}

func (s *emailService) send(ctx context.Context, template string, data *domain.ReservationEmailData) error {
	if data == nil {
		return fmt.Errorf("%s email data is nil", template)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", data.Email, "reservation_id", data.ReservationID)
	return nil
}
