package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// ReservationEmailData holds data for reservation notifications.
type ReservationEmailData struct {
	Email         string
	RequesterName string
	RoomName      string
	ReservationID string
	// Start and End are preformatted in the deployment's local offset.
	Start string
	End   string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendReservationConfirmed(ctx context.Context, data *ReservationEmailData) error
	SendReservationCancelled(ctx context.Context, data *ReservationEmailData) error
}
