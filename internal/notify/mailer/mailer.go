// Package mailer delivers reservation lifecycle notifications to
// guests over SMTP. An unconfigured mailer runs in mock mode and only
// logs what it would have sent, which keeps local development working
// without a mail relay.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/harborview/booking/pkg/booking"
)

// Config carries the SMTP relay settings. Empty Host leaves the mailer
// in mock mode.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
}

// Mailer implements the notification sink contract over SMTP.
type Mailer struct {
	config Config
	logger *zap.Logger
	sendFn func(addr string, auth smtp.Auth, from string, to []string, message []byte) error
}

// New returns a Mailer. A nil logger falls back to a no-op logger.
func New(config Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{config: config, logger: logger, sendFn: smtp.SendMail}
}

// Notify renders and sends one lifecycle email.
func (mailer *Mailer) Notify(ctx context.Context, notification booking.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body := renderMessage(notification)
	if !mailer.configured() {
		mailer.logger.Info("mock email",
			zap.String("to", notification.Email),
			zap.String("kind", string(notification.Kind)),
			zap.String("subject", subject))
		return nil
	}
	message := buildMessage(mailer.from(), notification.Email, subject, body)
	auth := smtp.PlainAuth("", mailer.config.Username, mailer.config.Password, mailer.config.Host)
	addr := mailer.config.Host + ":" + mailer.config.Port
	if err := mailer.sendFn(addr, auth, mailer.config.Username, []string{notification.Email}, message); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	mailer.logger.Info("notification email sent",
		zap.String("to", notification.Email),
		zap.String("kind", string(notification.Kind)))
	return nil
}

func (mailer *Mailer) configured() bool {
	return mailer.config.Host != "" && mailer.config.Port != "" &&
		mailer.config.Username != "" && mailer.config.Password != ""
}

func (mailer *Mailer) from() string {
	if mailer.config.FromName == "" {
		return mailer.config.Username
	}
	return fmt.Sprintf("%s <%s>", mailer.config.FromName, mailer.config.Username)
}

func renderMessage(notification booking.Notification) (string, string) {
	name := sanitizeHeader(notification.GuestName)
	switch notification.Kind {
	case booking.NotificationReservationCreated:
		return "Your reservation is confirmed pending arrival",
			fmt.Sprintf("Hi %s,\n\nYour reservation for room %d from %s to %s is booked. "+
				"A hold has been placed on your card and will be charged at check-in.\n",
				name, notification.RoomNumber, notification.CheckIn, notification.CheckOut)
	case booking.NotificationCheckedIn:
		return "Welcome, your stay has started",
			fmt.Sprintf("Hi %s,\n\nYou are checked in to room %d. Your card has been charged.\n",
				name, notification.RoomNumber)
	case booking.NotificationCancelled:
		return "Your reservation was cancelled",
			fmt.Sprintf("Hi %s,\n\nYour reservation for room %d from %s to %s was cancelled "+
				"and the hold on your card was released.\n",
				name, notification.RoomNumber, notification.CheckIn, notification.CheckOut)
	default:
		return "Reservation update",
			fmt.Sprintf("Hi %s,\n\nThere is an update on your reservation %s.\n",
				name, notification.ReservationID)
	}
}

func buildMessage(from string, to string, subject string, body string) []byte {
	var builder strings.Builder
	builder.WriteString("From: " + from + "\r\n")
	builder.WriteString("To: " + to + "\r\n")
	builder.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	return []byte(builder.String())
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}
