package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/config"
	"github.com/donkeyideas/kamioi-backend/src/events"
	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/mailgun/mailgun-go/v4"
)

// NotificationService tells a user their receipt round-up was invested.
// Delivery failures are the notifier's problem: the workflow has already
// confirmed and must not be failed retroactively.
type NotificationService interface {
	SendReceiptProcessed(toEmail, username string, ev events.ReceiptProcessed) error
}

func NewNotificationService() NotificationService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Notification service will default to mock.")
		return &MockNotificationService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing notification service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockNotificationService.")
			return &MockNotificationService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunNotificationService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockNotificationService.")
			return &MockNotificationService{}
		}
		return &SMTPNotificationService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockNotificationService.")
		return &MockNotificationService{}
	}
}

func receiptProcessedSubject(ev events.ReceiptProcessed) string {
	if ev.RetailerName != "" {
		return fmt.Sprintf("Your %s round-up was invested", ev.RetailerName)
	}
	return "Your receipt round-up was invested"
}

func receiptProcessedBody(username string, ev events.ReceiptProcessed) string {
	return fmt.Sprintf(`Hi %s,

Your receipt has been processed and %s was invested across %d holding(s).
Transaction reference: %s

Thanks,
The Kamioi Team`, username, ev.TotalRoundUp.StringFixed(2), ev.AllocationCount, ev.TransactionID)
}

type MailgunNotificationService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunNotificationService) SendReceiptProcessed(toEmail, username string, ev events.ReceiptProcessed) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := s.mg.NewMessage(from, receiptProcessedSubject(ev), receiptProcessedBody(username, ev), toEmail)
	message.AddTag("receipt-processed")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send receipt notification via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Receipt notification sent via Mailgun", "to", toEmail, "id", id)
	return nil
}

type SMTPNotificationService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

func (s *SMTPNotificationService) SendReceiptProcessed(toEmail, username string, ev events.ReceiptProcessed) error {
	header := map[string]string{
		"From":         s.SenderEmail,
		"To":           toEmail,
		"Subject":      receiptProcessedSubject(ev),
		"MIME-version": "1.0",
		"Content-Type": "text/plain; charset=\"UTF-8\"",
	}
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + receiptProcessedBody(username, ev)

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{toEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send receipt notification via SMTP", "error", err, "to", toEmail)
		return fmt.Errorf("failed to send receipt notification via SMTP: %w", err)
	}
	logger.L.Info("Receipt notification sent via SMTP", "to", toEmail)
	return nil
}

type MockNotificationService struct{}

func (m *MockNotificationService) SendReceiptProcessed(toEmail, username string, ev events.ReceiptProcessed) error {
	logger.L.Info("MockNotificationService: Would send receipt-processed email.",
		"to", toEmail, "username", username, "transactionID", ev.TransactionID,
		"totalRoundUp", ev.TotalRoundUp.StringFixed(2), "allocations", ev.AllocationCount)
	return nil
}
