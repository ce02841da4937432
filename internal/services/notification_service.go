// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	texttemplate "text/template"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/config"
	"github.com/nyasabox/nyasabox-api/internal/models"
)

const (
	TemplateWelcome              = "welcome"
	TemplatePasswordReset        = "password_reset"
	TemplateDistributionPayment  = "distribution_payment"
	TemplateDistributionRejected = "distribution_rejected"
	TemplateDistributionStatus   = "distribution_status"
	TemplateArtistApproved       = "artist_approved"
	TemplateArtistRejected       = "artist_rejected"
)

// Notifier sends a templated message. Callers treat it as fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, templateID, to string, data map[string]interface{}) error
}

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
		send:   smtp.SendMail,
	}
}

// Send renders templateID with data and mails it to the recipient.
func (s *NotificationService) Send(ctx context.Context, templateID, to string, data map[string]interface{}) error {
	if to == "" {
		return fmt.Errorf("notification %s has no recipient", templateID)
	}

	tmpl, ok := emailTemplates[templateID]
	if !ok {
		return fmt.Errorf("unknown email template %q", templateID)
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	data["PlatformName"] = s.config.Email.FromName
	data["FrontendURL"] = s.config.Frontend.BaseURL

	subject, err := renderSubject(tmpl.Subject, data)
	if err != nil {
		return fmt.Errorf("failed to render email subject: %w", err)
	}
	body, err := renderBody(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(to, subject, body)
}

// NotifyAdmins records an in-app notification for staff.
func (s *NotificationService) NotifyAdmins(notificationType, title, message, resourceType string, resource *models.BaseModel) error {
	notification := &models.AdminNotification{
		Type:                notificationType,
		Title:               title,
		Message:             message,
		Priority:            "medium",
		RelatedResourceType: resourceType,
	}
	if resource != nil {
		id := resource.ID
		notification.RelatedResourceID = &id
	}

	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("SMTP not configured, email not sent")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := s.config.Email.FromEmail
	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.config.Email.FromName, from, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	if err := s.send(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func renderSubject(subject string, data interface{}) (string, error) {
	tmpl, err := texttemplate.New("subject").Parse(subject)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderBody(body string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var emailTemplates = map[string]EmailTemplate{
	TemplateWelcome: {
		Subject: "Welcome to {{.PlatformName}}",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.Username}}!</h2>
	<p>Your account is ready. Upload your music and reach listeners across Malawi and beyond.</p>
	<a href="{{.FrontendURL}}">Open {{.PlatformName}}</a>
</body>
</html>`,
	},
	TemplatePasswordReset: {
		Subject: "Reset your {{.PlatformName}} password",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Username}},</p>
	<p>Use the link below to choose a new password. It expires in one hour.</p>
	<a href="{{.ResetURL}}">Reset password</a>
	<p>If you did not ask for this, you can ignore this email.</p>
</body>
</html>`,
	},
	TemplateDistributionPayment: {
		Subject: "Distribution Payment {{if .Success}}Successful{{else}}Failed{{end}}: Request #{{.RequestID}}",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.ArtistName}},</p>
	{{if .Success}}
	<p>We received your payment of {{.Currency}} {{.Amount}} for distribution request #{{.RequestID}}.
	Our team will now send your tracks to the selected platforms.</p>
	{{else}}
	<p>Your payment of {{.Currency}} {{.Amount}} for distribution request #{{.RequestID}} did not go through ({{.Status}}).</p>
	{{if .Message}}<p>Gateway message: {{.Message}}</p>{{end}}
	<p>You can try again from your distribution page.</p>
	{{end}}
	<p>Reference: {{.ChargeID}}</p>
</body>
</html>`,
	},
	TemplateDistributionRejected: {
		Subject: "Distribution Request Rejected: Request #{{.RequestID}}",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.ArtistName}},</p>
	<p>Your distribution request #{{.RequestID}} was rejected by our team.</p>
	{{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}
</body>
</html>`,
	},
	TemplateDistributionStatus: {
		Subject: "Distribution Request #{{.RequestID}} is now {{.Status}}",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.ArtistName}},</p>
	<p>Your distribution request #{{.RequestID}} is now <strong>{{.Status}}</strong>.</p>
</body>
</html>`,
	},
	TemplateArtistApproved: {
		Subject: "Your artist account has been approved",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Username}},</p>
	<p>Your artist application was approved. You can now submit tracks for distribution.</p>
</body>
</html>`,
	},
	TemplateArtistRejected: {
		Subject: "Your artist application",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Username}},</p>
	<p>We could not approve your artist application at this time.</p>
	{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
</body>
</html>`,
	},
}
