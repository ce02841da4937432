package services

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyasabox/nyasabox-api/internal/config"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newMailer(host string) (*NotificationService, *[]sentMail) {
	cfg := &config.Config{
		Email:    config.EmailConfig{SMTPHost: host, SMTPPort: "587", FromEmail: "noreply@nyasabox.com", FromName: "NyasaBox"},
		Frontend: config.FrontendConfig{BaseURL: "https://nyasabox.com"},
	}
	svc := NewNotificationService(nil, cfg)
	var sent []sentMail
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return svc, &sent
}

func TestSendDistributionPaymentSuccess(t *testing.T) {
	svc, sent := newMailer("smtp.example.com")

	err := svc.Send(context.Background(), TemplateDistributionPayment, "artist@example.com", map[string]interface{}{
		"Success":    true,
		"RequestID":  "42",
		"ArtistName": "Chikondi",
		"Amount":     "3333.34",
		"Currency":   "MWK",
		"ChargeID":   "nyasa-abc",
	})

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, []string{"artist@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Distribution Payment Successful: Request #42")
	assert.Contains(t, mail.msg, "MWK 3333.34")
}

func TestSendDistributionPaymentFailure(t *testing.T) {
	svc, sent := newMailer("smtp.example.com")

	err := svc.Send(context.Background(), TemplateDistributionPayment, "artist@example.com", map[string]interface{}{
		"Success":   false,
		"RequestID": "42",
		"Status":    "cancelled",
	})

	require.NoError(t, err)
	assert.Contains(t, (*sent)[0].msg, "Subject: Distribution Payment Failed: Request #42")
}

func TestSendWithoutSMTPOnlyLogs(t *testing.T) {
	svc, sent := newMailer("")

	err := svc.Send(context.Background(), TemplateWelcome, "user@example.com", map[string]interface{}{"Username": "kondwani"})

	assert.NoError(t, err)
	assert.Empty(t, *sent)
}

func TestSendRejectsUnknownTemplateAndMissingRecipient(t *testing.T) {
	svc, _ := newMailer("smtp.example.com")

	assert.Error(t, svc.Send(context.Background(), "nope", "a@b.c", nil))
	assert.Error(t, svc.Send(context.Background(), TemplateWelcome, "", nil))
}
