package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"compliance_flow_app_go/config"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// SendEmail sends an email using the Resend API. In test mode the message is
// only logged.
func SendEmail(cfg *config.Config, email *Email) error {
	if cfg.EmailTestMode {
		log.Info().
			Strs("to", email.To).
			Str("subject", email.Subject).
			Str("text", truncate(email.TextBody, 500)).
			Msg("Email logged (test mode, not sent)")
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}
	if email.HTMLBody == "" && email.TextBody == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	client := resend.NewClient(cfg.ResendAPIKey)
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	log.Info().Str("resend_id", sent.Id).Strs("to", email.To).Msg("Email sent via Resend")
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// ReminderNotice is the template data handed to the notifier for one reminder
type ReminderNotice struct {
	RecordID        string
	ServiceName     string
	ReferenceNumber string
	ContactEmail    string
	ExpiryDate      string
	DaysUntilExpiry int
	Ordinal         int
	ReminderTimes   int
	AppURL          string
}

// Notifier delivers renewal reminders. The reminder engine only decides
// whether to call it.
type Notifier interface {
	NotifyRenewal(ctx context.Context, notice ReminderNotice) error
}

// ResendNotifier delivers reminders by email through Resend
type ResendNotifier struct {
	cfg *config.Config
}

// NewResendNotifier creates a notifier for cfg
func NewResendNotifier(cfg *config.Config) *ResendNotifier {
	return &ResendNotifier{cfg: cfg}
}

func (n *ResendNotifier) NotifyRenewal(ctx context.Context, notice ReminderNotice) error {
	if notice.ContactEmail == "" {
		return fmt.Errorf("record %s has no contact email", notice.RecordID)
	}
	if notice.AppURL == "" {
		notice.AppURL = n.cfg.AppURL
	}
	email, err := BuildRenewalReminderEmail(notice)
	if err != nil {
		return err
	}
	return SendEmail(n.cfg, email)
}

var renewalReminderHTML = htmltemplate.Must(htmltemplate.New("renewal_reminder.html").Parse(`<html><body>
<p>Reminder {{.Ordinal}} of {{.ReminderTimes}}</p>
<p>Your {{.ServiceName}} <strong>{{.ReferenceNumber}}</strong> expires on {{.ExpiryDate}}
({{.DaysUntilExpiry}} day(s) from today).</p>
<p>Please start the renewal so the document does not lapse.</p>
{{if .AppURL}}<p><a href="{{.AppURL}}/expiry-records/{{.RecordID}}">View record</a></p>{{end}}
</body></html>`))

var renewalReminderText = texttemplate.Must(texttemplate.New("renewal_reminder.txt").Parse(
	`Reminder {{.Ordinal}} of {{.ReminderTimes}}

Your {{.ServiceName}} {{.ReferenceNumber}} expires on {{.ExpiryDate}} ({{.DaysUntilExpiry}} day(s) from today).
Please start the renewal so the document does not lapse.
{{if .AppURL}}
{{.AppURL}}/expiry-records/{{.RecordID}}{{end}}
`))

// BuildRenewalReminderEmail renders the reminder email for notice
func BuildRenewalReminderEmail(notice ReminderNotice) (*Email, error) {
	var html, text bytes.Buffer
	if err := renewalReminderHTML.Execute(&html, notice); err != nil {
		return nil, fmt.Errorf("failed to render reminder html: %w", err)
	}
	if err := renewalReminderText.Execute(&text, notice); err != nil {
		return nil, fmt.Errorf("failed to render reminder text: %w", err)
	}
	return &Email{
		To:       []string{notice.ContactEmail},
		Subject:  fmt.Sprintf("%s %s expires on %s", notice.ServiceName, notice.ReferenceNumber, notice.ExpiryDate),
		HTMLBody: html.String(),
		TextBody: strings.TrimSpace(text.String()),
	}, nil
}
