package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"net/smtp"

	"github.com/quantumchem/quantumchem-backend/internal/config"
)

const verificationEmailBody = `<p>Hi {{.Name}},</p>
<p>Welcome to QuantumChem. Confirm your email address to activate your account:</p>
<p><a href="{{.VerifyURL}}">Verify my email</a></p>
<p>The link expires {{.ExpiresAt.Format "Jan 2 at 15:04 MST"}}. If you did not sign up, you can ignore this message.</p>`

const tempPasswordEmailBody = `<p>Hi {{.Name}},</p>
{{if .Reset}}<p>Here is your new temporary password for QuantumChem:</p>
{{else}}<p>Your email is verified. Sign in with this temporary password:</p>
{{end}}<p><strong>{{.Password}}</strong></p>
<p>It is valid until {{.ExpiresAt.Format "Jan 2 at 15:04 MST"}}. Request a reset to get a fresh one after that.</p>`

const welcomeEmailBody = `<p>Hi {{.Name}},</p>
<p>Welcome to QuantumChem! Your account is ready. Explore the compound database, interactive orbital visualizations and the study guides from your profile page.</p>`

// SMTPNotifier sends account email over an authenticated SMTP relay
// (Brevo in production). One connection per message; volumes here are a
// handful of mails per signup, not a campaign.
type SMTPNotifier struct {
	addr string
	auth smtp.Auth
	// sender is the display form, envelopeFrom the bare address used in
	// MAIL FROM.
	sender       string
	envelopeFrom string

	verifyTmpl  *template.Template
	tempPwTmpl  *template.Template
	welcomeTmpl *template.Template
}

func NewSMTPNotifier(cfg *config.Config) *SMTPNotifier {
	envelopeFrom := cfg.MailSender
	if parsed, err := mail.ParseAddress(cfg.MailSender); err == nil {
		envelopeFrom = parsed.Address
	}
	return &SMTPNotifier{
		addr:         cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth:         smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost),
		sender:       cfg.MailSender,
		envelopeFrom: envelopeFrom,
		verifyTmpl:   template.Must(template.New("verify").Parse(verificationEmailBody)),
		tempPwTmpl:   template.Must(template.New("temp_password").Parse(tempPasswordEmailBody)),
		welcomeTmpl:  template.Must(template.New("welcome").Parse(welcomeEmailBody)),
	}
}

func (n *SMTPNotifier) SendVerification(ctx context.Context, v VerificationNotification) error {
	return n.send(ctx, v.Email, "Verify your QuantumChem email", n.verifyTmpl, v)
}

func (n *SMTPNotifier) SendTempPassword(ctx context.Context, v TempPasswordNotification) error {
	subject := "Your QuantumChem temporary password"
	if v.Reset {
		subject = "Your QuantumChem password reset"
	}
	return n.send(ctx, v.Email, subject, n.tempPwTmpl, v)
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, v WelcomeNotification) error {
	return n.send(ctx, v.Email, "Welcome to QuantumChem", n.welcomeTmpl, v)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject string, tmpl *template.Template, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	if err := smtp.SendMail(n.addr, n.auth, n.envelopeFrom, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send %s email: %w", tmpl.Name(), err)
	}
	return nil
}
