package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hakraj/exboard/internal/config"
	"github.com/rs/zerolog"
)

// Mailer sends transactional mail over SMTP. When no SMTP host is
// configured it is disabled and callers fall back to logging the content,
// which keeps local development working without a mail account.
type Mailer struct {
	host     string
	port     string
	from     string
	password string
	log      zerolog.Logger
}

// New builds a Mailer from config.
func New(cfg *config.Config, log zerolog.Logger) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		password: cfg.SMTPPassword,
		log:      log.With().Str("component", "mailer").Logger(),
	}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool {
	return m.host != ""
}

// Send delivers one HTML mail.
func (m *Mailer) Send(to []string, subject, htmlBody string) error {
	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: ExBoard <%s>\r\n", m.from)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += htmlBody

	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, to, []byte(msg)); err != nil {
		m.log.Error().Err(err).Str("subject", subject).Msg("Mail delivery failed")
		return err
	}
	return nil
}

// SendPasswordReset mails the reset link for the forgot-password flow.
func (m *Mailer) SendPasswordReset(email, name, resetURL string) error {
	subject := "Reset your ExBoard password"
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>We received a request to reset your ExBoard password.</p>
		<p><a href="%s">Set a new password</a></p>
		<p>The link expires in 30 minutes. If you did not request this,
		you can ignore this mail and your password stays unchanged.</p>
	`, name, resetURL)
	return m.Send([]string{email}, subject, wrap(subject, body))
}

// wrap puts the body into the shared HTML shell.
func wrap(title, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #1A1A2E; padding: 24px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 22px; }
			.content { padding: 32px 24px; color: #1A1A2E; line-height: 1.6; }
			.footer { background-color: #F6F6F6; padding: 16px; text-align: center; font-size: 12px; color: #666666; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>EXBOARD</h1></div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">You received this mail because of activity on your ExBoard account.</div>
		</div>
	</body>
	</html>
	`, title, bodyContent)
}
