package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"pathpal-api/internal/config"
)

type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendOTPEmail delivers the plaintext reset code. The code exists only in
// this message and in the caller's stack; it is never logged.
func (es *EmailService) SendOTPEmail(to, code string) error {
	subject := "Your Password Reset OTP"
	text := fmt.Sprintf("Your password reset OTP is: %s. It will expire in 10 minutes.", code)
	html := fmt.Sprintf(`<p>Your password reset OTP is: <strong>%s</strong>. It will expire in 10 minutes.</p>`, code)

	auth := smtp.PlainAuth("", es.cfg.SMTPUsername, es.cfg.SMTPPassword, es.cfg.SMTPHost)

	boundary := "pathpal-alt"
	headers := map[string]string{
		"From":         es.cfg.EmailFrom,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": fmt.Sprintf("multipart/alternative; boundary=%q", boundary),
	}

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(fmt.Sprintf("--%s\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, text))
	message.WriteString(fmt.Sprintf("--%s\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, html))
	message.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return smtp.SendMail(
		es.cfg.SMTPHost+":"+es.cfg.SMTPPort,
		auth,
		es.cfg.EmailFrom,
		[]string{to},
		[]byte(message.String()),
	)
}
