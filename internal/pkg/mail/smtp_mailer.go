package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/fieldnotes-app/fieldnotes/internal/pkg/env"
)

// SendMail sends an email via SMTP. Delivery is best effort: callers treat a
// failure as non-fatal and never roll back ledger or webhook state over it.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendVerificationCode delivers a one-time verification code.
func SendVerificationCode(to, code string) error {
	body := fmt.Sprintf("Your FieldNotes verification code is: %s\r\n\r\nIt expires in 15 minutes.", code)
	return SendMail(to, "Your FieldNotes verification code", body)
}
