package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendUnlockGranted(toEmail, accountName, callerNumber, passcodeLabel string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := fmt.Sprintf("Door unlocked at %s", accountName)
	detail := "The caller was let in without a code."
	if passcodeLabel != "" {
		detail = fmt.Sprintf("The caller verified with <strong>%s</strong>.", passcodeLabel)
	}
	html := fmt.Sprintf(`
		<h2>Door unlocked</h2>
		<p>%s just let in a caller from <strong>%s</strong>.</p>
		<p>%s</p>
	`, accountName, callerNumber, detail)

	text := fmt.Sprintf("Door unlocked at %s. Caller: %s.", accountName, callerNumber)

	return m.sendEmail(toEmail, subject, text, html)
}

func (m *MailerSendClient) SendWrongCode(toEmail, accountName, callerNumber, enteredCode string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := fmt.Sprintf("Wrong code entered at %s", accountName)
	html := fmt.Sprintf(`
		<h2>Access denied</h2>
		<p>A caller from <strong>%s</strong> entered a wrong code at %s.</p>
		<p>Code entered: <strong>%s</strong></p>
	`, callerNumber, accountName, enteredCode)

	text := fmt.Sprintf("A caller from %s entered a wrong code at %s. Code entered: %s.", callerNumber, accountName, enteredCode)

	return m.sendEmail(toEmail, subject, text, html)
}

func (m *MailerSendClient) SendServiceDisabled(toEmail, accountName, callerNumber string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := fmt.Sprintf("Missed intercom call at %s", accountName)
	html := fmt.Sprintf(`
		<h2>Call received while service was disabled</h2>
		<p>A caller from <strong>%s</strong> reached your intercom at %s, but your
		subscription is not active so the door was not unlocked.</p>
		<p>Reactivate your subscription to restore door access.</p>
	`, callerNumber, accountName)

	text := fmt.Sprintf("A caller from %s reached your intercom at %s while service was disabled.", callerNumber, accountName)

	return m.sendEmail(toEmail, subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
