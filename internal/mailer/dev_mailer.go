package mailer

import (
	"github.com/doorlink/doorlink/pkg/logger"
)

type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendUnlockGranted(toEmail, accountName, callerNumber, passcodeLabel string) error {
	logger.Info("📧 [DEV MAIL] Unlock Granted",
		"to", toEmail,
		"account", accountName,
		"caller", callerNumber,
		"passcode", passcodeLabel,
	)
	return nil
}

func (d *DevMailer) SendWrongCode(toEmail, accountName, callerNumber, enteredCode string) error {
	logger.Info("📧 [DEV MAIL] Wrong Code",
		"to", toEmail,
		"account", accountName,
		"caller", callerNumber,
		"entered_code", enteredCode,
	)
	return nil
}

func (d *DevMailer) SendServiceDisabled(toEmail, accountName, callerNumber string) error {
	logger.Info("📧 [DEV MAIL] Service Disabled Call",
		"to", toEmail,
		"account", accountName,
		"caller", callerNumber,
	)
	return nil
}
