package mailer

type Service interface {
	SendUnlockGranted(toEmail, accountName, callerNumber, passcodeLabel string) error
	SendWrongCode(toEmail, accountName, callerNumber, enteredCode string) error
	SendServiceDisabled(toEmail, accountName, callerNumber string) error
}
