package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/doorlink/doorlink/internal/mailer"
	"github.com/doorlink/doorlink/pkg/config"
	"github.com/doorlink/doorlink/pkg/events"
	"github.com/doorlink/doorlink/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	var mail mailer.Service
	if cfg.Email.DevMode {
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	err = eventBus.QueueSubscribe(events.NotifySend, "notify-workers", func(msg *events.Message) {
		var n events.NotificationEvent
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			logger.Error("Failed to decode notification event", "error", err)
			return
		}
		deliver(mail, &n)
	})
	if err != nil {
		logger.Error("Failed to subscribe to notifications", "error", err)
		os.Exit(1)
	}

	logger.Info("Notify worker started", "subject", events.NotifySend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down notify worker...")
}

// deliver sends one notification; failures are logged and dropped, a
// notification is never worth retry pressure on the mail provider.
func deliver(mail mailer.Service, n *events.NotificationEvent) {
	accountName, _ := n.Data["account_name"].(string)
	callerNumber, _ := n.Data["caller_number"].(string)

	var err error
	switch n.Type {
	case events.NotifyUnlockGranted:
		passcode, _ := n.Data["passcode"].(string)
		err = mail.SendUnlockGranted(n.Recipient, accountName, callerNumber, passcode)
	case events.NotifyWrongCode:
		enteredCode, _ := n.Data["entered_code"].(string)
		err = mail.SendWrongCode(n.Recipient, accountName, callerNumber, enteredCode)
	case events.NotifyServiceDisabled:
		err = mail.SendServiceDisabled(n.Recipient, accountName, callerNumber)
	default:
		logger.Warn("Unknown notification type", "type", n.Type)
		return
	}

	if err != nil {
		logger.Error("Failed to deliver notification", "type", n.Type, "recipient", n.Recipient, "error", err)
	}
}
