package container

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/config"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
)

// NewSender returns the transport selected by MAIL_TRANSPORT.
func NewSender(cfg *config.Config) (mailer.Sender, error) {
	switch cfg.MailTransport {
	case config.MailTransportMailgun:
		mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.SenderMail)
		if cfg.MailgunAPIBase != "" {
			mg.SetAPIBase(cfg.MailgunAPIBase)
		}
		return mg, nil
	case config.MailTransportSMTP:
		return mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SenderMail), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// NewDispatcher returns the dispatcher selected by MAIL_SEND_ENABLED and
// MAIL_DELIVERY. The returned close func releases the queue connection.
func NewDispatcher(cfg *config.Config, logger *logrus.Logger) (mailer.Dispatcher, func(), error) {
	noop := func() {}
	if !cfg.MailSendEnabled {
		logger.Warn("MAIL_SEND_ENABLED=false; notifications are dropped")
		return mailer.Disabled{}, noop, nil
	}

	if cfg.MailDelivery == config.MailDeliveryQueue {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			return nil, noop, fmt.Errorf("rabbitmq: %w", err)
		}
		logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("mail delivery via queue")
		return mailer.NewQueueDispatcher(pub), pub.Close, nil
	}

	sender, err := NewSender(cfg)
	if err != nil {
		return nil, noop, err
	}
	logger.WithField("transport", cfg.MailTransport).Info("mail delivery direct")
	return mailer.NewDirectDispatcher(sender), noop, nil
}
