package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-auth-service/config"
	"github.com/oksasatya/go-auth-service/internal/container"
	"github.com/oksasatya/go-auth-service/internal/worker"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)
	if !cfg.MailSendEnabled {
		logger.Warn("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}
	if err := cfg.ValidateWorker(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	sender, err := container.NewSender(cfg)
	if err != nil {
		logger.WithError(err).Fatal("mail transport")
	}

	q, err := helpers.DialQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq")
	}
	defer q.Close()

	msgs, err := q.Consume(16)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	helpers.LogInfo(logger, "email worker listening", map[string]any{
		"queue":     cfg.RabbitMQEmailQueue,
		"transport": cfg.MailTransport,
	})
	worker.NewEmailWorker(sender, logger, cfg.MailTimeout).Run(ctx, msgs)
	logger.Info("email worker stopped")
}
