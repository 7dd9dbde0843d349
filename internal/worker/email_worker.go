// Package worker consumes queued email jobs and hands them to a mail sender.
package worker

import (
	"context"
	"encoding/json"
	"expvar"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/pkg/mailer"
)

// Outcome is what happens to a delivery after handling.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

var counters = expvar.NewMap("email_worker")

type EmailWorker struct {
	Sender  mailer.Sender
	Logger  *logrus.Logger
	Timeout time.Duration

	// Retries is the number of in-process resends after the first attempt,
	// spaced by an exponential backoff starting at RetryBase.
	Retries   uint64
	RetryBase time.Duration
}

func NewEmailWorker(sender mailer.Sender, logger *logrus.Logger, timeout time.Duration) *EmailWorker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmailWorker{
		Sender:    sender,
		Logger:    logger,
		Timeout:   timeout,
		Retries:   2,
		RetryBase: 500 * time.Millisecond,
	}
}

// Handle renders and sends one job. Malformed jobs are dropped. A send that
// still fails after the in-process retries goes back to the queue once.
func (w *EmailWorker) Handle(ctx context.Context, body []byte, redelivered bool) Outcome {
	var job mailer.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.Logger.WithError(err).Warn("bad email job")
		return Drop
	}
	log := w.Logger.WithFields(logrus.Fields{"template": job.Template, "to": job.To})

	subject, text, html, err := mailer.Render(job)
	if err != nil {
		log.WithError(err).Warn("render email job failed")
		return Drop
	}

	c, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()
	err = retry.Do(c, w.backoff(), func(ctx context.Context) error {
		if err := w.Sender.Send(ctx, job.To, subject, text, html); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if redelivered {
			log.WithError(err).Error("send failed after retry, dropping")
			return Drop
		}
		log.WithError(err).Warn("send failed, requeueing")
		return Requeue
	}
	log.Debug("email sent")
	return Ack
}

func (w *EmailWorker) backoff() retry.Backoff {
	base := w.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return retry.WithMaxRetries(w.Retries, retry.NewExponential(base))
}

// Run handles deliveries until the channel closes or ctx is done.
func (w *EmailWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			out := w.Handle(ctx, d.Body, d.Redelivered)
			counters.Add(out.String(), 1)

			var err error
			switch out {
			case Ack:
				err = d.Ack(false)
			case Requeue:
				err = d.Nack(false, true)
			default:
				err = d.Nack(false, false)
			}
			if err != nil {
				w.Logger.WithError(err).WithField("outcome", out.String()).Error("acknowledge delivery failed")
			}
		}
	}
}
