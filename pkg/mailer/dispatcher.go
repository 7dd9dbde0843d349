package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
)

// Sender delivers a single rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Dispatcher accepts an email job for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, job EmailJob) error
}

// Publisher is the queue side of a Dispatcher (see helpers.RabbitPublisher).
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

var ErrEmptyRecipient = errors.New("email job has no recipient")

// Render resolves the subject and bodies of job, rendering its template when set.
func Render(job EmailJob) (subject, text, html string, err error) {
	if strings.TrimSpace(job.To) == "" {
		return "", "", "", ErrEmptyRecipient
	}
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", errors.New("either template or subject with text/html is required")
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	data := job.Data
	if data == nil {
		data = map[string]any{}
	}
	if v, ok := data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		data["Email"] = job.To
	}
	return mailtpl.Render(job.Template, data)
}

// DirectDispatcher renders and sends in-process.
type DirectDispatcher struct {
	Sender Sender
}

func NewDirectDispatcher(s Sender) *DirectDispatcher {
	return &DirectDispatcher{Sender: s}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, job EmailJob) error {
	subject, text, html, err := Render(job)
	if err != nil {
		return fmt.Errorf("render %q: %w", job.Template, err)
	}
	return d.Sender.Send(ctx, job.To, subject, text, html)
}

// QueueDispatcher hands jobs to the email worker through the queue.
type QueueDispatcher struct {
	Pub Publisher
}

func NewQueueDispatcher(p Publisher) *QueueDispatcher {
	return &QueueDispatcher{Pub: p}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job EmailJob) error {
	if strings.TrimSpace(job.To) == "" {
		return ErrEmptyRecipient
	}
	return d.Pub.PublishJSON(ctx, job)
}

// Disabled drops every job; used when MAIL_SEND_ENABLED=false.
type Disabled struct{}

func (Disabled) Dispatch(context.Context, EmailJob) error { return nil }
