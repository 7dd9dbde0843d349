package mailer

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"
)

// implicitTLSPort is the submissions port; every other port upgrades with STARTTLS.
const implicitTLSPort = 465

// SMTP sends mail through an authenticated SMTP relay.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	Timeout  time.Duration

	send func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTP(host string, port int, username, password, sender string) *SMTP {
	s := &SMTP{Host: host, Port: port, Username: username, Password: password, Sender: sender, Timeout: 10 * time.Second}
	s.send = s.dialAndSend
	return s
}

func (s *SMTP) Send(ctx context.Context, to, subject, text, html string) error {
	msg, err := s.message(to, subject, text, html)
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		return oops.In("smtp").With("host", s.Host, "port", s.Port).Wrapf(err, "send mail")
	}
	return nil
}

// message builds a text/plain body with an optional text/html alternative.
func (s *SMTP) message(to, subject, text, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.Sender); err != nil {
		return nil, oops.In("smtp").With("sender", s.Sender).Wrapf(err, "invalid sender")
	}
	if err := msg.To(to); err != nil {
		return nil, oops.In("smtp").Wrapf(err, "invalid recipient")
	}
	msg.Subject(subject)
	switch {
	case text != "":
		msg.SetBodyString(mail.TypeTextPlain, text)
		if html != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, html)
		}
	default:
		msg.SetBodyString(mail.TypeTextHTML, html)
	}
	return msg, nil
}

func (s *SMTP) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.Username),
		mail.WithPassword(s.Password),
	}
	if s.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.Timeout))
	}
	if s.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(s.Host, opts...)
}

func (s *SMTP) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msg)
}
