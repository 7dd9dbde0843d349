package templates

import (
	"math"
	"time"
)

// Brand carries the company details shared by every template.
type Brand struct {
	AppName        string
	CompanyName    string
	CompanyAddress string
	SupportURL     string
}

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithTime(t time.Time) Option {
	return func(d *EmailData) { d.Time = t.UTC().Format("02 January 2006, 15:04 MST") }
}

// WithExpiry records an absolute deadline and the minutes left relative to now.
func WithExpiry(exp, now time.Time) Option {
	return func(d *EmailData) {
		utc := exp.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04 MST")
		d.ExpiresInMin = int(math.Round(exp.Sub(now).Minutes()))
	}
}

func NewBaseEmailData(b Brand, typ, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		Type:           typ,
		AppName:        b.AppName,
		CompanyName:    b.CompanyName,
		CompanyAddress: b.CompanyAddress,
		SupportURL:     b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewWelcomeData(b Brand, name, email string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(b, Welcome, name, email, opts...))
}

func NewVerifyCodeData(b Brand, name, email, code string, opts ...Option) map[string]any {
	d := NewBaseEmailData(b, VerifyCode, name, email, opts...)
	d.Code = code
	return ToMap(d)
}

func NewResetCodeData(b Brand, name, email, code string, opts ...Option) map[string]any {
	d := NewBaseEmailData(b, ResetCode, name, email, opts...)
	d.Code = code
	return ToMap(d)
}
