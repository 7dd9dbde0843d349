package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmpl "html/template"
	"io"
	"reflect"
	"strings"
	"sync"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var files embed.FS

const (
	Welcome    = "welcome"
	VerifyCode = "verify_code"
	ResetCode  = "reset_code"
)

var names = []string{Welcome, VerifyCode, ResetCode}

var ErrUnknownTemplate = errors.New("unknown email template")

// EmailData is the data every template renders from. Jobs carry it as a map
// (see ToMap) so it survives the JSON hop through the queue.
type EmailData struct {
	Name  string
	Email string
	Type  string

	AppName        string
	CompanyName    string
	CompanyAddress string
	SupportURL     string

	Code          string
	ExpiresAt     time.Time
	ExpiresAtText string
	ExpiresInMin  int
	Time          string
	IP            string
	UserAgent     string
}

func ToMap(d EmailData) map[string]any {
	return map[string]any{
		"Name":           d.Name,
		"Email":          d.Email,
		"Type":           d.Type,
		"AppName":        d.AppName,
		"CompanyName":    d.CompanyName,
		"CompanyAddress": d.CompanyAddress,
		"SupportURL":     d.SupportURL,
		"Code":           d.Code,
		"ExpiresAt":      d.ExpiresAt,
		"ExpiresAtText":  d.ExpiresAtText,
		"ExpiresInMin":   d.ExpiresInMin,
		"Time":           d.Time,
		"IP":             d.IP,
		"UserAgent":      d.UserAgent,
	}
}

// defaultFn backs {{ .Value | default "Fallback" }}. Blank strings and zero
// values (including float64 0 after a JSON round trip) fall back.
func defaultFn(fallback, value any) any {
	if s, ok := value.(string); ok {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.IsZero() {
		return fallback
	}
	return value
}

func funcs() map[string]any {
	return map[string]any{
		"upper":   strings.ToUpper,
		"default": defaultFn,
	}
}

type parsed struct {
	subject *texttpl.Template
	text    *texttpl.Template
	html    *htmpl.Template
}

var (
	loadOnce sync.Once
	loaded   map[string]parsed
	loadErr  error
)

// load parses every embedded template once.
func load() (map[string]parsed, error) {
	loadOnce.Do(func() {
		out := make(map[string]parsed, len(names))
		for _, name := range names {
			var p parsed
			if p.subject, loadErr = texttpl.New("").Funcs(funcs()).ParseFS(files, name+".subject.tmpl"); loadErr != nil {
				return
			}
			if p.text, loadErr = texttpl.New("").Funcs(funcs()).ParseFS(files, name+".text.tmpl"); loadErr != nil {
				return
			}
			if p.html, loadErr = htmpl.New("").Funcs(funcs()).ParseFS(files, name+".html.tmpl"); loadErr != nil {
				return
			}
			out[name] = p
		}
		loaded = out
	})
	return loaded, loadErr
}

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

func execute(t executor, file string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, file, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", file, err)
	}
	return buf.String(), nil
}

// Render produces the subject, plain text and HTML bodies of the named template.
func Render(name string, data any) (subject, text, html string, err error) {
	all, err := load()
	if err != nil {
		return "", "", "", fmt.Errorf("parse email templates: %w", err)
	}
	p, ok := all[name]
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	if subject, err = execute(p.subject, name+".subject.tmpl", data); err != nil {
		return "", "", "", err
	}
	if text, err = execute(p.text, name+".text.tmpl", data); err != nil {
		return "", "", "", err
	}
	if html, err = execute(p.html, name+".html.tmpl", data); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), text, html, nil
}
