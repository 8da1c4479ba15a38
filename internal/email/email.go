// Package email sends reminder emails over SMTP.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"gopkg.in/mail.v2"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/eligibility"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	subjectTmpl = template.Must(template.ParseFS(templateFS, "templates/subject.tmpl"))
	textTmpl    = template.Must(template.ParseFS(templateFS, "templates/reminder.txt.tmpl"))
	htmlTmpl    = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/reminder.html.tmpl"))
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SiteURL  string
}

// dialer is satisfied by *mail.Dialer.
type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// Sender renders and sends reminder emails.
type Sender struct {
	dialer  dialer
	from    string
	siteURL string
	loc     *time.Location
	logger  *slog.Logger
}

// NewSender creates an SMTP sender. Returns nil if no host is configured
// (email reminders disabled).
func NewSender(cfg Config, loc *time.Location, logger *slog.Logger) *Sender {
	if cfg.Host == "" {
		return nil
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 20 * time.Second
	return newSender(d, cfg, loc, logger)
}

func newSender(d dialer, cfg Config, loc *time.Location, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		dialer:  d,
		from:    cfg.From,
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		loc:     loc,
		logger:  logger,
	}
}

// Rendered is a fully rendered reminder.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	Name       string
	Window     ledger.Window
	Game       athletics.Game
	StartDay   string
	StartClock string
	SiteURL    string
}

// Render builds the subject and bodies for a reminder.
func (s *Sender) Render(kind ledger.Kind, sub athletics.Subscriber, game athletics.Game) (Rendered, error) {
	name := sub.Name
	if name == "" {
		name = "there"
	}
	start := eligibility.StartTime(game, s.loc)
	clock := "TBA"
	if _, _, ok := eligibility.ParseClock(game.TimeText); ok {
		clock = start.Format("3:04 PM")
	}
	data := templateData{
		Name:       name,
		Window:     kind.Window(),
		Game:       game,
		StartDay:   start.Format("Monday, January 2"),
		StartClock: clock,
		SiteURL:    s.siteURL,
	}

	var subject, text, html bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("render html body: %w", err)
	}
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// SendReminder delivers one reminder. A nil error means the SMTP server
// accepted the message.
func (s *Sender) SendReminder(ctx context.Context, kind ledger.Kind, sub athletics.Subscriber, game athletics.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sub.Email == "" {
		return fmt.Errorf("subscriber %d has no email address", sub.ID)
	}

	r, err := s.Render(kind, sub, game)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", sub.Email)
	m.SetHeader("Subject", r.Subject)
	m.SetBody("text/plain", r.Text)
	m.AddAlternative("text/html", r.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to subscriber %d: %w", sub.ID, err)
	}
	s.logger.Debug("Reminder email sent", "subscriber_id", sub.ID, "game_id", game.ID, "kind", kind)
	return nil
}
