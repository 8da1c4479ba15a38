package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

type captureDialer struct {
	sent []*mail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*mail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

var (
	game = athletics.Game{
		ID: 3, Sport: "Football", Opponent: "Central",
		Date:     time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		TimeText: "7:00 PM", Location: "Memorial Stadium", IsHome: true,
	}
	sub = athletics.Subscriber{ID: 9, Email: "fan@example.com", Name: "Jordan", Sports: []string{"Football"}}
	cfg = Config{Host: "smtp.example.com", From: "Athletics <noreply@example.com>", SiteURL: "https://athletics.example.com/"}
)

func TestRender(t *testing.T) {
	s := newSender(&captureDialer{}, cfg, time.UTC, nil)

	r, err := s.Render(ledger.Kind24Hour, sub, game)
	require.NoError(t, err)
	assert.Equal(t, "Tomorrow: Football vs Central at 7:00 PM", r.Subject)
	assert.Contains(t, r.Text, "Hi Jordan,")
	assert.Contains(t, r.Text, "Friday, October 16 at 7:00 PM")
	assert.Contains(t, r.Text, "Memorial Stadium")
	assert.Contains(t, r.Text, "https://athletics.example.com/schedule")
	assert.Contains(t, r.HTML, "Game tomorrow")

	r, err = s.Render(ledger.KindGameDay, athletics.Subscriber{}, athletics.Game{Sport: "Soccer", Opponent: "North", Date: game.Date, TimeText: "TBA"})
	require.NoError(t, err)
	assert.Equal(t, "Game day: Soccer at North at TBA", r.Subject)
	assert.Contains(t, r.Text, "Hi there,")
	assert.Contains(t, r.HTML, "Today is game day!")
}

func TestSendReminder(t *testing.T) {
	d := &captureDialer{}
	s := newSender(d, cfg, time.UTC, nil)

	require.NoError(t, s.SendReminder(context.Background(), ledger.Kind24Hour, sub, game))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"fan@example.com"}, d.sent[0].GetHeader("To"))

	var buf bytes.Buffer
	_, err := d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
}

func TestSendReminder_Failures(t *testing.T) {
	d := &captureDialer{err: errors.New("535 authentication failed")}
	s := newSender(d, cfg, time.UTC, nil)

	err := s.SendReminder(context.Background(), ledger.Kind24Hour, sub, game)
	assert.ErrorContains(t, err, "535")

	err = s.SendReminder(context.Background(), ledger.Kind24Hour, athletics.Subscriber{ID: 1}, game)
	assert.ErrorContains(t, err, "no email address")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SendReminder(ctx, ledger.Kind24Hour, sub, game), context.Canceled)
}

func TestNewSender_DisabledWithoutHost(t *testing.T) {
	assert.Nil(t, NewSender(Config{}, time.UTC, nil))
	assert.NotNil(t, NewSender(cfg, time.UTC, nil))
}
