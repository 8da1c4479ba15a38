package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

type fakeClient struct {
	got []*messaging.Message
	err error
}

func (c *fakeClient) Send(_ context.Context, m *messaging.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.got = append(c.got, m)
	return "projects/demo/messages/1", nil
}

func TestFCMSender_Send(t *testing.T) {
	client := &fakeClient{}
	s := newFCMSender(client, nil)

	err := s.Send(context.Background(), "tok-1", "Title", "Body", map[string]string{"game_id": "1"})
	require.NoError(t, err)
	require.Len(t, client.got, 1)
	assert.Equal(t, "tok-1", client.got[0].Token)
	assert.Equal(t, "Title", client.got[0].Notification.Title)
	assert.Equal(t, "1", client.got[0].Data["game_id"])
}

func TestFCMSender_SendErrors(t *testing.T) {
	dead := errors.New("registration-token-not-registered")
	client := &fakeClient{err: dead}
	s := newFCMSender(client, nil)
	s.tokenInvalid = func(err error) bool { return errors.Is(err, dead) }

	err := s.Send(context.Background(), "tok-1", "t", "b", nil)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	client.err = errors.New("unavailable")
	err = s.Send(context.Background(), "tok-1", "t", "b", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenInvalid)

	err = s.Send(context.Background(), "", "t", "b", nil)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewFCMSender_DisabledWithoutCredentials(t *testing.T) {
	s, err := NewFCMSender(context.Background(), "", nil)
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestReminder(t *testing.T) {
	g := athletics.Game{
		ID: 12, Sport: "Volleyball", Opponent: "Westview",
		Date:     time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		TimeText: "5:30 pm", Location: "Main Gym", IsHome: true,
	}

	m := Reminder(ledger.Kind24HourPush, g, time.UTC)
	assert.Equal(t, "Game Tomorrow: Volleyball vs Westview", m.Title)
	assert.Equal(t, "Fri Oct 16 at 5:30 PM · Main Gym", m.Body)
	assert.Equal(t, "12", m.Data["game_id"])
	assert.Equal(t, "24hour-push", m.Data["kind"])

	g.TimeText = ""
	g.Location = ""
	m = Reminder(ledger.KindGameDayPush, g, time.UTC)
	assert.Equal(t, "Game Day: Volleyball vs Westview", m.Title)
	assert.Equal(t, "Today at TBA", m.Body)
}
