// Package push sends reminder push notifications via Firebase Cloud
// Messaging.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/eligibility"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

// ErrTokenInvalid marks a token that will never accept messages again. The
// caller should drop the push target, not just the notification.
var ErrTokenInvalid = errors.New("push: token permanently invalid")

// messagingClient is satisfied by *messaging.Client.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender sends push notifications via Firebase Cloud Messaging.
type FCMSender struct {
	client messagingClient
	logger *slog.Logger
	// tokenInvalid classifies a send error as a dead token.
	tokenInvalid func(error) bool
}

// NewFCMSender creates an FCM sender from a service account credentials
// file. Returns nil, nil if credentialsFile is empty (push disabled).
func NewFCMSender(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMSender, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return newFCMSender(client, logger), nil
}

func newFCMSender(client messagingClient, logger *slog.Logger) *FCMSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMSender{
		client:       client,
		logger:       logger,
		tokenInvalid: isTokenInvalid,
	}
}

// Send delivers one notification to a device token. Dead tokens are reported
// as ErrTokenInvalid.
func (s *FCMSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	msg := &messaging.Message{
		Token: token,
		Data:  data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		if s.tokenInvalid(err) {
			return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	s.logger.Debug("FCM message sent", "message_id", id, "title", title)
	return nil
}

func isTokenInvalid(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err)
}

// --------------------------------------------------------------------------
// Payloads
// --------------------------------------------------------------------------

// Message is the title, body and data of a reminder push.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Reminder builds the push payload for a game reminder.
func Reminder(kind ledger.Kind, game athletics.Game, loc *time.Location) Message {
	start := eligibility.StartTime(game, loc)
	when := "TBA"
	if _, _, ok := eligibility.ParseClock(game.TimeText); ok {
		when = start.Format("3:04 PM")
	}

	title := "Game Tomorrow: " + game.Matchup()
	body := start.Format("Mon Jan 2") + " at " + when
	if kind.Window() == ledger.WindowGameDay {
		title = "Game Day: " + game.Matchup()
		body = "Today at " + when
	}
	if game.Location != "" {
		body += " · " + game.Location
	}

	return Message{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"game_id": strconv.FormatInt(game.ID, 10),
			"kind":    string(kind),
			"sport":   game.Sport,
			"url":     "/schedule",
		},
	}
}
