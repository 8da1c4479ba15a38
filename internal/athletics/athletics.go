// Package athletics holds the read-only inputs of the reminder engine: the
// game schedule, email subscribers and push targets. Rows are written by the
// spreadsheet sync and the subscription pages; this package only reads them
// (and removes push targets whose tokens are permanently dead).
package athletics

import (
	"strings"
	"time"
)

// Game is one scheduled contest.
type Game struct {
	ID       int64
	Sport    string
	Opponent string
	// Date is the calendar day of the game. Only year, month and day are
	// meaningful; the reference timezone decides which instant it maps to.
	Date time.Time
	// TimeText is the free-text start time from the schedule, e.g. "7:00 PM".
	TimeText string
	Location string
	IsHome   bool
}

// Matchup returns a short "vs"/"at" description of the game.
func (g Game) Matchup() string {
	if g.IsHome {
		return g.Sport + " vs " + g.Opponent
	}
	return g.Sport + " at " + g.Opponent
}

// Subscriber receives email reminders for the sports it follows.
type Subscriber struct {
	ID     int64
	Email  string
	Name   string
	Sports []string
}

// InterestedIn reports whether the subscriber follows sport.
func (s Subscriber) InterestedIn(sport string) bool {
	return containsSport(s.Sports, sport)
}

// PushTarget is a registered device token with its followed sports.
type PushTarget struct {
	ID     int64
	Token  string
	Sports []string
}

// InterestedIn reports whether the target follows sport.
func (p PushTarget) InterestedIn(sport string) bool {
	return containsSport(p.Sports, sport)
}

func containsSport(sports []string, sport string) bool {
	sport = strings.TrimSpace(sport)
	for _, s := range sports {
		if strings.EqualFold(strings.TrimSpace(s), sport) {
			return true
		}
	}
	return false
}
