// Package eligibility decides whether a game currently falls inside a
// reminder window.
//
// Two windows exist:
//   - 24-hour: 21h < time until start <= 27h.
//   - game-day: the game is today and the clock reads 08:00–08:59.
//
// All calendar arithmetic happens in a single reference timezone.
package eligibility

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	windowMinHours = 21 // exclusive
	windowMaxHours = 27 // inclusive
	gameDayHour    = 8  // reminders go out 08:00–08:59
)

// QuietHours is a daily [Start, End) hour range during which scheduled
// passes do not run.
type QuietHours struct {
	Start int
	End   int
}

// DefaultQuietHours is midnight to 5 AM.
var DefaultQuietHours = QuietHours{Start: 0, End: 5}

var clockPattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([AP]M)`)

// --------------------------------------------------------------------------
// Start time
// --------------------------------------------------------------------------

// ParseClock extracts hour and minute from text like "7:00 PM" or "11:30am".
func ParseClock(text string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, false
	}

	pm := strings.EqualFold(m[3], "PM")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour, minute, true
}

// StartTime combines the game's calendar date with its parsed start time in
// loc. An unparseable time leaves the start at midnight.
func StartTime(g athletics.Game, loc *time.Location) time.Time {
	hour, minute, _ := ParseClock(g.TimeText)
	y, m, d := g.Date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

// HoursUntil returns the fractional hours between now and the game start.
func HoursUntil(g athletics.Game, now time.Time, loc *time.Location) float64 {
	return StartTime(g, loc).Sub(now).Hours()
}

// --------------------------------------------------------------------------
// Windows
// --------------------------------------------------------------------------

// In24HourWindow reports whether 21 < hoursUntilGame <= 27.
func In24HourWindow(g athletics.Game, now time.Time, loc *time.Location) bool {
	h := HoursUntil(g, now, loc)
	return h > windowMinHours && h <= windowMaxHours
}

// InGameDayWindow reports whether the game is today and now is within
// [08:00, 09:00) in loc.
func InGameDayWindow(g athletics.Game, now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	gy, gm, gd := g.Date.Date()
	ny, nm, nd := local.Date()
	if gy != ny || gm != nm || gd != nd {
		return false
	}
	return local.Hour() == gameDayHour
}

// Windows returns every window the game is in right now. Each window is
// checked independently.
func Windows(g athletics.Game, now time.Time, loc *time.Location) []ledger.Window {
	var ws []ledger.Window
	if In24HourWindow(g, now, loc) {
		ws = append(ws, ledger.Window24Hour)
	}
	if InGameDayWindow(g, now, loc) {
		ws = append(ws, ledger.WindowGameDay)
	}
	return ws
}

// InQuietHours reports whether now falls in the quiet range in loc.
func InQuietHours(now time.Time, loc *time.Location, q QuietHours) bool {
	h := now.In(loc).Hour()
	if q.Start == q.End {
		return false
	}
	if q.Start < q.End {
		return h >= q.Start && h < q.End
	}
	// Range wraps midnight, e.g. 22–5.
	return h >= q.Start || h < q.End
}
