package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestWindowCommand_24Hour(t *testing.T) {
	out, err := runCLI(t, "window", "--tz", "UTC", "--date", "2026-10-16", "--time", "4:00 PM", "--now", "2026-10-15 14:00")
	require.NoError(t, err)
	assert.Contains(t, out, "hours until: 26.00")
	assert.Contains(t, out, "window:      24hour (email kind 24hour, push kind 24hour-push)")
}

func TestWindowCommand_GameDay(t *testing.T) {
	out, err := runCLI(t, "window", "--tz", "UTC", "--date", "2026-10-15", "--time", "7:00 PM", "--now", "2026-10-15 08:30")
	require.NoError(t, err)
	assert.Contains(t, out, "window:      gameday (email kind gameday, push kind gameday-push)")
}

func TestWindowCommand_None(t *testing.T) {
	out, err := runCLI(t, "window", "--tz", "UTC", "--date", "2026-10-20", "--time", "7:00 PM", "--now", "2026-10-15 08:30")
	require.NoError(t, err)
	assert.Contains(t, out, "windows:     none")
}

func TestWindowCommand_RequiresDate(t *testing.T) {
	_, err := runCLI(t, "window", "--tz", "UTC")
	assert.Error(t, err)
}

func TestPrintCounts(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printCounts(&out, []ledger.Count{
		{Kind: ledger.Kind24Hour, Status: ledger.StatusSent, Total: 12},
		{Kind: ledger.KindGameDayPush, Status: ledger.StatusSending, Total: 2, Stale: 1},
	}))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "KIND")
	assert.Contains(t, string(lines[2]), "gameday-push")
}

func TestDryRunSenders(t *testing.T) {
	game := athletics.Game{ID: 1, Sport: "Football", Opponent: "Central"}
	assert.NoError(t, dryRunEmail(logger).SendReminder(context.Background(), ledger.Kind24Hour, athletics.Subscriber{Email: "a@example.com"}, game))
	assert.NoError(t, dryRunPush(logger).Send(context.Background(), "abcdefghijkl", "t", "b", nil))
	assert.Equal(t, "…ghijkl", tokenSuffix("abcdefghijkl"))
	assert.Equal(t, "abc", tokenSuffix("abc"))
}
