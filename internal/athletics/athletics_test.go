package athletics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterestedIn(t *testing.T) {
	s := Subscriber{Sports: []string{"Football", " Volleyball "}}
	assert.True(t, s.InterestedIn("football"))
	assert.True(t, s.InterestedIn("VOLLEYBALL"))
	assert.False(t, s.InterestedIn("Soccer"))

	p := PushTarget{}
	assert.False(t, p.InterestedIn("Football"))
}

func TestMatchup(t *testing.T) {
	assert.Equal(t, "Football vs Central", Game{Sport: "Football", Opponent: "Central", IsHome: true}.Matchup())
	assert.Equal(t, "Football at Central", Game{Sport: "Football", Opponent: "Central"}.Matchup())
}

func TestRepository_LoadGames(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM games").
		WillReturnRows(pgxmock.NewRows([]string{"id", "sport", "opponent", "game_date", "game_time", "location", "is_home"}).
			AddRow(int64(1), "Football", "Central", date, "7:00 PM", "Home Field", true))

	games, err := NewRepository(mock).LoadGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, Game{ID: 1, Sport: "Football", Opponent: "Central", Date: date, TimeText: "7:00 PM", Location: "Home Field", IsHome: true}, games[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LoadSubscribersError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM subscribers").WillReturnError(errors.New("relation does not exist"))

	_, err = NewRepository(mock).LoadSubscribers(context.Background())
	assert.ErrorContains(t, err, "load subscribers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeletePushTarget(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM push_subscriptions").
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, NewRepository(mock).DeletePushTarget(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}
