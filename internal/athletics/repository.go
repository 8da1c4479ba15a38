package athletics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository loads games and subscribers from Postgres.
type Repository struct {
	db DBTX
}

// NewRepository creates a repository on a pool or connection.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// LoadGames returns every game on the schedule.
func (r *Repository) LoadGames(ctx context.Context) ([]Game, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sport, opponent, game_date, COALESCE(game_time, ''),
		       COALESCE(location, ''), is_home
		FROM games
		ORDER BY game_date, id`)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Sport, &g.Opponent, &g.Date, &g.TimeText, &g.Location, &g.IsHome); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// LoadSubscribers returns every active email subscriber.
func (r *Repository) LoadSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, email, COALESCE(name, ''), sports
		FROM subscribers
		WHERE is_active = true
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var s Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.Sports); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// LoadPushTargets returns every registered push target.
func (r *Repository) LoadPushTargets(ctx context.Context) ([]PushTarget, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, token, sports
		FROM push_subscriptions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load push targets: %w", err)
	}
	defer rows.Close()

	var targets []PushTarget
	for rows.Next() {
		var p PushTarget
		if err := rows.Scan(&p.ID, &p.Token, &p.Sports); err != nil {
			return nil, fmt.Errorf("scan push target: %w", err)
		}
		targets = append(targets, p)
	}
	return targets, rows.Err()
}

// DeletePushTarget removes a push target whose token will never work again.
func (r *Repository) DeletePushTarget(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete push target %d: %w", id, err)
	}
	return nil
}
