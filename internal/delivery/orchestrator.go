package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/eligibility"
	"github.com/albapepper/athletics-notify/internal/ledger"
	"github.com/albapepper/athletics-notify/internal/push"
)

// Trigger names what started a pass.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerSync      = "sync"
)

// reconcileTimeout bounds the ledger writes that follow a send. They run on a
// context detached from the pass so a cancelled pass still records what the
// transport already did.
const reconcileTimeout = 15 * time.Second

// Options configures an Orchestrator. Zero values pick defaults.
type Options struct {
	// Location is the reference timezone for windows. Default UTC.
	Location *time.Location
	// Workers bounds per-recipient parallelism. Default 1 (sequential).
	Workers int
	// Clock replaces time.Now for window evaluation.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Orchestrator runs notification passes. Either sender may be nil to disable
// that channel.
type Orchestrator struct {
	catalog Catalog
	claims  Claimer
	email   EmailSender
	push    PushSender
	loc     *time.Location
	workers int
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an orchestrator.
func New(catalog Catalog, claims Claimer, email EmailSender, push PushSender, opts Options) *Orchestrator {
	o := &Orchestrator{
		catalog: catalog,
		claims:  claims,
		email:   email,
		push:    push,
		loc:     opts.Location,
		workers: opts.Workers,
		now:     opts.Clock,
		logger:  opts.Logger,
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// job is one (game, recipient, kind) slot to deliver. Exactly one of sub and
// target is set, matching the kind's channel.
type job struct {
	key    ledger.Key
	game   athletics.Game
	sub    athletics.Subscriber
	target athletics.PushTarget
}

// jobOutcome is what processing a job contributes to the pass result.
type jobOutcome struct {
	delivered     bool
	skipped       bool
	tokenInvalid  bool
	targetRemoved bool
	errs          []string
}

// RunPass evaluates every game and delivers due reminders. It never returns
// an error: per-recipient failures and systemic load failures are reported
// in PassResult.Errors.
func (o *Orchestrator) RunPass(ctx context.Context, trigger string) PassResult {
	start := time.Now()
	result := PassResult{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: start,
		Errors:    []string{},
	}
	logger := o.logger.With("run_id", result.RunID, "trigger", trigger)

	jobs, err := o.plan(ctx, &result)
	if err != nil {
		logger.Error("Notification pass aborted", "error", err)
		result.Errors = []string{err.Error()}
		result.Duration = time.Since(start)
		return result
	}

	if len(jobs) == 0 {
		result.Duration = time.Since(start)
		logger.Info("Notification pass complete, nothing due",
			"games_24h", result.GamesIn24HourWindow, "games_gameday", result.GamesInGameDayWindow)
		return result
	}

	logger.Info("Notification pass started", "jobs", len(jobs))
	o.execute(ctx, jobs, &result, logger)

	result.Duration = time.Since(start)
	logger.Info("Notification pass complete", "summary", result.Summary())
	return result
}

// plan loads the inputs and expands eligible games into jobs. Any load error
// is systemic; nothing has touched the ledger yet.
func (o *Orchestrator) plan(ctx context.Context, result *PassResult) ([]job, error) {
	games, err := o.catalog.LoadGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}

	var subs []athletics.Subscriber
	if o.email != nil {
		if subs, err = o.catalog.LoadSubscribers(ctx); err != nil {
			return nil, fmt.Errorf("load subscribers: %w", err)
		}
	}
	var targets []athletics.PushTarget
	if o.push != nil {
		if targets, err = o.catalog.LoadPushTargets(ctx); err != nil {
			return nil, fmt.Errorf("load push targets: %w", err)
		}
	}

	now := o.now()
	var jobs []job
	for _, g := range games {
		for _, w := range eligibility.Windows(g, now, o.loc) {
			switch w {
			case ledger.Window24Hour:
				result.GamesIn24HourWindow++
			case ledger.WindowGameDay:
				result.GamesInGameDayWindow++
			}

			emailKind := ledger.KindFor(w, ledger.ChannelEmail)
			for _, s := range subs {
				if s.InterestedIn(g.Sport) {
					jobs = append(jobs, job{
						key:  ledger.Key{GameID: g.ID, RecipientID: s.ID, Kind: emailKind},
						game: g,
						sub:  s,
					})
				}
			}

			pushKind := ledger.KindFor(w, ledger.ChannelPush)
			for _, p := range targets {
				if p.InterestedIn(g.Sport) {
					jobs = append(jobs, job{
						key:    ledger.Key{GameID: g.ID, RecipientID: p.ID, Kind: pushKind},
						game:   g,
						target: p,
					})
				}
			}
		}
	}
	return jobs, nil
}

// execute runs jobs on a bounded worker pool and folds outcomes into result.
func (o *Orchestrator) execute(ctx context.Context, jobs []job, result *PassResult, logger *slog.Logger) {
	workers := min(o.workers, len(jobs))

	ch := make(chan job, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup
	// Push targets whose token proved invalid earlier in this pass.
	deadTargets := make(map[int64]bool)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				if ctx.Err() != nil {
					// Unclaimed jobs are left for the next pass.
					continue
				}
				if j.key.Kind.Channel() == ledger.ChannelPush {
					mu.Lock()
					dead := deadTargets[j.target.ID]
					mu.Unlock()
					if dead {
						continue
					}
				}

				out := o.process(ctx, j, logger)

				mu.Lock()
				switch {
				case out.delivered:
					result.Delivered++
					if j.key.Kind.Channel() == ledger.ChannelPush {
						result.PushesSent++
					} else {
						result.EmailsSent++
					}
				case out.skipped:
					result.DuplicatesSkipped++
				}
				if out.tokenInvalid {
					deadTargets[j.target.ID] = true
				}
				if out.targetRemoved {
					result.PushTargetsRemoved++
				}
				result.Errors = append(result.Errors, out.errs...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		result.AddErrorf("pass interrupted: %v", err)
	}
}

// process runs claim → sending → send → reconcile for one job.
func (o *Orchestrator) process(ctx context.Context, j job, logger *slog.Logger) jobOutcome {
	var out jobOutcome
	key := j.key
	log := logger.With("game_id", key.GameID, "recipient_id", key.RecipientID, "kind", key.Kind)

	claimed, err := o.claims.TryClaim(ctx, key)
	if err != nil {
		log.Warn("Claim failed", "error", err)
		out.errs = append(out.errs, fmt.Sprintf("%s: %v", describe(j), err))
		return out
	}
	if !claimed {
		out.skipped = true
		return out
	}

	sending, err := o.claims.MarkSending(ctx, key)
	if err != nil {
		// Left pending; reclaimed once stale.
		log.Warn("Mark sending failed", "error", err)
		out.errs = append(out.errs, fmt.Sprintf("%s: %v", describe(j), err))
		return out
	}
	if !sending {
		log.Info("Claim advanced by another worker, skipping send")
		out.skipped = true
		return out
	}

	sendErr := o.send(ctx, j)

	// The transport has been called; record its outcome even if the pass
	// is being cancelled.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	if sendErr != nil {
		log.Warn("Delivery failed, releasing claim", "error", sendErr)
		out.errs = append(out.errs, fmt.Sprintf("%s: %v", describe(j), sendErr))
		if err := o.claims.Release(rctx, key); err != nil {
			// Left sending; reclaimed once stale.
			log.Error("Release failed", "error", err)
			out.errs = append(out.errs, fmt.Sprintf("%s: %v", describe(j), err))
		}
		if errors.Is(sendErr, push.ErrTokenInvalid) {
			out.tokenInvalid = true
			if err := o.catalog.DeletePushTarget(rctx, j.target.ID); err != nil {
				log.Error("Removing invalid push target failed", "error", err)
				out.errs = append(out.errs, fmt.Sprintf("%s: %v", describe(j), err))
			} else {
				log.Info("Removed invalid push target", "push_target_id", j.target.ID)
				out.targetRemoved = true
			}
		}
		return out
	}

	out.delivered = true
	marked, err := o.claims.MarkSent(rctx, key)
	switch {
	case err != nil:
		// Delivered but still sending; a later pass may resend once stale.
		log.Error("Mark sent failed after delivery", "error", err)
		out.errs = append(out.errs, fmt.Sprintf("%s: %v", describe(j), err))
	case !marked:
		log.Warn("Mark sent matched no ledger record")
	}
	return out
}

// send calls the transport for the job's channel. A panicking transport is
// a failed delivery like any other.
func (o *Orchestrator) send(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()

	if j.key.Kind.Channel() == ledger.ChannelPush {
		msg := push.Reminder(j.key.Kind, j.game, o.loc)
		return o.push.Send(ctx, j.target.Token, msg.Title, msg.Body, msg.Data)
	}
	return o.email.SendReminder(ctx, j.key.Kind, j.sub, j.game)
}

func describe(j job) string {
	if j.key.Kind.Channel() == ledger.ChannelPush {
		return fmt.Sprintf("push %s to target %d for game %d", j.key.Kind, j.key.RecipientID, j.key.GameID)
	}
	return fmt.Sprintf("email %s to subscriber %d for game %d", j.key.Kind, j.key.RecipientID, j.key.GameID)
}
