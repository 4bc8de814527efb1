// Package backtest replays historical races in date order through the
// feature, prediction and policy pipeline and settles the stakes against
// recorded payouts.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/predictor"
	"github.com/yourusername/race-edge/internal/strategy"
)

// Engine orchestrates backtesting runs. It holds no per-run state, so one
// engine may serve several runs at once.
type Engine struct {
	config    Config
	store     *entrystore.Store
	profiles  features.ProfileSource
	payouts   PayoutSource
	predictor predictor.Predictor
	policy    strategy.Policy
	logger    *logger.BacktestLogger
	days      *dayCache
	hook      TransitionHook
}

// Option customises an engine
type Option func(*Engine)

// WithTransitionHook observes every race state change
func WithTransitionHook(hook TransitionHook) Option {
	return func(e *Engine) { e.hook = hook }
}

// NewEngine creates a new backtesting engine. profiles may be nil, in which
// case horse histories come from the entry store alone.
func NewEngine(cfg Config, store *entrystore.Store, profiles features.ProfileSource, payouts PayoutSource,
	pred predictor.Predictor, policy strategy.Policy, log *logger.BacktestLogger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	if payouts == nil {
		return nil, fmt.Errorf("payout source is required")
	}
	if pred == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if log == nil {
		log = logger.NewBacktestLogger(logger.Discard())
	}

	e := &Engine{
		config:    cfg,
		store:     store,
		profiles:  profiles,
		payouts:   payouts,
		predictor: pred,
		policy:    policy,
		logger:    log,
		days:      newDayCache(store, cfg.Thresholds),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() Config {
	return e.config
}

// WithPolicy returns an engine sharing everything but the policy
func (e *Engine) WithPolicy(policy strategy.Policy) *Engine {
	clone := *e
	clone.policy = policy
	return &clone
}

// Result is the outcome of one run
type Result struct {
	RunID           uuid.UUID                 `json:"run_id"`
	Policy          string                    `json:"policy"`
	Parameters      map[string]interface{}    `json:"parameters"`
	ParameterHash   string                    `json:"parameter_hash"`
	Start           time.Time                 `json:"start"`
	End             time.Time                 `json:"end"`
	InitialBankroll decimal.Decimal           `json:"initial_bankroll"`
	Summary         Summary                   `json:"summary"`
	Curve           EquityCurve               `json:"curve"`
	Settlements     []models.SettlementResult `json:"settlements"`
	Dataset         []DatasetRow              `json:"-"`
	State           RaceState                 `json:"-"`
	Duration        time.Duration             `json:"duration"`
}

// Run replays the configured window
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	return e.RunWindow(ctx, e.config.Start, e.config.End)
}

// RunWindow replays the race dates within [from, to]
func (e *Engine) RunWindow(ctx context.Context, from, to time.Time) (*Result, error) {
	start := time.Now()
	r := e.newRun()
	r.log.WithFields(logrus.Fields{"start": from, "end": to}).Info("Starting backtest run")

	res, err := r.execute(ctx, from, to)
	metrics.RecordBacktestDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordBacktestRun("historical_replay", "failure")
		return nil, err
	}
	metrics.RecordBacktestRun("historical_replay", "success")
	metrics.UpdateROI(e.policy.Name(), res.Summary.ROI)

	res.Duration = time.Since(start)
	s := res.Summary
	r.log.LogRunSummary(s.Races, s.RacesSkipped, s.Bets, s.Hits,
		s.TotalStake.InexactFloat64(), s.TotalReturn.InexactFloat64(), s.ROI, res.Duration)
	return res, nil
}

// RunMany runs one replay per policy concurrently. Each run keeps its own
// ledger; results come back in the order of policies.
func (e *Engine) RunMany(ctx context.Context, policies []strategy.Policy) ([]*Result, error) {
	results := make([]*Result, len(policies))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range policies {
		i, p := i, p
		g.Go(func() error {
			res, err := e.WithPolicy(p).Run(gctx)
			if err != nil {
				return fmt.Errorf("policy %s: %w", p.Name(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// run is the mutable state of a single replay
type run struct {
	e       *Engine
	id      uuid.UUID
	log     *logger.BacktestLogger
	ledger  *Ledger
	machine machine

	races      int
	settled    int
	skipped    map[string]int
	reconciled map[string]int
	vectors    int
	missing    int
	dataset    []DatasetRow
}

func (e *Engine) newRun() *run {
	id := uuid.New()
	return &run{
		e:          e,
		id:         id,
		log:        e.logger.WithRun(id.String(), e.policy.Name()),
		ledger:     NewLedger(),
		machine:    machine{state: StateIdle, hook: e.hook},
		skipped:    make(map[string]int),
		reconciled: make(map[string]int),
	}
}

func (r *run) execute(ctx context.Context, from, to time.Time) (*Result, error) {
	e := r.e
	for _, day := range e.store.RaceDates(from, to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dc := e.days.get(day)
		composer := features.NewComposer(dc.snapshot, historySource{profiles: e.profiles, history: dc.history})
		// the bankroll only moves between race dates
		bankroll := e.config.InitialBankroll.Add(r.ledger.Profit())
		r.ledger.OpenDay(day)

		for _, raceID := range e.store.RacesOn(day) {
			if err := r.race(ctx, composer, raceID, bankroll); err != nil {
				return nil, err
			}
		}
	}
	r.machine.race = ""
	if err := r.machine.to(StateDone); err != nil {
		return nil, err
	}

	curve := r.ledger.Curve(e.config.InitialBankroll)
	summary := Summarize(r.ledger, curve, e.config.InitialBankroll)
	summary.Races = r.races
	summary.RacesSettled = r.settled
	for reason, n := range r.skipped {
		summary.SkippedByReason[reason] = n
		summary.RacesSkipped += n
	}
	for betType, n := range r.reconciled {
		summary.Reconciled[betType] = n
	}
	summary.Vectors = r.vectors
	summary.MissingFeatures = r.missing

	params := e.policy.Parameters()
	return &Result{
		RunID:           r.id,
		Policy:          e.policy.Name(),
		Parameters:      params,
		ParameterHash:   HashParameters(params),
		Start:           from,
		End:             to,
		InitialBankroll: e.config.InitialBankroll,
		Summary:         summary,
		Curve:           curve,
		Settlements:     r.ledger.Results(),
		Dataset:         r.dataset,
		State:           r.machine.state,
	}, nil
}

func (r *run) race(ctx context.Context, composer *features.Composer, raceID string, bankroll decimal.Decimal) error {
	e := r.e
	r.machine.race = raceID
	if err := r.machine.to(StateLoading); err != nil {
		return err
	}
	r.races++

	entries := e.store.Race(raceID)
	if len(entries) == 0 {
		return r.skip(raceID, time.Time{}, SkipNoEntries, nil)
	}
	cond := features.ConditionsOf(entries[0])
	if cond.Date.IsZero() || cond.Distance <= 0 {
		return r.skip(raceID, cond.Date, SkipMalformed, fmt.Errorf("date %v distance %d", cond.Date, cond.Distance))
	}
	record, err := e.payouts.Payout(ctx, raceID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to load payout for race %s: %w", raceID, err)
	}
	if record == nil {
		return r.skip(raceID, cond.Date, SkipNoPayout, err)
	}

	if err := r.machine.to(StateComposing); err != nil {
		return err
	}
	vectors := make([]features.Vector, 0, len(entries))
	for _, entry := range entries {
		fv, err := composer.Compose(entry, cond)
		if errors.Is(err, models.ErrMissingRaceDate) {
			return r.skip(raceID, cond.Date, SkipMalformed, err)
		}
		if err != nil {
			return fmt.Errorf("failed to compose features: %w", err)
		}
		vectors = append(vectors, fv)
	}

	if err := r.machine.to(StatePredicting); err != nil {
		return err
	}
	preds := make([]strategy.RankedPrediction, 0, len(entries))
	for i, entry := range entries {
		p, err := e.predictor.Predict(ctx, vectors[i])
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return r.skip(raceID, cond.Date, SkipPredictorError, err)
		}
		preds = append(preds, strategy.RankedPrediction{HorseID: entry.HorseID, HorseNumber: entry.HorseNumber, Prediction: p})
	}
	for i := range vectors {
		r.vectors++
		r.missing += vectors[i].MissingCount()
	}
	if e.config.CollectDataset {
		for i, entry := range entries {
			r.dataset = append(r.dataset, newDatasetRow(entry, vectors[i], preds[i].Prediction, e.config.Weights))
		}
	}

	if err := r.machine.to(StateDeciding); err != nil {
		return err
	}
	decisions := e.policy.Decide(strategy.RaceContext{
		RaceID:   raceID,
		RaceDate: cond.Date,
		Bankroll: bankroll,
		WinOdds:  winOdds(entries),
	}, preds)

	if err := r.machine.to(StateSettling); err != nil {
		return err
	}
	results := make([]models.SettlementResult, 0, len(decisions))
	for _, d := range decisions {
		res, rec, err := Settle(d, record)
		if err != nil {
			return r.skip(raceID, cond.Date, settleReason(err), err)
		}
		if rec.Adjusted() {
			pool, _ := record.Pool(d.BetType)
			r.reconciled[string(d.BetType)]++
			r.log.LogReconciliation(raceID, string(d.BetType), joinRules(rec.Rules), len(pool.Combinations), len(pool.Amounts))
		}
		results = append(results, res)
	}

	r.ledger.Record(results...)
	r.settled++
	stake, payout, hits := decimal.Zero, decimal.Zero, 0
	for _, res := range results {
		stake = stake.Add(res.Decision.Stake)
		payout = payout.Add(res.Payout)
		if res.Hit {
			hits++
		}
		metrics.RecordSettlement(e.policy.Name(), string(res.Decision.BetType),
			res.Decision.Stake.InexactFloat64(), res.Payout.InexactFloat64(), res.Hit)
	}
	metrics.RecordRaceProcessed(e.policy.Name())
	r.log.LogRaceSettled(raceID, len(results), hits, stake.InexactFloat64(), payout.InexactFloat64())
	return r.machine.to(StateIdle)
}

// skip leaves a race out of the ledger and returns the run to Idle
func (r *run) skip(raceID string, raceDate time.Time, reason string, err error) error {
	r.skipped[reason]++
	r.log.LogRaceSkipped(raceID, raceDate, reason, err)
	metrics.RecordRaceSkipped(r.e.policy.Name(), reason)
	return r.machine.to(StateIdle)
}

func settleReason(err error) string {
	switch {
	case errors.Is(err, ErrIrreconcilable):
		return SkipIrreconcilable
	case errors.Is(err, ErrNoPayout):
		return SkipNoPayout
	}
	return SkipInvalidDecision
}

func winOdds(entries []models.EntryRecord) map[int]float64 {
	odds := make(map[int]float64, len(entries))
	for _, e := range entries {
		if e.HorseNumber > 0 && e.WinOdds != nil && *e.WinOdds > 1 {
			odds[e.HorseNumber] = *e.WinOdds
		}
	}
	return odds
}

func joinRules(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
