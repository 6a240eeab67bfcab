// Package engine runs ledger, pool and batch operations as single-writer
// transactions: every call works on a copy of the state, is checked against
// the invariants, persisted, and only then becomes visible.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"swapledger/internal/amm"
	"swapledger/internal/invariant"
	"swapledger/internal/ledger"
	"swapledger/internal/metrics"
	"swapledger/internal/model"
	"swapledger/internal/oracle"
	"swapledger/internal/storage"
)

const (
	// DefaultMaxBatchSize bounds the number of operations in one batch.
	DefaultMaxBatchSize = 10
	// DefaultProtocolFeeShareBps is the part of each swap fee set aside for the protocol.
	DefaultProtocolFeeShareBps uint32 = 1000
)

// Clock returns the current time in seconds.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// Authorizer gates administrative calls.
type Authorizer interface {
	RequireAdmin(caller model.Identity) error
}

// EventSink receives events after a commit.
type EventSink interface {
	Emit(ctx context.Context, events []model.Event) error
}

// Config controls engine limits and fee policy.
type Config struct {
	Admin               model.Identity
	MaxBatchSize        int
	ProtocolFeeShareBps uint32
	DepositToleranceBps uint32
	MaxAmount           int64
	Oracle              oracle.GuardConfig
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithAuthorizer replaces the admin check.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) { e.auth = a }
}

// WithMetrics records engine activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPriceSources adds external price sources. Prices set through
// SetOraclePrice take precedence; external sources are combined by median.
func WithPriceSources(sources ...oracle.Source) Option {
	return func(e *Engine) { e.external = append(e.external, sources...) }
}

// WithEventSink sends committed events to sink.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// Engine is the single writer over the exchange state.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	state    *State
	store    storage.KV
	sink     EventSink
	auth     Authorizer
	clock    Clock
	external oracle.Median
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates an engine with empty state. store may be nil for an in-memory engine.
func New(cfg Config, store storage.KV, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.DepositToleranceBps == 0 {
		cfg.DepositToleranceBps = amm.DefaultDepositToleranceBps
	}
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = ledger.DefaultMaxAmount
	}

	e := &Engine{
		cfg:    cfg,
		state:  newState(cfg),
		store:  store,
		clock:  SystemClock{},
		logger: logger,
	}
	e.auth = adminAuthorizer{e: e}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type adminAuthorizer struct {
	e *Engine
}

// RequireAdmin accepts only the admin recorded in the committed state.
func (a adminAuthorizer) RequireAdmin(caller model.Identity) error {
	admin := a.e.state.Admin
	if caller == "" || admin == "" || caller != admin {
		return errorsmod.Wrapf(model.ErrUnauthorized, "%q is not admin", caller)
	}
	return nil
}

type hopFee struct {
	hop         model.SwapHop
	protocolFee int64
}

// txn is a working copy of the state plus what the call produced.
type txn struct {
	st     *State
	now    uint64
	before invariant.Totals
	minted map[model.Asset]int64
	events []model.Event
	hops   []hopFee
}

func (e *Engine) begin() *txn {
	st := e.state.Clone()
	return &txn{
		st:     st,
		now:    e.clock.Now(),
		before: measure(st),
		minted: make(map[model.Asset]int64),
	}
}

func (t *txn) emit(ev model.Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = t.now
	t.events = append(t.events, ev)
}

func (t *txn) mint(asset model.Asset, amount int64) {
	t.minted[asset] += amount
}

// verify runs the structural and conservation checks over the working copy.
func (e *Engine) verify(t *txn) error {
	entries := t.st.Ledger.Entries()
	pools := t.st.Pools.Pools()
	if err := invariant.CheckState(entries, pools); err != nil {
		return err
	}
	return invariant.CheckConservation(t.before, measure(t.st), t.minted)
}

// measure totals every asset held by identities, pools and pending commission.
func measure(st *State) invariant.Totals {
	totals := invariant.Measure(st.Ledger.Entries(), st.Pools.Pools())
	for _, recs := range st.Commissions {
		for _, rec := range recs {
			totals.Add(rec.Asset, rec.Amount)
		}
	}
	return totals
}

// commit verifies t, persists it and makes it the current state.
func (e *Engine) commit(ctx context.Context, t *txn) error {
	if err := e.verify(t); err != nil {
		return err
	}
	if err := e.persist(ctx, t.st); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	if clamps := t.st.Ledger.Clamps(); clamps != e.state.Ledger.Clamps() {
		e.logger.Warn("ledger saturation clamp", zap.Uint64("clamps", clamps))
	}
	e.state = t.st

	for _, h := range t.hops {
		e.metrics.ObserveSwap(h.hop, h.protocolFee)
	}
	e.metrics.SetPools(e.state.Pools.Pools())
	e.metrics.SetPaused(e.state.Paused)
	return nil
}

// run executes fn as one transaction.
func (e *Engine) run(ctx context.Context, op string, fn func(*txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.begin()
	err := fn(t)
	if err == nil {
		err = e.commit(ctx, t)
	}
	e.observe(op, err)
	if err != nil {
		return err
	}
	e.publish(ctx, t.events)
	return nil
}

func (e *Engine) observe(op string, err error) {
	e.metrics.ObserveOperation(op, err)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, model.ErrInvariantViolation):
		e.metrics.ObserveInvariantViolation()
		e.logger.Error("invariant violation, state rolled back", zap.String("op", op), zap.Error(err))
	case errors.Is(err, model.ErrRateLimitExceeded):
		e.logger.Debug("rate limited", zap.String("op", op), zap.Error(err))
	default:
		e.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
	}
}

// publish hands events to the sink. Sink failures do not undo the commit.
func (e *Engine) publish(ctx context.Context, events []model.Event) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	if err := e.sink.Emit(ctx, events); err != nil {
		e.logger.Warn("emit events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// Now returns the engine clock reading.
func (e *Engine) Now() uint64 {
	return e.clock.Now()
}

func (e *Engine) guard(st *State) *oracle.Guard {
	var src oracle.Source = st.Prices
	if len(e.external) > 0 {
		src = oracle.First{st.Prices, e.external}
	}
	return oracle.NewGuard(src, e.cfg.Oracle)
}
