// Package oracle validates pool swaps against external prices.
package oracle

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
	"github.com/shopspring/decimal"

	"swapledger/internal/model"
)

const (
	// StalenessThreshold is the maximum age of a usable price.
	StalenessThreshold uint64 = 600
	// DefaultMaxDeviationBps bounds how far a pool output may fall below the oracle output.
	DefaultMaxDeviationBps uint32 = 500
)

// Quote is the price of one unit of the input asset in units of the output asset.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp uint64          `json:"timestamp"`
}

// Source returns prices for an ordered pair. Missing prices fail with ErrPriceNotSet.
type Source interface {
	Price(in, out model.Asset) (Quote, error)
}

// TimedSource serves only prices that are usable at now. Sources that combine
// several feeds implement it so a stale feed does not hide a fresh one.
type TimedSource interface {
	PriceAt(in, out model.Asset, now uint64) (Quote, error)
}

// PriceAt returns a price from src that passes Validate at now.
func PriceAt(src Source, in, out model.Asset, now uint64) (Quote, error) {
	if ts, ok := src.(TimedSource); ok {
		return ts.PriceAt(in, out, now)
	}
	q, err := src.Price(in, out)
	if err != nil {
		return Quote{}, err
	}
	if err := Validate(q, now); err != nil {
		return Quote{}, errorsmod.Wrapf(err, "%s/%s", in, out)
	}
	return q, nil
}

// Validate checks that q is positive and not stale at now.
func Validate(q Quote, now uint64) error {
	if !q.Price.IsPositive() {
		return errorsmod.Wrapf(model.ErrInvalidPrice, "price %s", q.Price)
	}
	if q.Timestamp > now {
		return errorsmod.Wrapf(model.ErrInvalidPrice, "price from the future: %d > %d", q.Timestamp, now)
	}
	if now-q.Timestamp > StalenessThreshold {
		return errorsmod.Wrapf(model.ErrStalePrice, "price age %ds exceeds %ds", now-q.Timestamp, StalenessThreshold)
	}
	return nil
}

// GuardConfig configures which pairs need an oracle check.
type GuardConfig struct {
	Pairs           []model.PairKey
	MaxDeviationBps uint32
	// AllowFallback prices unset pairs at 1:1. Sandbox use only.
	AllowFallback bool
}

// Guard rejects swaps on guarded pairs whose output falls too far below the oracle price.
type Guard struct {
	source          Source
	pairs           map[model.PairKey]struct{}
	maxDeviationBps uint32
	allowFallback   bool
}

func NewGuard(source Source, cfg GuardConfig) *Guard {
	if cfg.MaxDeviationBps == 0 || cfg.MaxDeviationBps > 10_000 {
		cfg.MaxDeviationBps = DefaultMaxDeviationBps
	}
	pairs := make(map[model.PairKey]struct{}, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pairs[model.NormalizePair(p.A, p.B)] = struct{}{}
	}
	return &Guard{
		source:          source,
		pairs:           pairs,
		maxDeviationBps: cfg.MaxDeviationBps,
		allowFallback:   cfg.AllowFallback,
	}
}

// Guarded reports whether swaps between in and out require a price.
func (g *Guard) Guarded(in, out model.Asset) bool {
	if g == nil {
		return false
	}
	_, ok := g.pairs[model.NormalizePair(in, out)]
	return ok
}

// Check validates a pool output of amountOut for amountIn of in against the oracle.
func (g *Guard) Check(in, out model.Asset, amountIn, amountOut int64, now uint64) error {
	if !g.Guarded(in, out) {
		return nil
	}
	q, err := g.quote(in, out, now)
	if err != nil {
		return err
	}

	oracleOut := decimal.NewFromInt(amountIn).Mul(q.Price).Floor()
	floor := oracleOut.Mul(decimal.NewFromInt(int64(10_000 - g.maxDeviationBps))).Div(decimal.NewFromInt(10_000)).Floor()
	if decimal.NewFromInt(amountOut).LessThan(floor) {
		return errorsmod.Wrapf(model.ErrSlippageExceeded, "pool output %d below oracle floor %s for %d %s", amountOut, floor, amountIn, in)
	}
	return nil
}

func (g *Guard) quote(in, out model.Asset, now uint64) (Quote, error) {
	if g.source == nil {
		if g.allowFallback {
			return Quote{Price: decimal.NewFromInt(1), Timestamp: now}, nil
		}
		return Quote{}, errorsmod.Wrapf(model.ErrPriceNotSet, "no oracle for %s/%s", in, out)
	}
	q, err := PriceAt(g.source, in, out, now)
	if err != nil {
		if g.allowFallback && errors.Is(err, model.ErrPriceNotSet) {
			return Quote{Price: decimal.NewFromInt(1), Timestamp: now}, nil
		}
		return Quote{}, err
	}
	return q, nil
}
