// Package ledger keeps per-identity asset balances.
package ledger

import (
	errorsmod "cosmossdk.io/errors"

	"swapledger/internal/model"
	"swapledger/internal/safemath"
)

// DefaultMaxAmount bounds a single credit.
const DefaultMaxAmount int64 = 1_000_000_000_000_000_000

// Ledger owns the balances of every identity.
type Ledger struct {
	balances  map[model.Identity]map[model.Asset]int64
	maxAmount int64
	clamps    uint64
}

// New creates an empty ledger. A non-positive maxAmount selects DefaultMaxAmount.
func New(maxAmount int64) *Ledger {
	if maxAmount <= 0 {
		maxAmount = DefaultMaxAmount
	}
	return &Ledger{
		balances:  make(map[model.Identity]map[model.Asset]int64),
		maxAmount: maxAmount,
	}
}

// Balance returns the current balance.
func (l *Ledger) Balance(id model.Identity, asset model.Asset) int64 {
	return l.balances[id][asset]
}

// Debit removes amount from the balance and returns the new balance.
func (l *Ledger) Debit(id model.Identity, asset model.Asset, amount int64) (int64, error) {
	if amount < 0 {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "debit %d %s", amount, asset)
	}
	current := l.Balance(id, asset)
	if current < amount {
		return 0, errorsmod.Wrapf(model.ErrInsufficientBalance, "%s holds %d %s, needs %d", id, current, asset, amount)
	}
	next, clamped := safemath.SaturatingSub(current, amount)
	if clamped {
		l.clamps++
	}
	l.set(id, asset, next)
	return next, nil
}

// Credit adds amount to the balance and returns the new balance.
func (l *Ledger) Credit(id model.Identity, asset model.Asset, amount int64) (int64, error) {
	if amount < 0 {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "credit %d %s", amount, asset)
	}
	if amount > l.maxAmount {
		return 0, errorsmod.Wrapf(model.ErrAmountTooLarge, "credit %d %s exceeds %d", amount, asset, l.maxAmount)
	}
	next, clamped := safemath.SaturatingAdd(l.Balance(id, asset), amount)
	if clamped {
		l.clamps++
	}
	l.set(id, asset, next)
	return next, nil
}

// Clamps returns how many times saturation fired.
func (l *Ledger) Clamps() uint64 {
	return l.clamps
}

// Total sums every identity's balance of asset.
func (l *Ledger) Total(asset model.Asset) int64 {
	var total int64
	for _, assets := range l.balances {
		total, _ = safemath.SaturatingAdd(total, assets[asset])
	}
	return total
}

// Entries returns a copy of all balances.
func (l *Ledger) Entries() map[model.Identity]map[model.Asset]int64 {
	out := make(map[model.Identity]map[model.Asset]int64, len(l.balances))
	for id, assets := range l.balances {
		dup := make(map[model.Asset]int64, len(assets))
		for asset, amount := range assets {
			dup[asset] = amount
		}
		out[id] = dup
	}
	return out
}

// Restore replaces the balances with entries.
func (l *Ledger) Restore(entries map[model.Identity]map[model.Asset]int64) {
	l.balances = make(map[model.Identity]map[model.Asset]int64, len(entries))
	for id, assets := range entries {
		for asset, amount := range assets {
			l.set(id, asset, amount)
		}
	}
}

// Clone returns an independent copy.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		balances:  l.Entries(),
		maxAmount: l.maxAmount,
		clamps:    l.clamps,
	}
}

func (l *Ledger) set(id model.Identity, asset model.Asset, amount int64) {
	assets := l.balances[id]
	if assets == nil {
		assets = make(map[model.Asset]int64)
		l.balances[id] = assets
	}
	if amount == 0 {
		delete(assets, asset)
		if len(assets) == 0 {
			delete(l.balances, id)
		}
		return
	}
	assets[asset] = amount
}
