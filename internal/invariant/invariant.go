// Package invariant verifies ledger and pool state without mutating it.
package invariant

import (
	"fmt"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"swapledger/internal/model"
	"swapledger/internal/safemath"
)

// Report collects the names of failed checks.
type Report struct {
	Failed []string
}

func (r *Report) fail(format string, args ...interface{}) {
	r.Failed = append(r.Failed, fmt.Sprintf(format, args...))
}

// Passed reports whether every check held.
func (r *Report) Passed() bool {
	return len(r.Failed) == 0
}

// Err returns nil or an ErrInvariantViolation naming the failed checks.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	return errorsmod.Wrapf(model.ErrInvariantViolation, "failed checks: %s", strings.Join(r.Failed, "; "))
}

// CheckPool verifies reserves, LP supply and positions of a pool.
func CheckPool(p *model.Pool) error {
	var r Report
	checkPool(&r, p)
	return r.Err()
}

func checkPool(r *Report, p *model.Pool) {
	if p.ReserveA < 0 || p.ReserveB < 0 {
		r.fail("pool %d neg_res %d/%d", p.ID, p.ReserveA, p.ReserveB)
	}
	if p.TotalLPTokens < 0 {
		r.fail("pool %d neg_lp %d", p.ID, p.TotalLPTokens)
	}
	if p.AccumulatedFeesA < 0 || p.AccumulatedFeesB < 0 {
		r.fail("pool %d neg_fee", p.ID)
	}
	if !(p.TokenA < p.TokenB) {
		r.fail("pool %d pair_order %s/%s", p.ID, p.TokenA, p.TokenB)
	}

	var issued int64
	for owner, pos := range p.Positions {
		if pos.LPTokens <= 0 {
			r.fail("pool %d lp_zero %s", p.ID, owner)
		}
		if pos.LPTokens > 0 && (pos.DepositedA <= 0 || pos.DepositedB <= 0) {
			r.fail("pool %d lp_deposit %s", p.ID, owner)
		}
		issued, _ = safemath.SaturatingAdd(issued, pos.LPTokens)
	}
	if issued != p.TotalLPTokens {
		r.fail("pool %d lp_tok issued %d supply %d", p.ID, issued, p.TotalLPTokens)
	}

	switch p.Status {
	case model.PoolEmpty:
		if p.ReserveA != 0 || p.ReserveB != 0 || p.TotalLPTokens != 0 {
			r.fail("pool %d status empty with liquidity", p.ID)
		}
	case model.PoolSeeded, model.PoolActive:
		if p.TotalLPTokens > 0 && (p.ReserveA == 0 || p.ReserveB == 0) {
			r.fail("pool %d one_sided %d/%d", p.ID, p.ReserveA, p.ReserveB)
		}
	default:
		r.fail("pool %d status %q", p.ID, p.Status)
	}
}

// CheckSwap verifies a single pool swap transition. The product of reserves
// never decreases and grows strictly when a fee was charged.
func CheckSwap(beforeIn, beforeOut, afterIn, afterOut, amountIn, amountOut, feeAmount int64) error {
	var r Report
	if afterIn < 0 || afterOut < 0 {
		r.fail("neg_res %d/%d", afterIn, afterOut)
	}
	if amountIn > 0 && amountOut <= 0 {
		r.fail("zero_out")
	}
	if feeAmount < 0 || feeAmount > amountIn {
		r.fail("fee_bounds %d of %d", feeAmount, amountIn)
	}
	kBefore := safemath.Product(beforeIn, beforeOut)
	kAfter := safemath.Product(afterIn, afterOut)
	if kAfter.Lt(kBefore) {
		r.fail("amm_k decreased %s -> %s", kBefore.Dec(), kAfter.Dec())
	}
	if feeAmount > 0 && !kAfter.Gt(kBefore) {
		r.fail("amm_k flat with fee %d", feeAmount)
	}
	return r.Err()
}

func checkBalances(r *Report, entries map[model.Identity]map[model.Asset]int64) {
	for id, assets := range entries {
		for asset, amount := range assets {
			if amount < 0 {
				r.fail("neg_bal %s %s %d", id, asset, amount)
			}
		}
	}
}

// CheckState runs every structural check over balances and pools.
func CheckState(entries map[model.Identity]map[model.Asset]int64, pools []*model.Pool) error {
	var r Report
	checkBalances(&r, entries)
	for _, p := range pools {
		checkPool(&r, p)
	}
	return r.Err()
}

// Totals is the amount of each asset held across balances, reserves and fees.
type Totals map[model.Asset]*uint256.Int

// Measure sums every holder of every asset.
func Measure(entries map[model.Identity]map[model.Asset]int64, pools []*model.Pool) Totals {
	t := make(Totals)
	for _, assets := range entries {
		for asset, amount := range assets {
			t.Add(asset, amount)
		}
	}
	for _, p := range pools {
		t.Add(p.TokenA, p.ReserveA)
		t.Add(p.TokenB, p.ReserveB)
		t.Add(p.TokenA, p.AccumulatedFeesA)
		t.Add(p.TokenB, p.AccumulatedFeesB)
	}
	return t
}

// Add counts a positive amount of asset.
func (t Totals) Add(asset model.Asset, amount int64) {
	if amount <= 0 {
		return
	}
	cur, ok := t[asset]
	if !ok {
		cur = new(uint256.Int)
		t[asset] = cur
	}
	cur.Add(cur, uint256.NewInt(uint64(amount)))
}

// Get returns the total of asset.
func (t Totals) Get(asset model.Asset) *uint256.Int {
	if v, ok := t[asset]; ok {
		return v
	}
	return new(uint256.Int)
}

// Record renders t as decimal strings for storage.
func (t Totals) Record() map[model.Asset]string {
	out := make(map[model.Asset]string, len(t))
	for asset, v := range t {
		if !v.IsZero() {
			out[asset] = v.Dec()
		}
	}
	return out
}

// CheckRecorded compares t with totals written earlier by Record.
func (t Totals) CheckRecorded(recorded map[model.Asset]string) error {
	var r Report
	assets := make(map[model.Asset]struct{}, len(t)+len(recorded))
	for asset := range t {
		assets[asset] = struct{}{}
	}
	for asset := range recorded {
		assets[asset] = struct{}{}
	}
	names := make([]model.Asset, 0, len(assets))
	for asset := range assets {
		names = append(names, asset)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, asset := range names {
		want := new(uint256.Int)
		if s, ok := recorded[asset]; ok {
			if err := want.SetFromDecimal(s); err != nil {
				r.fail("totals %s unreadable %q", asset, s)
				continue
			}
		}
		if !want.Eq(t.Get(asset)) {
			r.fail("totals %s recorded %s got %s", asset, want.Dec(), t.Get(asset).Dec())
		}
	}
	return r.Err()
}

// CheckConservation verifies after == before + minted for every asset.
// minted carries deposits as positive and withdrawals as negative values.
func CheckConservation(before, after Totals, minted map[model.Asset]int64) error {
	var r Report
	assets := make(map[model.Asset]struct{})
	for asset := range before {
		assets[asset] = struct{}{}
	}
	for asset := range after {
		assets[asset] = struct{}{}
	}
	for asset := range minted {
		assets[asset] = struct{}{}
	}
	names := make([]model.Asset, 0, len(assets))
	for asset := range assets {
		names = append(names, asset)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, asset := range names {
		expected := new(uint256.Int).Set(before.Get(asset))
		delta := minted[asset]
		switch {
		case delta > 0:
			expected.Add(expected, uint256.NewInt(uint64(delta)))
		case delta < 0:
			burn := uint256.NewInt(uint64(-delta))
			if expected.Lt(burn) {
				r.fail("conservation %s burns %d of %s", asset, -delta, expected.Dec())
				continue
			}
			expected.Sub(expected, burn)
		}
		if !expected.Eq(after.Get(asset)) {
			r.fail("conservation %s expected %s got %s", asset, expected.Dec(), after.Get(asset).Dec())
		}
	}
	return r.Err()
}
