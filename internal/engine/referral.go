package engine

import (
	"context"
	"sort"

	errorsmod "cosmossdk.io/errors"

	"swapledger/internal/amm"
	"swapledger/internal/model"
	"swapledger/internal/safemath"
)

// RegisterReferral records referrer as the one who brought caller in. An
// identity is referred once; self-referral and cycles are rejected.
func (e *Engine) RegisterReferral(ctx context.Context, caller, referrer model.Identity) error {
	return e.run(ctx, "register_referral", func(t *txn) error {
		if err := t.requireUnfrozen(caller); err != nil {
			return err
		}
		if referrer == "" || referrer == caller {
			return errorsmod.Wrapf(model.ErrInvalidReferral, "%s cannot refer %s", referrer, caller)
		}
		if prev, ok := t.st.Referrers[caller]; ok {
			return errorsmod.Wrapf(model.ErrInvalidReferral, "%s already referred by %s", caller, prev)
		}
		for up, ok := referrer, true; ok; up, ok = t.st.Referrers[up] {
			if up == caller {
				return errorsmod.Wrapf(model.ErrInvalidReferral, "%s is upstream of %s", caller, referrer)
			}
		}
		t.st.Referrers[caller] = referrer
		t.emit(model.Event{Kind: model.EventReferralRegistered, Identity: caller, Detail: "referrer=" + string(referrer)})
		return nil
	})
}

// distributeCommission moves part of a swap's protocol fee to the referral
// chain of trader as pending commission and returns the total moved.
func (t *txn) distributeCommission(p *model.Pool, trader model.Identity, asset model.Asset, protocolFee int64) (int64, error) {
	if protocolFee <= 0 {
		return 0, nil
	}
	var total int64
	up, ok := t.st.Referrers[trader]
	for level := 0; ok && level < len(model.CommissionRates); level++ {
		amount, err := safemath.MulDiv(protocolFee, model.CommissionRates[level], 100)
		if err != nil {
			return 0, err
		}
		if amount > 0 {
			if err := amm.TakeProtocolFee(p, asset, amount); err != nil {
				return 0, err
			}
			t.st.Commissions[up] = append(t.st.Commissions[up], model.CommissionRecord{
				Asset:       asset,
				Amount:      amount,
				EarnedAt:    t.now,
				ClaimableAt: t.now + model.CommissionHoldSeconds,
				Source:      trader,
				Level:       level + 1,
			})
			total += amount
		}
		up, ok = t.st.Referrers[up]
	}
	return total, nil
}

// ClaimCommission credits every matured commission record of caller to their
// balance. Claims are limited to one per CommissionClaimInterval.
func (e *Engine) ClaimCommission(ctx context.Context, caller model.Identity) (map[model.Asset]int64, error) {
	claimed := make(map[model.Asset]int64)
	err := e.run(ctx, "claim_commission", func(t *txn) error {
		if err := t.requireUnfrozen(caller); err != nil {
			return err
		}
		if last, ok := t.st.LastClaims[caller]; ok && t.now < last+model.CommissionClaimInterval {
			return errorsmod.Wrapf(model.ErrRateLimitExceeded, "next claim at %d", last+model.CommissionClaimInterval)
		}

		var pending []model.CommissionRecord
		for _, rec := range t.st.Commissions[caller] {
			if t.now < rec.ClaimableAt {
				pending = append(pending, rec)
				continue
			}
			sum, err := safemath.CheckedAdd(claimed[rec.Asset], rec.Amount)
			if err != nil {
				return err
			}
			claimed[rec.Asset] = sum
		}
		if len(claimed) == 0 {
			return errorsmod.Wrapf(model.ErrInvalidAmount, "%s has no claimable commission", caller)
		}

		assets := make([]model.Asset, 0, len(claimed))
		for asset := range claimed {
			assets = append(assets, asset)
		}
		sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
		for _, asset := range assets {
			if _, err := t.st.Ledger.Credit(caller, asset, claimed[asset]); err != nil {
				return err
			}
			t.emit(model.Event{Kind: model.EventCommissionClaimed, Identity: caller, AssetOut: asset, AmountOut: claimed[asset]})
		}
		if len(pending) == 0 {
			delete(t.st.Commissions, caller)
		} else {
			t.st.Commissions[caller] = pending
		}
		t.st.LastClaims[caller] = t.now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Referrer returns who referred id.
func (e *Engine) Referrer(id model.Identity) (model.Identity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref, ok := e.state.Referrers[id]
	return ref, ok
}

// PendingCommission returns the commission records id has not claimed yet.
func (e *Engine) PendingCommission(id model.Identity) []model.CommissionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.CommissionRecord(nil), e.state.Commissions[id]...)
}

// ReferralState is the referral part of the snapshot.
type ReferralState struct {
	Referrers   map[model.Identity]model.Identity           `json:"referrers"`
	Commissions map[model.Identity][]model.CommissionRecord `json:"commissions"`
	LastClaims  map[model.Identity]uint64                   `json:"last_claims"`
}

func referralsOf(st *State) ReferralState {
	out := ReferralState{
		Referrers:   make(map[model.Identity]model.Identity, len(st.Referrers)),
		Commissions: make(map[model.Identity][]model.CommissionRecord, len(st.Commissions)),
		LastClaims:  make(map[model.Identity]uint64, len(st.LastClaims)),
	}
	for id, ref := range st.Referrers {
		out.Referrers[id] = ref
	}
	for id, recs := range st.Commissions {
		out.Commissions[id] = append([]model.CommissionRecord(nil), recs...)
	}
	for id, ts := range st.LastClaims {
		out.LastClaims[id] = ts
	}
	return out
}

func (r ReferralState) restoreInto(st *State) error {
	for id, ref := range r.Referrers {
		if id == ref {
			return errorsmod.Wrapf(model.ErrInvariantViolation, "referral of %s to itself", id)
		}
		st.Referrers[id] = ref
	}
	for id, recs := range r.Commissions {
		for _, rec := range recs {
			if rec.Amount <= 0 || rec.Asset == "" {
				return errorsmod.Wrapf(model.ErrInvariantViolation, "commission of %s: %d %q", id, rec.Amount, rec.Asset)
			}
		}
		st.Commissions[id] = append([]model.CommissionRecord(nil), recs...)
	}
	for id, ts := range r.LastClaims {
		st.LastClaims[id] = ts
	}
	return nil
}
