package engine

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapledger/internal/model"
)

// admin runs fn as a transaction after the authorizer accepts caller.
func (e *Engine) admin(ctx context.Context, op string, caller model.Identity, fn func(*txn) error) error {
	err := e.run(ctx, op, func(t *txn) error {
		if err := e.auth.RequireAdmin(caller); err != nil {
			return err
		}
		return fn(t)
	})
	if err == nil {
		e.logger.Info("admin operation", zap.String("op", op), zap.String("caller", string(caller)))
	}
	return err
}

// Pause halts swaps, liquidity changes and batches. Deposits and withdrawals continue.
func (e *Engine) Pause(ctx context.Context, caller model.Identity) error {
	return e.admin(ctx, "pause", caller, func(t *txn) error {
		t.st.Paused = true
		t.emit(model.Event{Kind: model.EventPaused, Identity: caller})
		return nil
	})
}

func (e *Engine) Unpause(ctx context.Context, caller model.Identity) error {
	return e.admin(ctx, "unpause", caller, func(t *txn) error {
		t.st.Paused = false
		t.emit(model.Event{Kind: model.EventUnpaused, Identity: caller})
		return nil
	})
}

// FreezeIdentity blocks every mutating call of target.
func (e *Engine) FreezeIdentity(ctx context.Context, caller, target model.Identity) error {
	return e.admin(ctx, "freeze_identity", caller, func(t *txn) error {
		if target == "" {
			return errorsmod.Wrap(model.ErrInvalidAmount, "empty identity")
		}
		t.st.Frozen[target] = true
		t.emit(model.Event{Kind: model.EventIdentityFrozen, Identity: target, Detail: "by=" + string(caller)})
		return nil
	})
}

func (e *Engine) UnfreezeIdentity(ctx context.Context, caller, target model.Identity) error {
	return e.admin(ctx, "unfreeze_identity", caller, func(t *txn) error {
		delete(t.st.Frozen, target)
		t.emit(model.Event{Kind: model.EventIdentityUnfrozen, Identity: target, Detail: "by=" + string(caller)})
		return nil
	})
}

// SetAdmin hands the admin role to next.
func (e *Engine) SetAdmin(ctx context.Context, caller, next model.Identity) error {
	return e.admin(ctx, "set_admin", caller, func(t *txn) error {
		if next == "" {
			return errorsmod.Wrap(model.ErrInvalidAmount, "empty admin identity")
		}
		t.st.Admin = next
		t.emit(model.Event{Kind: model.EventAdminChanged, Identity: next, Detail: "previous=" + string(caller)})
		return nil
	})
}

// SetTier changes the rate limits and fee discount of target.
func (e *Engine) SetTier(ctx context.Context, caller, target model.Identity, tier model.Tier) error {
	return e.admin(ctx, "set_tier", caller, func(t *txn) error {
		if _, ok := model.ParseTier(string(tier)); !ok {
			return errorsmod.Wrapf(model.ErrInvalidAmount, "unknown tier %q", tier)
		}
		if target == "" {
			return errorsmod.Wrap(model.ErrInvalidAmount, "empty identity")
		}
		previous := t.st.Tier(target)
		if tier == model.TierBasic {
			delete(t.st.Tiers, target)
		} else {
			t.st.Tiers[target] = tier
		}
		t.emit(model.Event{
			Kind:     model.EventTierChanged,
			Identity: target,
			Detail:   fmt.Sprintf("from=%s to=%s", previous, tier),
		})
		return nil
	})
}

// WithdrawProtocolFees moves the pool's accumulated protocol fees to the
// balance of to and returns the amounts of TokenA and TokenB.
func (e *Engine) WithdrawProtocolFees(ctx context.Context, caller model.Identity, poolID model.PoolID, to model.Identity) (int64, int64, error) {
	var amountA, amountB int64
	err := e.admin(ctx, "withdraw_protocol_fees", caller, func(t *txn) error {
		if to == "" {
			return errorsmod.Wrap(model.ErrInvalidAmount, "empty recipient")
		}
		p, err := t.st.Pools.Pool(poolID)
		if err != nil {
			return err
		}
		amountA, amountB = p.AccumulatedFeesA, p.AccumulatedFeesB
		if amountA == 0 && amountB == 0 {
			return errorsmod.Wrapf(model.ErrInvalidAmount, "pool %d has no protocol fees", poolID)
		}
		if amountA > 0 {
			if _, err := t.st.Ledger.Credit(to, p.TokenA, amountA); err != nil {
				return err
			}
		}
		if amountB > 0 {
			if _, err := t.st.Ledger.Credit(to, p.TokenB, amountB); err != nil {
				return err
			}
		}
		p.AccumulatedFeesA, p.AccumulatedFeesB = 0, 0
		t.emit(model.Event{
			Kind:      model.EventProtocolFeeWithdrawn,
			Identity:  to,
			PoolID:    poolID,
			AssetIn:   p.TokenA,
			AssetOut:  p.TokenB,
			AmountIn:  amountA,
			AmountOut: amountB,
		})
		return nil
	})
	return amountA, amountB, err
}

// SetOraclePrice stores the price of base in units of quote, stamped with the engine clock.
func (e *Engine) SetOraclePrice(ctx context.Context, caller model.Identity, base, quote model.Asset, price decimal.Decimal) error {
	return e.admin(ctx, "set_oracle_price", caller, func(t *txn) error {
		if err := t.st.Prices.Set(base, quote, price, t.now); err != nil {
			return err
		}
		t.emit(model.Event{
			Kind:     model.EventOraclePriceSet,
			Identity: caller,
			AssetIn:  base,
			AssetOut: quote,
			Detail:   "price=" + price.String(),
		})
		return nil
	})
}
