package engine

import (
	"context"
	"fmt"

	"swapledger/internal/amm"
	"swapledger/internal/model"
)

// RegisterPool creates a pool funded from caller's balances. caller receives
// the initial LP tokens. Admin only.
func (e *Engine) RegisterPool(ctx context.Context, caller model.Identity, tokenA, tokenB model.Asset, initialA, initialB int64, feeBps uint32) (model.PoolID, int64, error) {
	var (
		id     model.PoolID
		minted int64
	)
	err := e.run(ctx, "register_pool", func(t *txn) error {
		if err := e.auth.RequireAdmin(caller); err != nil {
			return err
		}
		p, lp, err := t.st.Pools.Register(caller, tokenA, tokenB, initialA, initialB, feeBps)
		if err != nil {
			return err
		}
		if _, err := t.st.Ledger.Debit(caller, tokenA, initialA); err != nil {
			return err
		}
		if _, err := t.st.Ledger.Debit(caller, tokenB, initialB); err != nil {
			return err
		}
		id, minted = p.ID, lp
		t.emit(model.Event{
			Kind:      model.EventPoolRegistered,
			Identity:  caller,
			PoolID:    p.ID,
			AssetIn:   p.TokenA,
			AssetOut:  p.TokenB,
			AmountIn:  p.ReserveA,
			AmountOut: p.ReserveB,
			Detail:    fmt.Sprintf("fee_bps=%d lp=%d", feeBps, lp),
		})
		return nil
	})
	return id, minted, err
}

// AddLiquidity deposits amountA of the pool's TokenA and amountB of TokenB and
// returns the minted LP tokens.
func (e *Engine) AddLiquidity(ctx context.Context, caller model.Identity, poolID model.PoolID, amountA, amountB int64) (int64, error) {
	var minted int64
	err := e.run(ctx, "add_liquidity", func(t *txn) error {
		var err error
		minted, err = e.addLiquidity(t, caller, poolID, amountA, amountB)
		return err
	})
	return minted, err
}

func (e *Engine) addLiquidity(t *txn, caller model.Identity, poolID model.PoolID, amountA, amountB int64) (int64, error) {
	if err := t.requireTrading(caller); err != nil {
		return 0, err
	}
	if err := e.checkRate(t, caller, model.OpLiquidity); err != nil {
		return 0, err
	}
	p, err := t.st.Pools.Pool(poolID)
	if err != nil {
		return 0, err
	}
	if _, err := t.st.Ledger.Debit(caller, p.TokenA, amountA); err != nil {
		return 0, err
	}
	if _, err := t.st.Ledger.Debit(caller, p.TokenB, amountB); err != nil {
		return 0, err
	}
	minted, err := amm.AddLiquidity(p, caller, amountA, amountB, e.cfg.DepositToleranceBps)
	if err != nil {
		return 0, err
	}

	t.st.Limits.Record(caller, model.OpLiquidity, t.now)
	t.emit(model.Event{
		Kind:      model.EventLiquidityAdded,
		Identity:  caller,
		PoolID:    p.ID,
		AssetIn:   p.TokenA,
		AssetOut:  p.TokenB,
		AmountIn:  amountA,
		AmountOut: amountB,
		Detail:    fmt.Sprintf("lp=%d", minted),
	})
	return minted, nil
}

// RemoveLiquidity burns lp tokens of caller and returns the withdrawn amounts
// of TokenA and TokenB.
func (e *Engine) RemoveLiquidity(ctx context.Context, caller model.Identity, poolID model.PoolID, lp int64) (int64, int64, error) {
	var amountA, amountB int64
	err := e.run(ctx, "remove_liquidity", func(t *txn) error {
		var err error
		amountA, amountB, err = e.removeLiquidity(t, caller, poolID, lp)
		return err
	})
	return amountA, amountB, err
}

func (e *Engine) removeLiquidity(t *txn, caller model.Identity, poolID model.PoolID, lp int64) (int64, int64, error) {
	if err := t.requireTrading(caller); err != nil {
		return 0, 0, err
	}
	if err := e.checkRate(t, caller, model.OpLiquidity); err != nil {
		return 0, 0, err
	}
	p, err := t.st.Pools.Pool(poolID)
	if err != nil {
		return 0, 0, err
	}
	amountA, amountB, err := amm.RemoveLiquidity(p, caller, lp)
	if err != nil {
		return 0, 0, err
	}
	if amountA > 0 {
		if _, err := t.st.Ledger.Credit(caller, p.TokenA, amountA); err != nil {
			return 0, 0, err
		}
	}
	if amountB > 0 {
		if _, err := t.st.Ledger.Credit(caller, p.TokenB, amountB); err != nil {
			return 0, 0, err
		}
	}

	t.st.Limits.Record(caller, model.OpLiquidity, t.now)
	t.emit(model.Event{
		Kind:      model.EventLiquidityRemoved,
		Identity:  caller,
		PoolID:    p.ID,
		AssetIn:   p.TokenA,
		AssetOut:  p.TokenB,
		AmountIn:  amountA,
		AmountOut: amountB,
		Detail:    fmt.Sprintf("lp=%d", lp),
	})
	return amountA, amountB, nil
}
