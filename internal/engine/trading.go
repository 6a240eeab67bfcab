package engine

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"swapledger/internal/amm"
	"swapledger/internal/model"
	"swapledger/internal/ratelimit"
)

func (t *txn) requireUnfrozen(caller model.Identity) error {
	if caller == "" {
		return errorsmod.Wrap(model.ErrUnauthorized, "empty identity")
	}
	if t.st.Frozen[caller] {
		return errorsmod.Wrapf(model.ErrIdentityFrozen, "%s", caller)
	}
	return nil
}

// requireTrading fails while trading is paused or the caller is frozen.
func (t *txn) requireTrading(caller model.Identity) error {
	if t.st.Paused {
		return errorsmod.Wrap(model.ErrPaused, "trading halted by admin")
	}
	return t.requireUnfrozen(caller)
}

func (e *Engine) checkRate(t *txn, caller model.Identity, class model.OpClass) error {
	if err := t.st.Limits.Check(caller, t.st.Tier(caller), class, t.now); err != nil {
		e.metrics.ObserveRateLimited(class)
		return err
	}
	return nil
}

func (t *txn) discount(caller model.Identity) uint32 {
	return ratelimit.TierLimits(t.st.Tier(caller)).FeeDiscountBps
}

// Deposit credits amount of asset to caller and returns the new balance.
func (e *Engine) Deposit(ctx context.Context, caller model.Identity, asset model.Asset, amount int64) (int64, error) {
	var balance int64
	err := e.run(ctx, "deposit", func(t *txn) error {
		if err := t.requireUnfrozen(caller); err != nil {
			return err
		}
		if asset == "" {
			return errorsmod.Wrap(model.ErrInvalidPair, "empty asset")
		}
		if amount <= 0 {
			return errorsmod.Wrapf(model.ErrInvalidAmount, "deposit %d %s", amount, asset)
		}
		var err error
		if balance, err = t.st.Ledger.Credit(caller, asset, amount); err != nil {
			return err
		}
		t.mint(asset, amount)
		t.emit(model.Event{Kind: model.EventDeposit, Identity: caller, AssetIn: asset, AmountIn: amount})
		return nil
	})
	return balance, err
}

// Withdraw debits amount of asset from caller and returns the new balance.
func (e *Engine) Withdraw(ctx context.Context, caller model.Identity, asset model.Asset, amount int64) (int64, error) {
	var balance int64
	err := e.run(ctx, "withdraw", func(t *txn) error {
		if err := t.requireUnfrozen(caller); err != nil {
			return err
		}
		if amount <= 0 {
			return errorsmod.Wrapf(model.ErrInvalidAmount, "withdraw %d %s", amount, asset)
		}
		var err error
		if balance, err = t.st.Ledger.Debit(caller, asset, amount); err != nil {
			return err
		}
		t.mint(asset, -amount)
		t.emit(model.Event{Kind: model.EventWithdraw, Identity: caller, AssetOut: asset, AmountOut: amount})
		return nil
	})
	return balance, err
}

// Swap sells amountIn of tokenIn for tokenOut through their direct pool.
func (e *Engine) Swap(ctx context.Context, caller model.Identity, tokenIn, tokenOut model.Asset, amountIn, minOut int64) (model.SwapResult, error) {
	var res model.SwapResult
	err := e.run(ctx, "swap", func(t *txn) error {
		var err error
		res, err = e.swap(t, caller, tokenIn, tokenOut, amountIn, minOut)
		return err
	})
	return res, err
}

func (e *Engine) swap(t *txn, caller model.Identity, tokenIn, tokenOut model.Asset, amountIn, minOut int64) (model.SwapResult, error) {
	if err := t.requireTrading(caller); err != nil {
		return model.SwapResult{}, err
	}
	if err := e.checkRate(t, caller, model.OpSwap); err != nil {
		return model.SwapResult{}, err
	}
	if tokenIn == tokenOut {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrInvalidPair, "%s to itself", tokenIn)
	}
	p, ok := t.st.Pools.Lookup(tokenIn, tokenOut)
	if !ok {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrPoolNotFound, "no pool for %s", model.NormalizePair(tokenIn, tokenOut))
	}
	discount := t.discount(caller)

	q, err := amm.QuoteSwap(p, tokenIn, amountIn, discount)
	if err != nil {
		return model.SwapResult{}, err
	}
	if err := e.guard(t.st).Check(tokenIn, tokenOut, amountIn, q.AmountOut, t.now); err != nil {
		return model.SwapResult{}, err
	}

	if _, err := t.st.Ledger.Debit(caller, tokenIn, amountIn); err != nil {
		return model.SwapResult{}, err
	}
	if q, err = amm.Swap(p, tokenIn, amountIn, minOut, discount); err != nil {
		return model.SwapResult{}, err
	}
	if _, err := t.st.Ledger.Credit(caller, tokenOut, q.AmountOut); err != nil {
		return model.SwapResult{}, err
	}
	protocolFee, err := amm.CollectProtocolFee(p, tokenIn, q.FeeAmount, e.cfg.ProtocolFeeShareBps)
	if err != nil {
		return model.SwapResult{}, err
	}
	if _, err := t.distributeCommission(p, caller, tokenIn, protocolFee); err != nil {
		return model.SwapResult{}, err
	}

	hop := q.Hop()
	t.hops = append(t.hops, hopFee{hop: hop, protocolFee: protocolFee})
	t.st.Limits.Record(caller, model.OpSwap, t.now)
	t.st.addVolume(caller, amountIn)
	t.emit(model.Event{
		Kind:      model.EventSwap,
		Identity:  caller,
		PoolID:    p.ID,
		AssetIn:   tokenIn,
		AssetOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: q.AmountOut,
		Detail:    fmt.Sprintf("fee=%d protocol_fee=%d impact_bps=%d", q.FeeAmount, protocolFee, q.PriceImpactBps),
	})
	return model.SwapResult{
		Hops:        []model.SwapHop{hop},
		AmountIn:    amountIn,
		AmountOut:   q.AmountOut,
		ProtocolFee: protocolFee,
	}, nil
}

// FindBestRoute quotes the best direct or two-hop route at caller's tier discount.
func (e *Engine) FindBestRoute(caller model.Identity, tokenIn, tokenOut model.Asset, amountIn int64) (model.Route, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	discount := ratelimit.TierLimits(e.state.Tier(caller)).FeeDiscountBps
	return e.state.Pools.FindBestRoute(tokenIn, tokenOut, amountIn, discount)
}

// ExecuteMultihopSwap swaps along route. All hops apply or none do; minOut
// bounds the final output only.
func (e *Engine) ExecuteMultihopSwap(ctx context.Context, caller model.Identity, route model.Route, amountIn, minOut int64) (model.SwapResult, error) {
	var res model.SwapResult
	err := e.run(ctx, "multihop_swap", func(t *txn) error {
		var err error
		res, err = e.multihop(t, caller, route, amountIn, minOut)
		return err
	})
	return res, err
}

func (e *Engine) multihop(t *txn, caller model.Identity, route model.Route, amountIn, minOut int64) (model.SwapResult, error) {
	if err := t.requireTrading(caller); err != nil {
		return model.SwapResult{}, err
	}
	if err := e.checkRate(t, caller, model.OpSwap); err != nil {
		return model.SwapResult{}, err
	}
	if len(route.Path) < 2 {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrNoRouteFound, "path of %d tokens", len(route.Path))
	}
	tokenIn, tokenOut := route.Path[0], route.Path[len(route.Path)-1]
	if tokenIn == tokenOut {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrInvalidPair, "%s to itself", tokenIn)
	}

	if _, err := t.st.Ledger.Debit(caller, tokenIn, amountIn); err != nil {
		return model.SwapResult{}, err
	}
	res, err := t.st.Pools.ExecuteMultihop(route, amountIn, minOut, t.discount(caller))
	if err != nil {
		return model.SwapResult{}, err
	}

	guard := e.guard(t.st)
	for i, hop := range res.Hops {
		if err := guard.Check(hop.TokenIn, hop.TokenOut, hop.AmountIn, hop.AmountOut, t.now); err != nil {
			return model.SwapResult{}, errorsmod.Wrapf(err, "hop %d", i)
		}
	}
	for _, hop := range res.Hops {
		p, err := t.st.Pools.Pool(hop.PoolID)
		if err != nil {
			return model.SwapResult{}, err
		}
		fee, err := amm.CollectProtocolFee(p, hop.TokenIn, hop.FeeAmount, e.cfg.ProtocolFeeShareBps)
		if err != nil {
			return model.SwapResult{}, err
		}
		if _, err := t.distributeCommission(p, caller, hop.TokenIn, fee); err != nil {
			return model.SwapResult{}, err
		}
		res.ProtocolFee += fee
		t.hops = append(t.hops, hopFee{hop: hop, protocolFee: fee})
	}
	if _, err := t.st.Ledger.Credit(caller, tokenOut, res.AmountOut); err != nil {
		return model.SwapResult{}, err
	}

	t.st.Limits.Record(caller, model.OpSwap, t.now)
	t.st.addVolume(caller, amountIn)
	t.emit(model.Event{
		Kind:      model.EventSwap,
		Identity:  caller,
		PoolID:    route.Pools[0],
		AssetIn:   tokenIn,
		AssetOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: res.AmountOut,
		Detail:    fmt.Sprintf("hops=%d protocol_fee=%d", len(res.Hops), res.ProtocolFee),
	})
	return res, nil
}
