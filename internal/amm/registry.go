package amm

import (
	errorsmod "cosmossdk.io/errors"

	"swapledger/internal/model"
)

// Registry indexes pools by id and by normalized pair.
type Registry struct {
	pools  map[model.PoolID]*model.Pool
	pairs  map[model.PairKey]model.PoolID
	order  []model.PoolID
	nextID model.PoolID
}

// NewRegistry creates an empty registry. Pool ids start at 1.
func NewRegistry() *Registry {
	return &Registry{
		pools:  make(map[model.PoolID]*model.Pool),
		pairs:  make(map[model.PairKey]model.PoolID),
		nextID: 1,
	}
}

// Register creates a seeded pool for the pair and credits creator with the
// initial LP tokens. initialA and initialB follow the tokenA, tokenB argument order.
func (r *Registry) Register(creator model.Identity, tokenA, tokenB model.Asset, initialA, initialB int64, feeBps uint32) (*model.Pool, int64, error) {
	if !model.ValidFeeTier(feeBps) {
		return nil, 0, errorsmod.Wrapf(model.ErrInvalidFeeTier, "fee %d bps not in %v", feeBps, model.FeeTiers)
	}
	if tokenA == "" || tokenB == "" || tokenA == tokenB {
		return nil, 0, errorsmod.Wrapf(model.ErrInvalidPair, "%q/%q", tokenA, tokenB)
	}
	if initialA <= 0 || initialB <= 0 {
		return nil, 0, errorsmod.Wrapf(model.ErrInvalidAmount, "initial liquidity %d/%d", initialA, initialB)
	}
	key := model.NormalizePair(tokenA, tokenB)
	if id, ok := r.pairs[key]; ok {
		return nil, 0, errorsmod.Wrapf(model.ErrPoolAlreadyExists, "%s is pool %d", key, id)
	}

	reserveA, reserveB := initialA, initialB
	if tokenA != key.A {
		reserveA, reserveB = initialB, initialA
	}
	p := &model.Pool{
		ID:        r.nextID,
		TokenA:    key.A,
		TokenB:    key.B,
		FeeBps:    feeBps,
		Status:    model.PoolEmpty,
		Positions: make(map[model.Identity]*model.LPPosition),
	}
	minted, err := AddLiquidity(p, creator, reserveA, reserveB, DefaultDepositToleranceBps)
	if err != nil {
		return nil, 0, err
	}

	r.pools[p.ID] = p
	r.pairs[key] = p.ID
	r.order = append(r.order, p.ID)
	r.nextID++
	return p, minted, nil
}

// Pool returns the pool with id.
func (r *Registry) Pool(id model.PoolID) (*model.Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return nil, errorsmod.Wrapf(model.ErrPoolNotFound, "pool %d", id)
	}
	return p, nil
}

// Lookup finds the pool for a pair in either order.
func (r *Registry) Lookup(x, y model.Asset) (*model.Pool, bool) {
	id, ok := r.pairs[model.NormalizePair(x, y)]
	if !ok {
		return nil, false
	}
	return r.pools[id], true
}

// Pools returns pools in registration order.
func (r *Registry) Pools() []*model.Pool {
	out := make([]*model.Pool, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.pools[id])
	}
	return out
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Clone returns a deep copy of the registry and its pools.
func (r *Registry) Clone() *Registry {
	cp := &Registry{
		pools:  make(map[model.PoolID]*model.Pool, len(r.pools)),
		pairs:  make(map[model.PairKey]model.PoolID, len(r.pairs)),
		order:  append([]model.PoolID(nil), r.order...),
		nextID: r.nextID,
	}
	for id, p := range r.pools {
		cp.pools[id] = p.Clone()
	}
	for key, id := range r.pairs {
		cp.pairs[key] = id
	}
	return cp
}

// Restore rebuilds a registry from pools listed in registration order.
func Restore(pools []*model.Pool) (*Registry, error) {
	r := NewRegistry()
	for _, p := range pools {
		key := p.Pair()
		if _, ok := r.pairs[key]; ok {
			return nil, errorsmod.Wrapf(model.ErrPoolAlreadyExists, "%s restored twice", key)
		}
		if _, ok := r.pools[p.ID]; ok {
			return nil, errorsmod.Wrapf(model.ErrPoolAlreadyExists, "pool id %d restored twice", p.ID)
		}
		cp := p.Clone()
		r.pools[cp.ID] = cp
		r.pairs[key] = cp.ID
		r.order = append(r.order, cp.ID)
		if cp.ID >= r.nextID {
			r.nextID = cp.ID + 1
		}
	}
	return r, nil
}

// FindBestRoute returns the direct route when a usable direct pool exists,
// otherwise the two-hop route with the largest output. Ties go to the lower
// combined fee, then to the earlier registered first pool.
func (r *Registry) FindBestRoute(tokenIn, tokenOut model.Asset, amountIn int64, discountBps uint32) (model.Route, error) {
	if tokenIn == tokenOut {
		return model.Route{}, errorsmod.Wrapf(model.ErrInvalidPair, "%s to itself", tokenIn)
	}
	if amountIn <= 0 {
		return model.Route{}, errorsmod.Wrapf(model.ErrInvalidAmount, "route amount %d", amountIn)
	}

	if direct, ok := r.Lookup(tokenIn, tokenOut); ok {
		if q, err := QuoteSwap(direct, tokenIn, amountIn, discountBps); err == nil {
			return model.Route{
				Pools:          []model.PoolID{direct.ID},
				Path:           []model.Asset{tokenIn, tokenOut},
				AmountIn:       amountIn,
				ExpectedOut:    q.AmountOut,
				TotalFeeBps:    direct.FeeBps,
				PriceImpactBps: q.PriceImpactBps,
			}, nil
		}
	}

	var best model.Route
	found := false
	for _, id := range r.order {
		first := r.pools[id]
		mid, ok := first.Other(tokenIn)
		if !ok || mid == tokenOut {
			continue
		}
		second, ok := r.Lookup(mid, tokenOut)
		if !ok {
			continue
		}
		q1, err := QuoteSwap(first, tokenIn, amountIn, discountBps)
		if err != nil {
			continue
		}
		q2, err := QuoteSwap(second, mid, q1.AmountOut, discountBps)
		if err != nil {
			continue
		}
		fee := first.FeeBps + second.FeeBps
		if found && (q2.AmountOut < best.ExpectedOut || (q2.AmountOut == best.ExpectedOut && fee >= best.TotalFeeBps)) {
			continue
		}
		best = model.Route{
			Pools:          []model.PoolID{first.ID, second.ID},
			Path:           []model.Asset{tokenIn, mid, tokenOut},
			AmountIn:       amountIn,
			ExpectedOut:    q2.AmountOut,
			TotalFeeBps:    fee,
			PriceImpactBps: q1.PriceImpactBps + q2.PriceImpactBps,
		}
		found = true
	}
	if !found {
		return model.Route{}, errorsmod.Wrapf(model.ErrNoRouteFound, "%s to %s", tokenIn, tokenOut)
	}
	return best, nil
}

// ExecuteMultihop swaps along route, feeding each hop's output into the next.
// Either every hop applies or no pool changes. minOut bounds the final output.
func (r *Registry) ExecuteMultihop(route model.Route, amountIn, minOut int64, discountBps uint32) (model.SwapResult, error) {
	if len(route.Pools) == 0 || len(route.Path) != len(route.Pools)+1 {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrNoRouteFound, "malformed route %d pools %d tokens", len(route.Pools), len(route.Path))
	}
	if amountIn <= 0 || minOut < 0 {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrInvalidAmount, "multihop %d min %d", amountIn, minOut)
	}

	working := make(map[model.PoolID]*model.Pool, len(route.Pools))
	result := model.SwapResult{AmountIn: amountIn}
	current := amountIn
	for i, id := range route.Pools {
		p, ok := working[id]
		if !ok {
			orig, err := r.Pool(id)
			if err != nil {
				return model.SwapResult{}, err
			}
			p = orig.Clone()
			working[id] = p
		}
		in, out := route.Path[i], route.Path[i+1]
		if !p.Has(in) || !p.Has(out) || in == out {
			return model.SwapResult{}, errorsmod.Wrapf(model.ErrInvalidPair, "hop %d: pool %d does not trade %s for %s", i, id, in, out)
		}
		q, err := Swap(p, in, current, 0, discountBps)
		if err != nil {
			return model.SwapResult{}, errorsmod.Wrapf(err, "hop %d", i)
		}
		result.Hops = append(result.Hops, q.Hop())
		current = q.AmountOut
	}
	if current < minOut {
		return model.SwapResult{}, errorsmod.Wrapf(model.ErrSlippageExceeded, "final output %d below min %d", current, minOut)
	}
	result.AmountOut = current

	for id, p := range working {
		*r.pools[id] = *p
	}
	return result, nil
}
