package engine

import (
	"swapledger/internal/model"
)

// Balance returns the ledger balance of id.
func (e *Engine) Balance(id model.Identity, asset model.Asset) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Ledger.Balance(id, asset)
}

// Balances returns a copy of every balance of id.
func (e *Engine) Balances(id model.Identity) map[model.Asset]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Ledger.Entries()[id]
}

// Pool returns a copy of the pool with id.
func (e *Engine) Pool(id model.PoolID) (*model.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.state.Pools.Pool(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Pools returns copies of all pools in registration order.
func (e *Engine) Pools() []*model.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pools := e.state.Pools.Pools()
	out := make([]*model.Pool, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Clone())
	}
	return out
}

// Position returns the LP position of owner in pool id.
func (e *Engine) Position(id model.PoolID, owner model.Identity) (model.LPPosition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.state.Pools.Pool(id)
	if err != nil {
		return model.LPPosition{}, false
	}
	pos := p.Position(owner)
	if pos == nil {
		return model.LPPosition{}, false
	}
	return *pos, true
}

// GetRateStatus reports the rate windows of id for class at the current time.
func (e *Engine) GetRateStatus(id model.Identity, class model.OpClass) model.RateStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Limits.Status(id, e.state.Tier(id), class, e.clock.Now())
}

// Tier returns the tier of id.
func (e *Engine) Tier(id model.Identity) model.Tier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Tier(id)
}

// Paused reports whether trading is halted.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Paused
}

// TopTraders returns up to n leaderboard rows, highest volume first.
func (e *Engine) TopTraders(n int) []model.TraderVolume {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.state.Leaders) {
		n = len(e.state.Leaders)
	}
	return append([]model.TraderVolume(nil), e.state.Leaders[:n]...)
}
