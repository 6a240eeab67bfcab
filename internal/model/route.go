package model

// Route is a swap path through one or two pools.
type Route struct {
	Pools          []PoolID `json:"pools"`
	Path           []Asset  `json:"path"`
	AmountIn       int64    `json:"amount_in"`
	ExpectedOut    int64    `json:"expected_out"`
	TotalFeeBps    uint32   `json:"total_fee_bps"`
	PriceImpactBps uint32   `json:"price_impact_bps"`
}

// Direct reports whether the route uses a single pool.
func (r Route) Direct() bool {
	return len(r.Pools) == 1
}

// SwapHop is the outcome of one pool swap.
type SwapHop struct {
	PoolID    PoolID `json:"pool_id"`
	TokenIn   Asset  `json:"token_in"`
	TokenOut  Asset  `json:"token_out"`
	AmountIn  int64  `json:"amount_in"`
	AmountOut int64  `json:"amount_out"`
	FeeAmount int64  `json:"fee_amount"`
}

// SwapResult describes a completed direct or multihop swap.
type SwapResult struct {
	Hops        []SwapHop `json:"hops"`
	AmountIn    int64     `json:"amount_in"`
	AmountOut   int64     `json:"amount_out"`
	ProtocolFee int64     `json:"protocol_fee"`
}
