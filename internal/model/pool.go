package model

// Identity is an account identifier as seen by the host.
type Identity string

// Asset is a token symbol.
type Asset string

// PoolID addresses a pool inside the registry.
type PoolID uint64

// PoolStatus is the lifecycle state of a pool.
type PoolStatus string

const (
	PoolEmpty  PoolStatus = "empty"
	PoolSeeded PoolStatus = "seeded"
	PoolActive PoolStatus = "active"
)

// FeeTiers lists the accepted pool fees in basis points.
var FeeTiers = []uint32{1, 5, 30}

// ValidFeeTier reports whether bps is one of FeeTiers.
func ValidFeeTier(bps uint32) bool {
	for _, tier := range FeeTiers {
		if tier == bps {
			return true
		}
	}
	return false
}

// PairKey is a token pair ordered so that A < B.
type PairKey struct {
	A Asset `json:"a"`
	B Asset `json:"b"`
}

// NormalizePair orders two tokens so lookups do not depend on argument order.
func NormalizePair(x, y Asset) PairKey {
	if x < y {
		return PairKey{A: x, B: y}
	}
	return PairKey{A: y, B: x}
}

func (k PairKey) String() string {
	return string(k.A) + "/" + string(k.B)
}

// LPPosition tracks a provider's share of a pool.
type LPPosition struct {
	Owner      Identity `json:"owner"`
	PoolID     PoolID   `json:"pool_id"`
	LPTokens   int64    `json:"lp_tokens"`
	DepositedA int64    `json:"deposited_a"`
	DepositedB int64    `json:"deposited_b"`
}

// Pool is a constant-product liquidity pool for a normalized token pair.
type Pool struct {
	ID               PoolID                   `json:"id"`
	TokenA           Asset                    `json:"token_a"`
	TokenB           Asset                    `json:"token_b"`
	ReserveA         int64                    `json:"reserve_a"`
	ReserveB         int64                    `json:"reserve_b"`
	TotalLPTokens    int64                    `json:"total_lp_tokens"`
	FeeBps           uint32                   `json:"fee_bps"`
	AccumulatedFeesA int64                    `json:"accumulated_fees_a"`
	AccumulatedFeesB int64                    `json:"accumulated_fees_b"`
	Status           PoolStatus               `json:"status"`
	Positions        map[Identity]*LPPosition `json:"positions"`
}

// Pair returns the normalized pair of the pool.
func (p *Pool) Pair() PairKey {
	return PairKey{A: p.TokenA, B: p.TokenB}
}

// Has reports whether asset is one side of the pool.
func (p *Pool) Has(asset Asset) bool {
	return asset == p.TokenA || asset == p.TokenB
}

// Other returns the opposite side of asset.
func (p *Pool) Other(asset Asset) (Asset, bool) {
	switch asset {
	case p.TokenA:
		return p.TokenB, true
	case p.TokenB:
		return p.TokenA, true
	default:
		return "", false
	}
}

// Reserves returns (reserveIn, reserveOut) for a swap that sells tokenIn.
func (p *Pool) Reserves(tokenIn Asset) (int64, int64, bool) {
	switch tokenIn {
	case p.TokenA:
		return p.ReserveA, p.ReserveB, true
	case p.TokenB:
		return p.ReserveB, p.ReserveA, true
	default:
		return 0, 0, false
	}
}

// Position returns the provider position, or nil.
func (p *Pool) Position(owner Identity) *LPPosition {
	if p.Positions == nil {
		return nil
	}
	return p.Positions[owner]
}

// Clone returns a deep copy including positions.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Positions = make(map[Identity]*LPPosition, len(p.Positions))
	for owner, pos := range p.Positions {
		dup := *pos
		cp.Positions[owner] = &dup
	}
	return &cp
}
