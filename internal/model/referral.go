package model

// CommissionRates are the referral commission rates per level of the
// referral chain, in percent of the protocol fee.
var CommissionRates = []int64{20, 10, 5}

const (
	// CommissionHoldSeconds is how long earned commission stays pending.
	CommissionHoldSeconds uint64 = 30 * 24 * 60 * 60
	// CommissionClaimInterval is the minimum time between two claims.
	CommissionClaimInterval uint64 = 3600
)

// CommissionRecord is commission earned from one swap of a referred trader.
type CommissionRecord struct {
	Asset       Asset    `json:"asset"`
	Amount      int64    `json:"amount"`
	EarnedAt    uint64   `json:"earned_at"`
	ClaimableAt uint64   `json:"claimable_at"`
	Source      Identity `json:"source"`
	Level       int      `json:"level"`
}
