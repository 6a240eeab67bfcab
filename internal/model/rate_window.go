package model

// Tier is a user's trading tier.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// ParseTier returns the tier named s.
func ParseTier(s string) (Tier, bool) {
	switch t := Tier(s); t {
	case TierBasic, TierSilver, TierGold, TierPlatinum:
		return t, true
	default:
		return "", false
	}
}

// OpClass groups operations that share a rate limit.
type OpClass string

const (
	OpSwap      OpClass = "swap"
	OpLiquidity OpClass = "liquidity"
)

// WindowBucket counts operations inside one fixed window.
type WindowBucket struct {
	Count       uint32 `json:"count"`
	WindowStart uint64 `json:"window_start"`
	ExpiresAt   uint64 `json:"expires_at"`
}

// RateWindow holds the hourly and daily buckets for one identity and class.
type RateWindow struct {
	Hourly WindowBucket `json:"hourly"`
	Daily  WindowBucket `json:"daily"`
}

// BucketStatus is a read-only view of a bucket at a point in time.
type BucketStatus struct {
	Used            uint32 `json:"used"`
	Limit           uint32 `json:"limit"`
	ResetsAt        uint64 `json:"resets_at"`
	CooldownSeconds uint64 `json:"cooldown_seconds"`
}

// RateStatus reports usage of both buckets for an identity.
type RateStatus struct {
	Identity Identity     `json:"identity"`
	Tier     Tier         `json:"tier"`
	Class    OpClass      `json:"class"`
	Hourly   BucketStatus `json:"hourly"`
	Daily    BucketStatus `json:"daily"`
}

// Limited reports whether either bucket is exhausted.
func (s RateStatus) Limited() bool {
	return s.Hourly.Used >= s.Hourly.Limit || s.Daily.Used >= s.Daily.Limit
}
