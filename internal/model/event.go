package model

// EventKind names a state change notification.
type EventKind string

const (
	EventDeposit              EventKind = "deposit"
	EventWithdraw             EventKind = "withdraw"
	EventSwap                 EventKind = "swap_executed"
	EventPoolRegistered       EventKind = "pool_registered"
	EventLiquidityAdded       EventKind = "liquidity_added"
	EventLiquidityRemoved     EventKind = "liquidity_removed"
	EventBatchExecuted        EventKind = "batch_executed"
	EventPaused               EventKind = "admin_paused"
	EventUnpaused             EventKind = "admin_resumed"
	EventIdentityFrozen       EventKind = "identity_frozen"
	EventIdentityUnfrozen     EventKind = "identity_unfrozen"
	EventAdminChanged         EventKind = "admin_changed"
	EventTierChanged          EventKind = "user_tier_changed"
	EventProtocolFeeWithdrawn EventKind = "protocol_fee_withdrawn"
	EventOraclePriceSet       EventKind = "oracle_price_set"
	EventReferralRegistered   EventKind = "referral_registered"
	EventCommissionClaimed    EventKind = "commission_claimed"
)

// Event is emitted after a committed state change.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Identity  Identity  `json:"identity,omitempty"`
	PoolID    PoolID    `json:"pool_id,omitempty"`
	AssetIn   Asset     `json:"asset_in,omitempty"`
	AssetOut  Asset     `json:"asset_out,omitempty"`
	AmountIn  int64     `json:"amount_in,omitempty"`
	AmountOut int64     `json:"amount_out,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp uint64    `json:"timestamp"`
}
