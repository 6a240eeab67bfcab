package model

// BatchOpKind identifies the operation inside a batch.
type BatchOpKind string

const (
	BatchSwap            BatchOpKind = "swap"
	BatchAddLiquidity    BatchOpKind = "add_liquidity"
	BatchRemoveLiquidity BatchOpKind = "remove_liquidity"
)

// BatchOperation is one step of a batch, executed on behalf of the caller.
type BatchOperation struct {
	Kind     BatchOpKind `json:"kind"`
	PoolID   PoolID      `json:"pool_id,omitempty"`
	TokenIn  Asset       `json:"token_in,omitempty"`
	TokenOut Asset       `json:"token_out,omitempty"`
	AmountIn int64       `json:"amount_in,omitempty"`
	MinOut   int64       `json:"min_out,omitempty"`
	AmountA  int64       `json:"amount_a,omitempty"`
	AmountB  int64       `json:"amount_b,omitempty"`
	LPTokens int64       `json:"lp_tokens,omitempty"`
}

// OpOutcome is the result of one batch operation.
type OpOutcome struct {
	Index     int         `json:"index"`
	Kind      BatchOpKind `json:"kind"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	AmountOut int64       `json:"amount_out,omitempty"`
	AmountA   int64       `json:"amount_a,omitempty"`
	AmountB   int64       `json:"amount_b,omitempty"`
	LPTokens  int64       `json:"lp_tokens,omitempty"`
}

// BatchResult aggregates the outcomes of a batch call.
type BatchResult struct {
	ID                 string      `json:"id"`
	Outcomes           []OpOutcome `json:"outcomes"`
	OperationsExecuted int         `json:"operations_executed"`
	OperationsFailed   int         `json:"operations_failed"`
}
