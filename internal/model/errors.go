package model

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups the engine error codes.
const Codespace = "swapledger"

// Engine sentinel errors
var (
	ErrInsufficientBalance   = errorsmod.Register(Codespace, 2, "insufficient balance")
	ErrInsufficientLPBalance = errorsmod.Register(Codespace, 3, "insufficient lp token balance")
	ErrUnbalancedDeposit     = errorsmod.Register(Codespace, 4, "deposit ratio deviates from pool ratio")
	ErrSlippageExceeded      = errorsmod.Register(Codespace, 5, "slippage exceeded")
	ErrPoolAlreadyExists     = errorsmod.Register(Codespace, 6, "pool already exists")
	ErrNoRouteFound          = errorsmod.Register(Codespace, 7, "no route found")
	ErrRateLimitExceeded     = errorsmod.Register(Codespace, 8, "rate limit exceeded")
	ErrUnauthorized          = errorsmod.Register(Codespace, 9, "unauthorized")
	ErrStalePrice            = errorsmod.Register(Codespace, 10, "oracle price is stale")
	ErrInvalidPrice          = errorsmod.Register(Codespace, 11, "oracle price is invalid")
	ErrPriceNotSet           = errorsmod.Register(Codespace, 12, "oracle price not set")
	ErrAmountTooLarge        = errorsmod.Register(Codespace, 13, "amount exceeds maximum")
	ErrInvalidAmount         = errorsmod.Register(Codespace, 14, "invalid amount")
	ErrDivisionByZero        = errorsmod.Register(Codespace, 15, "empty reserve")
	ErrInvariantViolation    = errorsmod.Register(Codespace, 16, "invariant violation")
	ErrPoolNotFound          = errorsmod.Register(Codespace, 17, "pool not found")
	ErrInvalidPair           = errorsmod.Register(Codespace, 18, "invalid token pair")
	ErrInvalidFeeTier        = errorsmod.Register(Codespace, 19, "invalid fee tier")
	ErrPaused                = errorsmod.Register(Codespace, 20, "trading is paused")
	ErrIdentityFrozen        = errorsmod.Register(Codespace, 21, "identity is frozen")
	ErrBatchFailed           = errorsmod.Register(Codespace, 22, "batch failed")
	ErrInvalidReferral       = errorsmod.Register(Codespace, 23, "invalid referral")
)
