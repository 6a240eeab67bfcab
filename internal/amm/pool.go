// Package amm implements constant-product pool math and the pool registry.
package amm

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"swapledger/internal/invariant"
	"swapledger/internal/model"
	"swapledger/internal/safemath"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
	// discountScale keeps tier discounts exact: fee*(10000-discount) is on a 1e8 scale.
	discountScale = BpsDenominator * BpsDenominator
	// DefaultDepositToleranceBps is how far a deposit may deviate from the reserve ratio.
	DefaultDepositToleranceBps = 100
)

// SwapQuote is the side-effect-free outcome of a swap against one pool.
type SwapQuote struct {
	PoolID         model.PoolID
	TokenIn        model.Asset
	TokenOut       model.Asset
	AmountIn       int64
	EffectiveIn    int64
	FeeAmount      int64
	AmountOut      int64
	PriceImpactBps uint32
}

// Hop converts the quote into a swap hop record.
func (q SwapQuote) Hop() model.SwapHop {
	return model.SwapHop{
		PoolID:    q.PoolID,
		TokenIn:   q.TokenIn,
		TokenOut:  q.TokenOut,
		AmountIn:  q.AmountIn,
		AmountOut: q.AmountOut,
		FeeAmount: q.FeeAmount,
	}
}

// EffectiveInput applies the pool fee, reduced by discountBps, to amountIn.
// With no discount it equals amountIn*(10000-fee)/10000.
func EffectiveInput(amountIn int64, feeBps, discountBps uint32) (int64, error) {
	if discountBps > BpsDenominator {
		discountBps = BpsDenominator
	}
	feeScaled := int64(feeBps) * int64(BpsDenominator-discountBps)
	if feeScaled > discountScale {
		return 0, errorsmod.Wrapf(model.ErrInvalidFeeTier, "fee %d bps", feeBps)
	}
	return safemath.MulDiv(amountIn, discountScale-feeScaled, discountScale)
}

// PriceImpactBps is amountIn relative to the input reserve, capped at 100%.
func PriceImpactBps(reserveIn, amountIn int64) uint32 {
	if reserveIn <= 0 {
		return BpsDenominator
	}
	impact, err := safemath.MulDiv(amountIn, BpsDenominator, reserveIn)
	if err != nil || impact > BpsDenominator {
		return BpsDenominator
	}
	return uint32(impact)
}

// QuoteSwap computes the output of selling amountIn of tokenIn without mutating the pool.
func QuoteSwap(p *model.Pool, tokenIn model.Asset, amountIn int64, discountBps uint32) (SwapQuote, error) {
	if amountIn <= 0 {
		return SwapQuote{}, errorsmod.Wrapf(model.ErrInvalidAmount, "swap amount %d", amountIn)
	}
	tokenOut, ok := p.Other(tokenIn)
	if !ok {
		return SwapQuote{}, errorsmod.Wrapf(model.ErrInvalidPair, "%s not in pool %d", tokenIn, p.ID)
	}
	reserveIn, reserveOut, _ := p.Reserves(tokenIn)
	if p.Status == model.PoolEmpty || reserveIn == 0 || reserveOut == 0 {
		return SwapQuote{}, errorsmod.Wrapf(model.ErrDivisionByZero, "pool %d reserves %d/%d", p.ID, reserveIn, reserveOut)
	}

	effective, err := EffectiveInput(amountIn, p.FeeBps, discountBps)
	if err != nil {
		return SwapQuote{}, err
	}
	denominator, err := safemath.CheckedAdd(reserveIn, effective)
	if err != nil {
		return SwapQuote{}, err
	}
	out, err := safemath.MulDiv(reserveOut, effective, denominator)
	if err != nil {
		return SwapQuote{}, err
	}
	if out <= 0 {
		return SwapQuote{}, errorsmod.Wrapf(model.ErrInvalidAmount, "swap of %d %s yields nothing", amountIn, tokenIn)
	}

	return SwapQuote{
		PoolID:         p.ID,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		EffectiveIn:    effective,
		FeeAmount:      amountIn - effective,
		AmountOut:      out,
		PriceImpactBps: PriceImpactBps(reserveIn, amountIn),
	}, nil
}

// Swap sells amountIn of tokenIn into the pool. The pool is left untouched on error.
func Swap(p *model.Pool, tokenIn model.Asset, amountIn, minOut int64, discountBps uint32) (SwapQuote, error) {
	if minOut < 0 {
		return SwapQuote{}, errorsmod.Wrapf(model.ErrInvalidAmount, "min out %d", minOut)
	}
	q, err := QuoteSwap(p, tokenIn, amountIn, discountBps)
	if err != nil {
		return SwapQuote{}, err
	}
	if q.AmountOut < minOut {
		return SwapQuote{}, errorsmod.Wrapf(model.ErrSlippageExceeded, "pool %d out %d below min %d", p.ID, q.AmountOut, minOut)
	}

	next := p.Clone()
	reserveIn, reserveOut, _ := next.Reserves(tokenIn)
	afterIn, err := safemath.CheckedAdd(reserveIn, amountIn)
	if err != nil {
		return SwapQuote{}, err
	}
	afterOut := reserveOut - q.AmountOut
	setReserves(next, tokenIn, afterIn, afterOut)
	next.Status = model.PoolActive

	if err := invariant.CheckSwap(reserveIn, reserveOut, afterIn, afterOut, amountIn, q.AmountOut, q.FeeAmount); err != nil {
		return SwapQuote{}, err
	}
	if err := invariant.CheckPool(next); err != nil {
		return SwapQuote{}, err
	}
	*p = *next
	return q, nil
}

// CollectProtocolFee moves shareBps of a swap fee from the input reserve into
// the pool's accumulated fees and returns the amount moved. shareBps must stay
// below BpsDenominator so part of every fee remains in the reserve.
func CollectProtocolFee(p *model.Pool, tokenIn model.Asset, feeAmount int64, shareBps uint32) (int64, error) {
	if feeAmount <= 0 || shareBps == 0 {
		return 0, nil
	}
	if shareBps >= BpsDenominator {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "protocol fee share %d bps", shareBps)
	}
	share, err := safemath.MulDiv(feeAmount, int64(shareBps), BpsDenominator)
	if err != nil || share == 0 {
		return 0, err
	}

	next := p.Clone()
	reserveIn, reserveOut, ok := next.Reserves(tokenIn)
	if !ok {
		return 0, errorsmod.Wrapf(model.ErrInvalidPair, "%s not in pool %d", tokenIn, p.ID)
	}
	if share >= reserveIn {
		return 0, errorsmod.Wrapf(model.ErrInvariantViolation, "protocol fee %d drains reserve %d", share, reserveIn)
	}
	setReserves(next, tokenIn, reserveIn-share, reserveOut)
	if tokenIn == next.TokenA {
		next.AccumulatedFeesA, err = safemath.CheckedAdd(next.AccumulatedFeesA, share)
	} else {
		next.AccumulatedFeesB, err = safemath.CheckedAdd(next.AccumulatedFeesB, share)
	}
	if err != nil {
		return 0, err
	}
	if err := invariant.CheckPool(next); err != nil {
		return 0, err
	}
	*p = *next
	return share, nil
}

// TakeProtocolFee removes amount of asset from the pool's accumulated fees.
func TakeProtocolFee(p *model.Pool, asset model.Asset, amount int64) error {
	if amount <= 0 {
		return errorsmod.Wrapf(model.ErrInvalidAmount, "take %d %s", amount, asset)
	}
	var held *int64
	switch asset {
	case p.TokenA:
		held = &p.AccumulatedFeesA
	case p.TokenB:
		held = &p.AccumulatedFeesB
	default:
		return errorsmod.Wrapf(model.ErrInvalidPair, "%s not in pool %d", asset, p.ID)
	}
	if amount > *held {
		return errorsmod.Wrapf(model.ErrInsufficientBalance, "pool %d holds %d %s in fees", p.ID, *held, asset)
	}
	*held -= amount
	return nil
}

// AddLiquidity deposits both sides and mints LP tokens to provider.
// A non-empty pool rejects deposits whose ratio deviates from the reserves by
// more than toleranceBps; accepted deposits go fully into reserves.
func AddLiquidity(p *model.Pool, provider model.Identity, amountA, amountB int64, toleranceBps uint32) (int64, error) {
	if amountA <= 0 || amountB <= 0 {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "deposit %d/%d", amountA, amountB)
	}

	var minted int64
	var err error
	if p.Status == model.PoolEmpty || p.TotalLPTokens == 0 {
		minted, err = safemath.SqrtProduct(amountA, amountB)
	} else {
		minted, err = proportionalMint(p, amountA, amountB, toleranceBps)
	}
	if err != nil {
		return 0, err
	}
	if minted <= 0 {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "deposit %d/%d mints no lp tokens", amountA, amountB)
	}

	next := p.Clone()
	if next.ReserveA, err = safemath.CheckedAdd(next.ReserveA, amountA); err != nil {
		return 0, err
	}
	if next.ReserveB, err = safemath.CheckedAdd(next.ReserveB, amountB); err != nil {
		return 0, err
	}
	if next.TotalLPTokens, err = safemath.CheckedAdd(next.TotalLPTokens, minted); err != nil {
		return 0, err
	}
	pos := next.Positions[provider]
	if pos == nil {
		pos = &model.LPPosition{Owner: provider, PoolID: next.ID}
		next.Positions[provider] = pos
	}
	if pos.LPTokens, err = safemath.CheckedAdd(pos.LPTokens, minted); err != nil {
		return 0, err
	}
	if pos.DepositedA, err = safemath.CheckedAdd(pos.DepositedA, amountA); err != nil {
		return 0, err
	}
	if pos.DepositedB, err = safemath.CheckedAdd(pos.DepositedB, amountB); err != nil {
		return 0, err
	}
	if next.Status == model.PoolEmpty {
		next.Status = model.PoolSeeded
	}

	if err := invariant.CheckPool(next); err != nil {
		return 0, err
	}
	*p = *next
	return minted, nil
}

func proportionalMint(p *model.Pool, amountA, amountB int64, toleranceBps uint32) (int64, error) {
	if p.ReserveA == 0 || p.ReserveB == 0 {
		return 0, errorsmod.Wrapf(model.ErrDivisionByZero, "pool %d reserves %d/%d", p.ID, p.ReserveA, p.ReserveB)
	}

	// Compare a/Ra with b/Rb through cross products.
	x := safemath.Product(amountA, p.ReserveB)
	y := safemath.Product(amountB, p.ReserveA)
	hi, lo := x, y
	if lo.Gt(hi) {
		hi, lo = lo, hi
	}
	diff := new(uint256.Int).Sub(hi, lo)
	lhs := new(uint256.Int).Mul(diff, uint256.NewInt(BpsDenominator))
	rhs := new(uint256.Int).Mul(hi, uint256.NewInt(uint64(toleranceBps)))
	if lhs.Gt(rhs) {
		return 0, errorsmod.Wrapf(model.ErrUnbalancedDeposit, "pool %d deposit %d/%d against reserves %d/%d", p.ID, amountA, amountB, p.ReserveA, p.ReserveB)
	}

	lpA, err := safemath.MulDiv(amountA, p.TotalLPTokens, p.ReserveA)
	if err != nil {
		return 0, err
	}
	lpB, err := safemath.MulDiv(amountB, p.TotalLPTokens, p.ReserveB)
	if err != nil {
		return 0, err
	}
	return min(lpA, lpB), nil
}

// RemoveLiquidity burns lp tokens of provider and returns the withdrawn amounts.
func RemoveLiquidity(p *model.Pool, provider model.Identity, lp int64) (int64, int64, error) {
	if lp <= 0 {
		return 0, 0, errorsmod.Wrapf(model.ErrInvalidAmount, "burn %d lp tokens", lp)
	}
	pos := p.Position(provider)
	if pos == nil || pos.LPTokens < lp {
		var held int64
		if pos != nil {
			held = pos.LPTokens
		}
		return 0, 0, errorsmod.Wrapf(model.ErrInsufficientLPBalance, "%s holds %d lp tokens in pool %d, needs %d", provider, held, p.ID, lp)
	}
	if p.TotalLPTokens <= 0 {
		return 0, 0, errorsmod.Wrapf(model.ErrDivisionByZero, "pool %d has no lp supply", p.ID)
	}

	amountA, err := safemath.MulDiv(p.ReserveA, lp, p.TotalLPTokens)
	if err != nil {
		return 0, 0, err
	}
	amountB, err := safemath.MulDiv(p.ReserveB, lp, p.TotalLPTokens)
	if err != nil {
		return 0, 0, err
	}
	if amountA == 0 && amountB == 0 {
		return 0, 0, errorsmod.Wrapf(model.ErrInvalidAmount, "burning %d lp tokens returns nothing", lp)
	}

	next := p.Clone()
	next.ReserveA -= amountA
	next.ReserveB -= amountB
	next.TotalLPTokens -= lp

	npos := next.Positions[provider]
	if npos.LPTokens == lp {
		delete(next.Positions, provider)
	} else {
		reduceA, err := safemath.MulDiv(npos.DepositedA, lp, npos.LPTokens)
		if err != nil {
			return 0, 0, err
		}
		reduceB, err := safemath.MulDiv(npos.DepositedB, lp, npos.LPTokens)
		if err != nil {
			return 0, 0, err
		}
		npos.DepositedA -= reduceA
		npos.DepositedB -= reduceB
		npos.LPTokens -= lp
	}
	if next.TotalLPTokens == 0 {
		next.Status = model.PoolEmpty
	}

	if err := invariant.CheckPool(next); err != nil {
		return 0, 0, err
	}
	*p = *next
	return amountA, amountB, nil
}

func setReserves(p *model.Pool, tokenIn model.Asset, reserveIn, reserveOut int64) {
	if tokenIn == p.TokenA {
		p.ReserveA, p.ReserveB = reserveIn, reserveOut
		return
	}
	p.ReserveB, p.ReserveA = reserveIn, reserveOut
}
