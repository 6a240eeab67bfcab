// Package safemath provides overflow-safe integer helpers for pool math.
// Intermediate products are computed in 256 bits so a*b never wraps.
package safemath

import (
	"math"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"swapledger/internal/model"
)

// MaxSqrtIterations bounds the Babylonian square root loop.
const MaxSqrtIterations = 100

var maxInt64 = uint256.NewInt(math.MaxInt64)

// MulDiv returns floor(a*b/c) for non-negative operands.
func MulDiv(a, b, c int64) (int64, error) {
	if a < 0 || b < 0 || c < 0 {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "negative operand in %d*%d/%d", a, b, c)
	}
	if c == 0 {
		return 0, errorsmod.Wrap(model.ErrDivisionByZero, "mul div by zero")
	}
	product := new(uint256.Int).Mul(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
	quo := product.Div(product, uint256.NewInt(uint64(c)))
	return toInt64(quo)
}

// Product returns a*b as a 256-bit value.
func Product(a, b int64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(clampZero(a))), uint256.NewInt(uint64(clampZero(b))))
}

// SqrtProduct returns floor(sqrt(a*b)).
func SqrtProduct(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, errorsmod.Wrapf(model.ErrInvalidAmount, "negative operand in sqrt(%d*%d)", a, b)
	}
	root, err := Sqrt(Product(a, b))
	if err != nil {
		return 0, err
	}
	return toInt64(root)
}

// Sqrt computes floor(sqrt(x)) with Newton iterations starting above the root.
func Sqrt(x *uint256.Int) (*uint256.Int, error) {
	if x.IsZero() {
		return new(uint256.Int), nil
	}
	z := new(uint256.Int).Lsh(uint256.NewInt(1), uint((x.BitLen()+1)/2))
	y := new(uint256.Int)
	for i := 0; i < MaxSqrtIterations; i++ {
		// y = (z + x/z) / 2
		y.Div(x, z)
		y.Add(y, z)
		y.Rsh(y, 1)
		if !y.Lt(z) {
			return z, nil
		}
		z.Set(y)
	}
	return nil, errorsmod.Wrapf(model.ErrInvariantViolation, "sqrt did not converge in %d iterations", MaxSqrtIterations)
}

// SaturatingAdd returns a+b clamped to MaxInt64 and whether the clamp fired.
func SaturatingAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64, true
	}
	return a + b, false
}

// SaturatingSub returns a-b floored at zero and whether the floor fired.
func SaturatingSub(a, b int64) (int64, bool) {
	if b > a {
		return 0, true
	}
	return a - b, false
}

// CheckedAdd returns a+b or ErrAmountTooLarge on overflow.
func CheckedAdd(a, b int64) (int64, error) {
	sum, clamped := SaturatingAdd(a, b)
	if clamped {
		return 0, errorsmod.Wrapf(model.ErrAmountTooLarge, "%d + %d overflows", a, b)
	}
	return sum, nil
}

func toInt64(v *uint256.Int) (int64, error) {
	if v.Gt(maxInt64) {
		return 0, errorsmod.Wrapf(model.ErrAmountTooLarge, "result %s exceeds int64", v.Dec())
	}
	return int64(v.Uint64()), nil
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
