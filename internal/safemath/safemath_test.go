package safemath

import (
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"swapledger/internal/model"
)

func TestSqrtProduct(t *testing.T) {
	cases := []struct {
		a, b int64
		want int64
	}{
		{0, 100, 0},
		{1, 1, 1},
		{400, 100, 200},
		{1000, 1000, 1000},
		{2, 3, 2},
		{math.MaxInt64, math.MaxInt64, math.MaxInt64},
	}
	for _, tc := range cases {
		got, err := SqrtProduct(tc.a, tc.b)
		if err != nil {
			t.Fatalf("sqrt(%d*%d) error: %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("sqrt(%d*%d) mismatch: got %d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSqrtIsFloor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, math.MaxInt64).Draw(t, "a")
		b := rapid.Int64Range(0, math.MaxInt64).Draw(t, "b")
		root, err := SqrtProduct(a, b)
		if err != nil {
			t.Fatalf("sqrt error: %v", err)
		}
		x := Product(a, b)
		r := uint256.NewInt(uint64(root))
		sq := new(uint256.Int).Mul(r, r)
		if sq.Gt(x) {
			t.Fatalf("root %d too large for %s", root, x.Dec())
		}
		next := new(uint256.Int).AddUint64(r, 1)
		sq.Mul(next, next)
		if !sq.Gt(x) {
			t.Fatalf("root %d too small for %s", root, x.Dec())
		}
	})
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(math.MaxInt64, 9970, 10000)
	if err != nil {
		t.Fatalf("mul div error: %v", err)
	}
	if got != 9195701920744211479 {
		t.Fatalf("mul div mismatch: %d", got)
	}

	if _, err := MulDiv(1, 1, 0); !errors.Is(err, model.ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if _, err := MulDiv(math.MaxInt64, 2, 1); !errors.Is(err, model.ErrAmountTooLarge) {
		t.Fatalf("expected amount too large, got %v", err)
	}
	if _, err := MulDiv(-1, 2, 1); !errors.Is(err, model.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestSaturating(t *testing.T) {
	if v, clamped := SaturatingAdd(math.MaxInt64-1, 5); v != math.MaxInt64 || !clamped {
		t.Fatalf("add clamp mismatch: %d %v", v, clamped)
	}
	if v, clamped := SaturatingAdd(10, 5); v != 15 || clamped {
		t.Fatalf("add mismatch: %d %v", v, clamped)
	}
	if v, clamped := SaturatingSub(3, 5); v != 0 || !clamped {
		t.Fatalf("sub floor mismatch: %d %v", v, clamped)
	}
	if _, err := CheckedAdd(math.MaxInt64, 1); !errors.Is(err, model.ErrAmountTooLarge) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}
