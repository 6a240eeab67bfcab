package ledger

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"swapledger/internal/model"
)

func TestDebitCredit(t *testing.T) {
	l := New(0)
	if got, err := l.Credit("alice", "XLM", 500); err != nil || got != 500 {
		t.Fatalf("credit mismatch: %d %v", got, err)
	}
	if got, err := l.Debit("alice", "XLM", 200); err != nil || got != 300 {
		t.Fatalf("debit mismatch: %d %v", got, err)
	}
	if _, err := l.Debit("alice", "XLM", 301); !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := l.Balance("alice", "XLM"); got != 300 {
		t.Fatalf("failed debit changed balance: %d", got)
	}
	if _, err := l.Debit("alice", "XLM", -1); !errors.Is(err, model.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := l.Credit("alice", "XLM", -1); !errors.Is(err, model.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestCreditBound(t *testing.T) {
	l := New(1000)
	if _, err := l.Credit("bob", "USDC", 1001); !errors.Is(err, model.ErrAmountTooLarge) {
		t.Fatalf("expected amount too large, got %v", err)
	}
	if l.Balance("bob", "USDC") != 0 {
		t.Fatalf("rejected credit changed balance")
	}
}

func TestSaturationCountsClamps(t *testing.T) {
	l := New(math.MaxInt64)
	if _, err := l.Credit("bob", "USDC", math.MaxInt64-1); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got, _ := l.Credit("bob", "USDC", 10); got != math.MaxInt64 {
		t.Fatalf("expected saturation, got %d", got)
	}
	if l.Clamps() != 1 {
		t.Fatalf("clamp count mismatch: %d", l.Clamps())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := New(0)
	_, _ = l.Credit("alice", "XLM", 10)
	cp := l.Clone()
	_, _ = cp.Credit("alice", "XLM", 5)
	if l.Balance("alice", "XLM") != 10 || cp.Balance("alice", "XLM") != 15 {
		t.Fatalf("clone shares state: %d %d", l.Balance("alice", "XLM"), cp.Balance("alice", "XLM"))
	}
}

func TestInBoundSequenceConserves(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := New(0)
		ids := []model.Identity{"a", "b", "c"}
		var expected int64
		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			amount := rapid.Int64Range(0, 1_000_000).Draw(t, "amount")
			if rapid.Bool().Draw(t, "credit") {
				if _, err := l.Credit(id, "XLM", amount); err != nil {
					t.Fatalf("credit: %v", err)
				}
				expected += amount
				continue
			}
			before := l.Balance(id, "XLM")
			after, err := l.Debit(id, "XLM", amount)
			if before < amount {
				if !errors.Is(err, model.ErrInsufficientBalance) {
					t.Fatalf("expected insufficient balance, got %v", err)
				}
				continue
			}
			if after != before-amount {
				t.Fatalf("debit mismatch: %d - %d != %d", before, amount, after)
			}
			expected -= amount
		}
		if l.Total("XLM") != expected {
			t.Fatalf("total mismatch: %d want %d", l.Total("XLM"), expected)
		}
		if l.Clamps() != 0 {
			t.Fatalf("in-bound operations clamped %d times", l.Clamps())
		}
	})
}
