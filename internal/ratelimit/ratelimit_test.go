package ratelimit

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"swapledger/internal/model"
)

func TestHourlyWindow(t *testing.T) {
	l := New()
	now := uint64(7200 + 120)
	limit := TierLimits(model.TierBasic).SwapsPerHour

	for i := uint32(0); i < limit; i++ {
		if err := l.Check("alice", model.TierBasic, model.OpSwap, now); err != nil {
			t.Fatalf("op %d rejected: %v", i, err)
		}
		l.Record("alice", model.OpSwap, now)
	}
	err := l.Check("alice", model.TierBasic, model.OpSwap, now)
	if !errors.Is(err, model.ErrRateLimitExceeded) {
		t.Fatalf("expected rate limit exceeded, got %v", err)
	}

	status := l.Status("alice", model.TierBasic, model.OpSwap, now)
	if status.Hourly.Used != limit || status.Hourly.CooldownSeconds != 3600-120 || status.Hourly.ResetsAt != 10800 {
		t.Fatalf("status mismatch: %+v", status.Hourly)
	}
	if !status.Limited() {
		t.Fatalf("status should be limited")
	}

	if err := l.Check("alice", model.TierBasic, model.OpLiquidity, now); err != nil {
		t.Fatalf("liquidity class shares swap bucket: %v", err)
	}
	if err := l.Check("alice", model.TierSilver, model.OpSwap, now); err != nil {
		t.Fatalf("silver limit applied late: %v", err)
	}

	now = status.Hourly.ResetsAt
	if err := l.Check("alice", model.TierBasic, model.OpSwap, now); err != nil {
		t.Fatalf("window did not reset: %v", err)
	}
	l.Record("alice", model.OpSwap, now)
	status = l.Status("alice", model.TierBasic, model.OpSwap, now)
	if status.Hourly.Used != 1 || status.Daily.Used != limit+1 {
		t.Fatalf("counts after reset mismatch: %+v", status)
	}
}

func TestDailyWindow(t *testing.T) {
	l := New()
	limit := TierLimits(model.TierBasic).LPOpsPerHour
	now := uint64(86400 * 3)
	for hour := uint64(0); hour < dailyMultiplier; hour++ {
		for i := uint32(0); i < limit; i++ {
			ts := now + hour*HourlyWindow
			if err := l.Check("bob", model.TierBasic, model.OpLiquidity, ts); err != nil {
				t.Fatalf("hour %d op %d rejected: %v", hour, i, err)
			}
			l.Record("bob", model.OpLiquidity, ts)
		}
	}
	ts := now + dailyMultiplier*HourlyWindow
	if err := l.Check("bob", model.TierBasic, model.OpLiquidity, ts); !errors.Is(err, model.ErrRateLimitExceeded) {
		t.Fatalf("expected daily limit, got %v", err)
	}
	if err := l.Check("bob", model.TierBasic, model.OpLiquidity, now+DailyWindow); err != nil {
		t.Fatalf("daily window did not reset: %v", err)
	}
}

func TestTierTable(t *testing.T) {
	cases := map[model.Tier]Limits{
		model.TierBasic:    {10, 5, 0},
		model.TierSilver:   {20, 10, 500},
		model.TierGold:     {50, 20, 1000},
		model.TierPlatinum: {100, 50, 1500},
		model.Tier("???"):  {10, 5, 0},
	}
	for tier, want := range cases {
		if got := TierLimits(tier); got != want {
			t.Fatalf("tier %s mismatch: %+v", tier, got)
		}
	}
}

func TestWindowStartProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := New()
		now := rapid.Uint64Range(0, 1<<40).Draw(t, "now")
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			now += rapid.Uint64Range(0, 2*HourlyWindow).Draw(t, "advance")
			l.Record("carol", model.OpSwap, now)
			w := l.windows[windowKey{id: "carol", class: model.OpSwap}]
			if w.Hourly.WindowStart != WindowStart(now, HourlyWindow) {
				t.Fatalf("hourly start %d is not floor of %d", w.Hourly.WindowStart, now)
			}
			if w.Daily.WindowStart != WindowStart(now, DailyWindow) {
				t.Fatalf("daily start %d is not floor of %d", w.Daily.WindowStart, now)
			}
			if w.Hourly.ExpiresAt != w.Hourly.WindowStart+HourlyWindow {
				t.Fatalf("hourly expiry mismatch")
			}
		}
	})
}

func TestCloneAndRestore(t *testing.T) {
	l := New()
	l.Record("alice", model.OpSwap, 100)
	cp := l.Clone()
	cp.Record("alice", model.OpSwap, 100)
	if l.Status("alice", model.TierBasic, model.OpSwap, 100).Hourly.Used != 1 {
		t.Fatalf("clone shares windows")
	}

	restored := New()
	restored.Restore(cp.Entries())
	if restored.Status("alice", model.TierBasic, model.OpSwap, 100).Hourly.Used != 2 {
		t.Fatalf("restore lost counts")
	}
}
