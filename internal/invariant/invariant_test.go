package invariant

import (
	"errors"
	"strings"
	"testing"

	"swapledger/internal/model"
)

func seededPool() *model.Pool {
	return &model.Pool{
		ID:            1,
		TokenA:        "USDC",
		TokenB:        "XLM",
		ReserveA:      400,
		ReserveB:      100,
		TotalLPTokens: 200,
		FeeBps:        30,
		Status:        model.PoolSeeded,
		Positions: map[model.Identity]*model.LPPosition{
			"alice": {Owner: "alice", PoolID: 1, LPTokens: 200, DepositedA: 400, DepositedB: 100},
		},
	}
}

func TestCheckPool(t *testing.T) {
	if err := CheckPool(seededPool()); err != nil {
		t.Fatalf("valid pool rejected: %v", err)
	}

	p := seededPool()
	p.Positions["alice"].LPTokens = 150
	err := CheckPool(p)
	if !errors.Is(err, model.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "lp_tok") {
		t.Fatalf("missing lp_tok check in %v", err)
	}

	p = seededPool()
	p.Positions["alice"].DepositedB = 0
	if err := CheckPool(p); err == nil || !strings.Contains(err.Error(), "lp_deposit") {
		t.Fatalf("expected lp_deposit failure, got %v", err)
	}

	p = seededPool()
	p.Status = model.PoolEmpty
	if err := CheckPool(p); err == nil {
		t.Fatalf("expected empty status failure")
	}
}

func TestCheckSwap(t *testing.T) {
	if err := CheckSwap(1000, 1000, 1100, 910, 100, 90, 1); err != nil {
		t.Fatalf("valid swap rejected: %v", err)
	}
	if err := CheckSwap(1000, 1000, 1100, 900, 100, 100, 0); err == nil {
		t.Fatalf("expected k decrease failure")
	}
	if err := CheckSwap(1000, 1000, 1000, 1000, 0, 0, 0); err != nil {
		t.Fatalf("flat k without fee rejected: %v", err)
	}
	if err := CheckSwap(1000, 1000, 1100, 1000, 100, 0, 1); err == nil {
		t.Fatalf("expected zero output failure")
	}
}

func TestCheckConservation(t *testing.T) {
	balances := map[model.Identity]map[model.Asset]int64{
		"alice": {"XLM": 600, "USDC": 100},
	}
	before := Measure(balances, []*model.Pool{seededPool()})

	balances["alice"]["USDC"] = 50
	p := seededPool()
	p.ReserveA = 430
	p.AccumulatedFeesA = 20
	after := Measure(balances, []*model.Pool{p})
	if err := CheckConservation(before, after, nil); err != nil {
		t.Fatalf("moved value rejected: %v", err)
	}

	balances["alice"]["XLM"] = 700
	after = Measure(balances, []*model.Pool{p})
	if err := CheckConservation(before, after, nil); err == nil {
		t.Fatalf("expected conservation failure")
	}
	if err := CheckConservation(before, after, map[model.Asset]int64{"XLM": 100}); err != nil {
		t.Fatalf("deposit rejected: %v", err)
	}
}

func TestCheckRecorded(t *testing.T) {
	balances := map[model.Identity]map[model.Asset]int64{
		"alice": {"XLM": 600, "USDC": 100},
	}
	totals := Measure(balances, []*model.Pool{seededPool()})
	recorded := totals.Record()
	if recorded["XLM"] != "700" || recorded["USDC"] != "500" {
		t.Fatalf("recorded %v", recorded)
	}
	if err := totals.CheckRecorded(recorded); err != nil {
		t.Fatalf("matching totals rejected: %v", err)
	}

	// Reserves from an older write no longer add up.
	p := seededPool()
	p.ReserveB = 90
	torn := Measure(balances, []*model.Pool{p})
	err := torn.CheckRecorded(recorded)
	if !errors.Is(err, model.ErrInvariantViolation) || !strings.Contains(err.Error(), "totals XLM") {
		t.Fatalf("expected XLM totals failure, got %v", err)
	}

	recorded["BTC"] = "1"
	if err := totals.CheckRecorded(recorded); err == nil {
		t.Fatalf("expected failure for missing asset")
	}
	if err := totals.CheckRecorded(map[model.Asset]string{"XLM": "x", "USDC": "500"}); err == nil {
		t.Fatalf("expected failure for unreadable total")
	}
}
