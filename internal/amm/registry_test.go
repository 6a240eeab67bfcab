package amm

import (
	"errors"
	"reflect"
	"testing"

	"swapledger/internal/model"
)

func mustRegister(t *testing.T, r *Registry, a, b model.Asset, ra, rb int64, fee uint32) *model.Pool {
	t.Helper()
	p, _, err := r.Register("admin", a, b, ra, rb, fee)
	if err != nil {
		t.Fatalf("register %s/%s: %v", a, b, err)
	}
	return p
}

func TestRegisterNormalizesPair(t *testing.T) {
	r := NewRegistry()
	p := mustRegister(t, r, "XLM", "USDC", 100, 400, 30)
	if p.TokenA != "USDC" || p.TokenB != "XLM" || p.ReserveA != 400 || p.ReserveB != 100 {
		t.Fatalf("normalization mismatch: %+v", p)
	}
	if _, _, err := r.Register("admin", "USDC", "XLM", 1, 1, 5); !errors.Is(err, model.ErrPoolAlreadyExists) {
		t.Fatalf("expected pool exists, got %v", err)
	}
	if got, ok := r.Lookup("XLM", "USDC"); !ok || got.ID != p.ID {
		t.Fatalf("lookup mismatch")
	}
	if _, _, err := r.Register("admin", "A", "B", 1, 1, 7); !errors.Is(err, model.ErrInvalidFeeTier) {
		t.Fatalf("expected invalid fee tier, got %v", err)
	}
	if _, _, err := r.Register("admin", "A", "A", 1, 1, 5); !errors.Is(err, model.ErrInvalidPair) {
		t.Fatalf("expected invalid pair, got %v", err)
	}
	if _, err := r.Pool(42); !errors.Is(err, model.ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestFindBestRouteDirect(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "A", "B", 1000, 1000, 30)
	mustRegister(t, r, "B", "C", 1000, 1000, 30)
	mustRegister(t, r, "A", "C", 10, 10, 30)

	route, err := r.FindBestRoute("A", "C", 5, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !route.Direct() || route.Pools[0] != 3 {
		t.Fatalf("expected direct route, got %+v", route)
	}
}

func TestFindBestRouteTwoHop(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "A", "B", 1000, 1000, 30)
	mustRegister(t, r, "B", "C", 1000, 1000, 30)
	mustRegister(t, r, "A", "D", 1000, 2000, 5)
	mustRegister(t, r, "D", "C", 2000, 1000, 5)

	route, err := r.FindBestRoute("A", "C", 100, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	want := model.Route{
		Pools:          []model.PoolID{3, 4},
		Path:           []model.Asset{"A", "D", "C"},
		AmountIn:       100,
		ExpectedOut:    82,
		TotalFeeBps:    10,
		PriceImpactBps: 1000 + 900,
	}
	if !reflect.DeepEqual(route, want) {
		t.Fatalf("route mismatch: %+v", route)
	}

	if _, err := r.FindBestRoute("A", "Z", 100, 0); !errors.Is(err, model.ErrNoRouteFound) {
		t.Fatalf("expected no route, got %v", err)
	}
}

func TestFindBestRouteTieKeepsFirst(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "A", "B", 1000, 1000, 30)
	mustRegister(t, r, "B", "C", 1000, 1000, 30)
	mustRegister(t, r, "A", "E", 1000, 1000, 30)
	mustRegister(t, r, "E", "C", 1000, 1000, 30)

	route, err := r.FindBestRoute("A", "C", 100, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.Path[1] != "B" || route.ExpectedOut != 81 {
		t.Fatalf("tie not resolved to first pool: %+v", route)
	}
}

func TestExecuteMultihop(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "A", "B", 1000, 1000, 30)
	mustRegister(t, r, "B", "C", 1000, 1000, 30)

	route, err := r.FindBestRoute("A", "C", 100, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if _, err := r.ExecuteMultihop(route, 100, 82, 0); !errors.Is(err, model.ErrSlippageExceeded) {
		t.Fatalf("expected slippage exceeded, got %v", err)
	}
	first, _ := r.Pool(1)
	if first.ReserveA != 1000 || first.ReserveB != 1000 {
		t.Fatalf("failed multihop changed first hop: %+v", first)
	}

	res, err := r.ExecuteMultihop(route, 100, 81, 0)
	if err != nil {
		t.Fatalf("multihop: %v", err)
	}
	if res.AmountOut != 81 || len(res.Hops) != 2 || res.Hops[0].AmountOut != 90 || res.Hops[1].AmountIn != 90 {
		t.Fatalf("multihop result mismatch: %+v", res)
	}
	second, _ := r.Pool(2)
	if first.ReserveA != 1100 || first.ReserveB != 910 || second.ReserveA != 1090 || second.ReserveB != 919 {
		t.Fatalf("reserves mismatch: %+v %+v", first, second)
	}
}

func TestCloneAndRestore(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "A", "B", 1000, 1000, 30)
	cp := r.Clone()
	p, _ := cp.Pool(1)
	if _, err := Swap(p, "A", 100, 0, 0); err != nil {
		t.Fatalf("swap: %v", err)
	}
	orig, _ := r.Pool(1)
	if orig.ReserveA != 1000 {
		t.Fatalf("clone shares pool state")
	}

	restored, err := Restore(cp.Pools())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	next := mustRegister(t, restored, "C", "D", 10, 10, 5)
	if next.ID != 2 {
		t.Fatalf("next id mismatch: %d", next.ID)
	}
}
