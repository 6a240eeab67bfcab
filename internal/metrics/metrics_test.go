package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"swapledger/internal/model"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveOperation("swap", nil)
	m.ObserveOperation("swap", errors.New("boom"))
	m.ObserveSwap(model.SwapHop{PoolID: 1, TokenIn: "XLM", AmountIn: 100, FeeAmount: 1}, 0)
	m.ObserveRateLimited(model.OpSwap)
	m.SetPools([]*model.Pool{{ID: 1, TokenA: "USDC", TokenB: "XLM", ReserveA: 910, ReserveB: 1100, TotalLPTokens: 1000}})
	m.SetPaused(true)

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("swap", "error")); got != 1 {
		t.Fatalf("error count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.SwapVolume.WithLabelValues("1", "XLM")); got != 100 {
		t.Fatalf("volume mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.PoolReserves.WithLabelValues("1", "XLM")); got != 1100 {
		t.Fatalf("reserve gauge mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.Paused); got != 1 {
		t.Fatalf("paused gauge mismatch: %v", got)
	}
	if n := testutil.CollectAndCount(m.ProtocolFees); n != 0 {
		t.Fatalf("protocol fee recorded without share: %d", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("swap", nil)
	m.ObserveBatch("atomic", 3)
	m.SetPaused(false)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveOperation("deposit", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `swapledger_engine_operations_total{operation="deposit",status="ok"} 1`) {
		t.Fatalf("metric missing from scrape:\n%s", rec.Body.String())
	}
	if NewServer("", m) != nil {
		t.Fatalf("empty addr must disable the server")
	}
}
