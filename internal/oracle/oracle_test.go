package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/model"
)

func TestValidate(t *testing.T) {
	now := uint64(10_000)
	if err := Validate(Quote{Price: decimal.NewFromInt(2), Timestamp: now - StalenessThreshold}, now); err != nil {
		t.Fatalf("fresh price rejected: %v", err)
	}
	if err := Validate(Quote{Price: decimal.NewFromInt(2), Timestamp: now - StalenessThreshold - 1}, now); !errors.Is(err, model.ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
	if err := Validate(Quote{Price: decimal.Zero, Timestamp: now}, now); !errors.Is(err, model.ErrInvalidPrice) {
		t.Fatalf("expected invalid price, got %v", err)
	}
}

func TestGuard(t *testing.T) {
	src := NewStatic()
	if err := src.Set("XLM", "USDC", decimal.RequireFromString("0.5"), 1000); err != nil {
		t.Fatalf("set price: %v", err)
	}
	g := NewGuard(src, GuardConfig{
		Pairs:           []model.PairKey{{A: "USDC", B: "XLM"}, {A: "BTC", B: "USDC"}},
		MaxDeviationBps: 500,
	})

	if err := g.Check("XLM", "USDC", 1000, 475, 1100); err != nil {
		t.Fatalf("output at floor rejected: %v", err)
	}
	if err := g.Check("XLM", "USDC", 1000, 474, 1100); !errors.Is(err, model.ErrSlippageExceeded) {
		t.Fatalf("expected slippage exceeded, got %v", err)
	}
	if err := g.Check("USDC", "XLM", 500, 950, 1100); err != nil {
		t.Fatalf("inverted price rejected: %v", err)
	}
	if err := g.Check("XLM", "USDC", 1000, 475, 1000+StalenessThreshold+1); !errors.Is(err, model.ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
	if err := g.Check("BTC", "USDC", 1, 1, 1100); !errors.Is(err, model.ErrPriceNotSet) {
		t.Fatalf("expected price not set, got %v", err)
	}
	if err := g.Check("ETH", "USDC", 1, 1, 1100); err != nil {
		t.Fatalf("unguarded pair checked: %v", err)
	}

	sandbox := NewGuard(src, GuardConfig{Pairs: []model.PairKey{{A: "BTC", B: "USDC"}}, AllowFallback: true})
	if err := sandbox.Check("BTC", "USDC", 100, 95, 1100); err != nil {
		t.Fatalf("fallback rejected: %v", err)
	}
}

func TestMedian(t *testing.T) {
	a, b, c := NewStatic(), NewStatic(), NewStatic()
	_ = a.Set("XLM", "USDC", decimal.RequireFromString("0.40"), 10)
	_ = b.Set("XLM", "USDC", decimal.RequireFromString("0.50"), 10)
	_ = c.Set("XLM", "USDC", decimal.RequireFromString("9.00"), 10)

	q, err := Median{a, b, c, NewStatic()}.Price("XLM", "USDC")
	if err != nil {
		t.Fatalf("median: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("median mismatch: %s", q.Price)
	}
	if _, err := (Median{NewStatic()}).Price("XLM", "USDC"); !errors.Is(err, model.ErrPriceNotSet) {
		t.Fatalf("expected price not set, got %v", err)
	}
}

func TestFirst(t *testing.T) {
	primary, backup := NewStatic(), NewStatic()
	_ = backup.Set("XLM", "USDC", decimal.RequireFromString("0.50"), 10)
	_ = backup.Set("BTC", "USDC", decimal.RequireFromString("60000"), 10)
	_ = primary.Set("BTC", "USDC", decimal.RequireFromString("61000"), 20)

	src := First{primary, nil, backup}
	q, err := src.Price("XLM", "USDC")
	if err != nil || !q.Price.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("fallthrough mismatch: %+v %v", q, err)
	}
	q, err = src.Price("BTC", "USDC")
	if err != nil || q.Timestamp != 20 {
		t.Fatalf("primary not preferred: %+v %v", q, err)
	}
	if _, err := src.Price("ETH", "USDC"); !errors.Is(err, model.ErrPriceNotSet) {
		t.Fatalf("expected price not set, got %v", err)
	}
}

type fakeReader struct {
	rounds map[common.Address]chain.Round
	fails  int
}

func (f *fakeReader) LatestRound(_ context.Context, feed common.Address) (chain.Round, error) {
	if f.fails > 0 {
		f.fails--
		return chain.Round{}, errors.New("rpc unavailable")
	}
	r, ok := f.rounds[feed]
	if !ok {
		return chain.Round{}, errors.New("unknown feed")
	}
	return r, nil
}

func TestFeedCacheRefresh(t *testing.T) {
	xlmFeed := common.HexToAddress("0x1111111111111111111111111111111111111111")
	badFeed := common.HexToAddress("0x2222222222222222222222222222222222222222")
	reader := &fakeReader{
		fails: 1,
		rounds: map[common.Address]chain.Round{
			xlmFeed: {Answer: big.NewInt(12_000_000), Decimals: 8, UpdatedAt: 500},
			badFeed: {Answer: big.NewInt(-1), Decimals: 8, UpdatedAt: 500},
		},
	}
	cache := NewFeedCache(FeedCacheConfig{
		Feeds: []Feed{
			{Base: "XLM", Quote: "USD", Address: xlmFeed},
			{Base: "BTC", Quote: "USD", Address: badFeed},
		},
		MaxRetries:   2,
		RetryBackoff: 1,
	}, reader, zap.NewNop())

	if _, err := cache.Price("XLM", "USD"); !errors.Is(err, model.ErrPriceNotSet) {
		t.Fatalf("expected empty cache, got %v", err)
	}

	updated, err := cache.Refresh(context.Background())
	if updated != 1 {
		t.Fatalf("updated mismatch: %d", updated)
	}
	if !errors.Is(err, model.ErrInvalidPrice) {
		t.Fatalf("expected invalid price for bad feed, got %v", err)
	}

	q, err := cache.Price("XLM", "USD")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("0.12")) || q.Timestamp != 500 {
		t.Fatalf("quote mismatch: %+v", q)
	}
}

func TestFeedCacheRetriesExhausted(t *testing.T) {
	feed := common.HexToAddress("0x1111111111111111111111111111111111111111")
	reader := &fakeReader{
		fails:  3,
		rounds: map[common.Address]chain.Round{feed: {Answer: big.NewInt(1), Decimals: 0, UpdatedAt: 1}},
	}
	cache := NewFeedCache(FeedCacheConfig{
		Feeds:        []Feed{{Base: "XLM", Quote: "USD", Address: feed}},
		MaxRetries:   1,
		RetryBackoff: 1,
	}, reader, nil)

	updated, err := cache.Refresh(context.Background())
	if updated != 0 || err == nil {
		t.Fatalf("expected failed refresh, got %d %v", updated, err)
	}
	if reader.fails != 1 {
		t.Fatalf("attempts mismatch: %d failures left", reader.fails)
	}
}

func TestMedianSkipsStaleQuotes(t *testing.T) {
	fresh, stale := NewStatic(), NewStatic()
	_ = fresh.Set("XLM", "USDC", decimal.RequireFromString("0.5"), 10_000)
	_ = stale.Set("XLM", "USDC", decimal.RequireFromString("0.6"), 1_000)
	now := uint64(10_100)

	q, err := Median{fresh, stale}.PriceAt("XLM", "USDC", now)
	if err != nil {
		t.Fatalf("median with one fresh source: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("0.5")) || q.Timestamp != 10_000 {
		t.Fatalf("median mismatch: %+v", q)
	}

	if _, err := (Median{stale, NewStatic()}).PriceAt("XLM", "USDC", now); !errors.Is(err, model.ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}

	g := NewGuard(Median{stale, fresh}, GuardConfig{Pairs: []model.PairKey{{A: "XLM", B: "USDC"}}})
	if err := g.Check("XLM", "USDC", 1000, 480, now); err != nil {
		t.Fatalf("guard rejected a swap with a fresh price: %v", err)
	}
}

func TestFirstFallsThroughStalePrice(t *testing.T) {
	primary, backup := NewStatic(), NewStatic()
	_ = primary.Set("XLM", "USDC", decimal.RequireFromString("0.9"), 100)
	_ = backup.Set("XLM", "USDC", decimal.RequireFromString("0.5"), 5_000)

	q, err := First{primary, backup}.PriceAt("XLM", "USDC", 5_100)
	if err != nil || !q.Price.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("fallthrough mismatch: %+v %v", q, err)
	}
	if _, err := (First{primary}).PriceAt("XLM", "USDC", 5_100); !errors.Is(err, model.ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
	if _, err := (First{NewStatic()}).PriceAt("XLM", "USDC", 5_100); !errors.Is(err, model.ErrPriceNotSet) {
		t.Fatalf("expected price not set, got %v", err)
	}
}
