package oracle

import (
	"errors"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/shopspring/decimal"

	"swapledger/internal/model"
)

// PriceEntry is a stored price of Base in units of QuoteAsset.
type PriceEntry struct {
	Base       model.Asset     `json:"base"`
	QuoteAsset model.Asset     `json:"quote"`
	Price      decimal.Decimal `json:"price"`
	Timestamp  uint64          `json:"timestamp"`
}

// Static is an admin-settable price table. Reverse pairs are served inverted.
type Static struct {
	mu     sync.RWMutex
	prices map[model.PairKey]Quote
}

func NewStatic() *Static {
	return &Static{prices: make(map[model.PairKey]Quote)}
}

// Set stores the price of base in units of quote.
func (s *Static) Set(base, quote model.Asset, price decimal.Decimal, ts uint64) error {
	if base == quote {
		return errorsmod.Wrapf(model.ErrInvalidPair, "%s priced in itself", base)
	}
	if !price.IsPositive() {
		return errorsmod.Wrapf(model.ErrInvalidPrice, "price %s", price)
	}
	s.mu.Lock()
	s.prices[model.PairKey{A: base, B: quote}] = Quote{Price: price, Timestamp: ts}
	s.mu.Unlock()
	return nil
}

func (s *Static) Price(in, out model.Asset) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.prices[model.PairKey{A: in, B: out}]; ok {
		return q, nil
	}
	if q, ok := s.prices[model.PairKey{A: out, B: in}]; ok {
		return Quote{Price: decimal.NewFromInt(1).Div(q.Price), Timestamp: q.Timestamp}, nil
	}
	return Quote{}, errorsmod.Wrapf(model.ErrPriceNotSet, "%s/%s", in, out)
}

// Entries lists stored prices sorted by pair.
func (s *Static) Entries() []PriceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PriceEntry, 0, len(s.prices))
	for key, q := range s.prices {
		out = append(out, PriceEntry{Base: key.A, QuoteAsset: key.B, Price: q.Price, Timestamp: q.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].QuoteAsset < out[j].QuoteAsset
	})
	return out
}

// Restore replaces the table with entries.
func (s *Static) Restore(entries []PriceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = make(map[model.PairKey]Quote, len(entries))
	for _, e := range entries {
		s.prices[model.PairKey{A: e.Base, B: e.QuoteAsset}] = Quote{Price: e.Price, Timestamp: e.Timestamp}
	}
}

// Median combines several sources and serves the median of the prices they return.
type Median []Source

func (m Median) Price(in, out model.Asset) (Quote, error) {
	quotes := make([]Quote, 0, len(m))
	var lastErr error
	for _, src := range m {
		q, err := src.Price(in, out)
		if err != nil {
			lastErr = err
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 {
		if lastErr == nil {
			lastErr = errorsmod.Wrapf(model.ErrPriceNotSet, "%s/%s", in, out)
		}
		return Quote{}, lastErr
	}
	return median(quotes), nil
}

// PriceAt serves the median of the quotes that are usable at now. Stale
// sources are left out; ErrStalePrice is returned only when no fresh quote remains.
func (m Median) PriceAt(in, out model.Asset, now uint64) (Quote, error) {
	quotes := make([]Quote, 0, len(m))
	var lastErr error
	for _, src := range m {
		q, err := PriceAt(src, in, out, now)
		if err != nil {
			lastErr = preferred(lastErr, err)
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 {
		if lastErr == nil {
			lastErr = errorsmod.Wrapf(model.ErrPriceNotSet, "%s/%s", in, out)
		}
		return Quote{}, lastErr
	}
	return median(quotes), nil
}

func median(quotes []Quote) Quote {
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Price.LessThan(quotes[j].Price) })
	return quotes[len(quotes)/2]
}

// preferred keeps the more informative of two lookup failures: a missing
// price says less than a stale or invalid one.
func preferred(current, next error) error {
	if current == nil || errors.Is(current, model.ErrPriceNotSet) {
		return next
	}
	return current
}

// First serves the price of the first source that has one. Sources without
// the pair are skipped; any other error stops the lookup.
type First []Source

func (f First) Price(in, out model.Asset) (Quote, error) {
	for _, src := range f {
		if src == nil {
			continue
		}
		q, err := src.Price(in, out)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, model.ErrPriceNotSet) {
			return Quote{}, err
		}
	}
	return Quote{}, errorsmod.Wrapf(model.ErrPriceNotSet, "%s/%s", in, out)
}

// PriceAt serves the first price that is usable at now. A stale price falls
// through to the next source; other errors stop the lookup.
func (f First) PriceAt(in, out model.Asset, now uint64) (Quote, error) {
	var lastErr error
	for _, src := range f {
		if src == nil {
			continue
		}
		q, err := PriceAt(src, in, out, now)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, model.ErrPriceNotSet) && !errors.Is(err, model.ErrStalePrice) {
			return Quote{}, err
		}
		lastErr = preferred(lastErr, err)
	}
	if lastErr == nil {
		lastErr = errorsmod.Wrapf(model.ErrPriceNotSet, "%s/%s", in, out)
	}
	return Quote{}, lastErr
}
