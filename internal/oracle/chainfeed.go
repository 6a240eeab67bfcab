package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/model"
)

// RoundReader reads the latest answer of an on-chain price feed.
type RoundReader interface {
	LatestRound(ctx context.Context, feed common.Address) (chain.Round, error)
}

// Feed maps an on-chain feed to the price of Base in units of Quote.
type Feed struct {
	Base    model.Asset
	Quote   model.Asset
	Address common.Address
}

// FeedCacheConfig controls feed refreshes.
type FeedCacheConfig struct {
	Feeds        []Feed
	MaxRetries   int
	RetryBackoff time.Duration
}

// FeedCache serves the last prices read from chain feeds. Network reads only
// happen in Refresh; Price never blocks.
type FeedCache struct {
	cfg    FeedCacheConfig
	reader RoundReader
	prices *Static
	logger *zap.Logger
}

func NewFeedCache(cfg FeedCacheConfig, reader RoundReader, logger *zap.Logger) *FeedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedCache{
		cfg:    cfg,
		reader: reader,
		prices: NewStatic(),
		logger: logger,
	}
}

func (c *FeedCache) Price(in, out model.Asset) (Quote, error) {
	return c.prices.Price(in, out)
}

// Refresh reads every configured feed and returns the number of prices updated.
func (c *FeedCache) Refresh(ctx context.Context) (int, error) {
	if c.reader == nil {
		return 0, fmt.Errorf("round reader is nil")
	}

	var errs []error
	updated := 0
	for _, feed := range c.cfg.Feeds {
		var round chain.Round
		err := c.readWithRetry(ctx, feed, func(ctx context.Context) error {
			var err error
			round, err = c.reader.LatestRound(ctx, feed.Address)
			return err
		})
		if err != nil {
			c.logger.Warn("feed read failed", zap.String("feed", feed.Address.Hex()), zap.Error(err))
			errs = append(errs, fmt.Errorf("read feed %s: %w", feed.Address.Hex(), err))
			continue
		}

		price := RoundPrice(round)
		if err := c.prices.Set(feed.Base, feed.Quote, price, round.UpdatedAt); err != nil {
			c.logger.Warn("feed answer rejected",
				zap.String("feed", feed.Address.Hex()),
				zap.String("price", price.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		updated++
		c.logger.Debug("feed refreshed",
			zap.String("pair", string(feed.Base)+"/"+string(feed.Quote)),
			zap.String("price", price.String()),
			zap.Uint64("updated_at", round.UpdatedAt),
		)
	}

	return updated, errors.Join(errs...)
}

// RoundPrice scales a feed answer by its decimals.
func RoundPrice(round chain.Round) decimal.Decimal {
	if round.Answer == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(round.Answer, -int32(round.Decimals))
}
