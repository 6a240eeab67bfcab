package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/config"
	"swapledger/internal/engine"
	"swapledger/internal/metrics"
	"swapledger/internal/model"
	"swapledger/internal/oracle"
)

// feedRefreshInterval is how much replayed time passes between feed reads.
const feedRefreshInterval = 60

// replayOp is one line of a replay file.
type replayOp struct {
	Op       string                 `json:"op"`
	Caller   model.Identity         `json:"caller"`
	Time     uint64                 `json:"time,omitempty"`
	Asset    model.Asset            `json:"asset,omitempty"`
	TokenA   model.Asset            `json:"token_a,omitempty"`
	TokenB   model.Asset            `json:"token_b,omitempty"`
	TokenIn  model.Asset            `json:"token_in,omitempty"`
	TokenOut model.Asset            `json:"token_out,omitempty"`
	Amount   int64                  `json:"amount,omitempty"`
	AmountA  int64                  `json:"amount_a,omitempty"`
	AmountB  int64                  `json:"amount_b,omitempty"`
	AmountIn int64                  `json:"amount_in,omitempty"`
	MinOut   int64                  `json:"min_out,omitempty"`
	LPTokens int64                  `json:"lp_tokens,omitempty"`
	FeeBps   uint32                 `json:"fee_bps,omitempty"`
	PoolID   model.PoolID           `json:"pool_id,omitempty"`
	Target   model.Identity         `json:"target,omitempty"`
	Tier     model.Tier             `json:"tier,omitempty"`
	Price    string                 `json:"price,omitempty"`
	Atomic   bool                   `json:"atomic,omitempty"`
	Ops      []model.BatchOperation `json:"ops,omitempty"`
}

// replayClock follows the time of the op being applied, falling back to the wall clock.
type replayClock struct {
	now uint64
}

func (c *replayClock) Now() uint64 {
	if c.now == 0 {
		return engine.SystemClock{}.Now()
	}
	return c.now
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("in")
	if input == "" {
		return fmt.Errorf("input path is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	m := metrics.New()
	server := metrics.NewServer(cfg.MetricsAddr, m)
	go func() {
		if err := server.Start(); err != nil {
			logger.Warn("metrics server", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(shutdownCtx)
	}()

	clock := &replayClock{}
	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithMetrics(m),
		engine.WithEventSink(b.sink(cfg)),
	}
	feedCache, closeFeeds, err := openFeeds(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFeeds()
	if feedCache != nil {
		opts = append(opts, engine.WithPriceSources(feedCache))
	}

	eng, err := loadEngine(ctx, cfg, b, logger, opts...)
	if err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("in", input),
		zap.String("store", cfg.Store),
		zap.String("events", cfg.Events),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Int("feeds", len(cfg.Feeds)),
	)

	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		total, applied, failed int
		lastRefresh            uint64
	)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var op replayOp
		if err := json.Unmarshal(line, &op); err != nil {
			failed++
			logger.Warn("decode operation", zap.Int("line", total), zap.Error(err))
			continue
		}
		if err := checkOpClock(feedCache != nil, op); err != nil {
			return fmt.Errorf("line %d: %w", total, err)
		}
		if op.Time != 0 {
			clock.now = op.Time
		}
		if feedCache != nil && (lastRefresh == 0 || clock.Now() >= lastRefresh+feedRefreshInterval) {
			if _, err := feedCache.Refresh(ctx); err != nil {
				logger.Warn("refresh price feeds", zap.Error(err))
			}
			lastRefresh = clock.Now()
		}

		result, err := applyOp(ctx, eng, op)
		if err != nil {
			failed++
			logger.Info("operation rejected",
				zap.Int("line", total),
				zap.String("op", op.Op),
				zap.String("caller", string(op.Caller)),
				zap.Error(err),
			)
			continue
		}
		applied++
		logger.Debug("operation applied", zap.Int("line", total), zap.String("op", op.Op), zap.Any("result", result))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("replay done",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("failed", failed),
		zap.Int("pools", len(eng.Pools())),
	)
	return nil
}

// checkOpClock rejects op times while live feeds are in use. Feed prices are
// stamped with chain time and would be judged stale or future against op times.
func checkOpClock(liveFeeds bool, op replayOp) error {
	if liveFeeds && op.Time != 0 {
		return fmt.Errorf("op %q sets time %d: op times cannot be combined with live price feeds", op.Op, op.Time)
	}
	return nil
}

// openFeeds connects the chain price feeds when any are configured.
func openFeeds(ctx context.Context, cfg config.Config, logger *zap.Logger) (*oracle.FeedCache, func(), error) {
	if len(cfg.Feeds) == 0 {
		return nil, func() {}, nil
	}
	feeds, err := parseFeeds(cfg.Feeds)
	if err != nil {
		return nil, nil, err
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("get chain id: %w", err)
	}
	logger.Info("price feeds connected", zap.String("chain_id", chainID.String()), zap.Int("feeds", len(feeds)))

	cache := oracle.NewFeedCache(oracle.FeedCacheConfig{
		Feeds:        feeds,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, logger)
	return cache, client.Close, nil
}

// applyOp dispatches one replay line to the engine.
func applyOp(ctx context.Context, eng *engine.Engine, op replayOp) (any, error) {
	switch op.Op {
	case "deposit":
		return eng.Deposit(ctx, op.Caller, op.Asset, op.Amount)
	case "withdraw":
		return eng.Withdraw(ctx, op.Caller, op.Asset, op.Amount)
	case "swap":
		return eng.Swap(ctx, op.Caller, op.TokenIn, op.TokenOut, op.AmountIn, op.MinOut)
	case "swap_best":
		route, err := eng.FindBestRoute(op.Caller, op.TokenIn, op.TokenOut, op.AmountIn)
		if err != nil {
			return nil, err
		}
		return eng.ExecuteMultihopSwap(ctx, op.Caller, route, op.AmountIn, op.MinOut)
	case "register_pool":
		id, minted, err := eng.RegisterPool(ctx, op.Caller, op.TokenA, op.TokenB, op.AmountA, op.AmountB, op.FeeBps)
		return map[string]any{"pool_id": id, "lp_tokens": minted}, err
	case "add_liquidity":
		return eng.AddLiquidity(ctx, op.Caller, op.PoolID, op.AmountA, op.AmountB)
	case "remove_liquidity":
		a, b, err := eng.RemoveLiquidity(ctx, op.Caller, op.PoolID, op.LPTokens)
		return map[string]int64{"amount_a": a, "amount_b": b}, err
	case "batch":
		if op.Atomic {
			return eng.ExecuteBatchAtomic(ctx, op.Caller, op.Ops)
		}
		return eng.ExecuteBatchBestEffort(ctx, op.Caller, op.Ops)
	case "pause":
		return nil, eng.Pause(ctx, op.Caller)
	case "unpause":
		return nil, eng.Unpause(ctx, op.Caller)
	case "freeze":
		return nil, eng.FreezeIdentity(ctx, op.Caller, op.Target)
	case "unfreeze":
		return nil, eng.UnfreezeIdentity(ctx, op.Caller, op.Target)
	case "set_admin":
		return nil, eng.SetAdmin(ctx, op.Caller, op.Target)
	case "set_tier":
		return nil, eng.SetTier(ctx, op.Caller, op.Target, op.Tier)
	case "withdraw_protocol_fees":
		a, b, err := eng.WithdrawProtocolFees(ctx, op.Caller, op.PoolID, op.Target)
		return map[string]int64{"amount_a": a, "amount_b": b}, err
	case "register_referral":
		return nil, eng.RegisterReferral(ctx, op.Caller, op.Target)
	case "claim_commission":
		return eng.ClaimCommission(ctx, op.Caller)
	case "set_price":
		price, err := decimal.NewFromString(op.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", op.Price, err)
		}
		return nil, eng.SetOraclePrice(ctx, op.Caller, op.TokenA, op.TokenB, price)
	default:
		return nil, fmt.Errorf("unknown operation %q", op.Op)
	}
}
