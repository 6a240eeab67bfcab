package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapledger/internal/config"
	"swapledger/internal/engine"
	"swapledger/internal/model"
	"swapledger/internal/oracle"
	"swapledger/internal/storage"
	"swapledger/internal/storage/bolt"
	"swapledger/internal/storage/pebble"
	"swapledger/internal/storage/postgres"
)

// backend owns the opened state store and, when configured, the Postgres pool.
type backend struct {
	kv     storage.KV
	pg     *postgres.Store
	pgIsKV bool
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}
	if cfg.Store == "postgres" || cfg.Events == "postgres" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		b.pg = pg
	}

	var (
		kv  storage.KV
		err error
	)
	switch cfg.Store {
	case "memory":
		kv = storage.NewMemory()
	case "file":
		kv = &storage.FileKV{Dir: cfg.StorePath}
	case "pebble":
		kv, err = pebble.Open(cfg.StorePath)
	case "bolt":
		if err = os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err == nil {
			kv, err = bolt.Open(cfg.StorePath, bolt.DefaultBucket)
		}
	case "postgres":
		kv, b.pgIsKV = b.pg, true
	default:
		err = fmt.Errorf("unknown store %q", cfg.Store)
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	if cfg.CacheSize > 0 {
		cached, err := storage.NewCached(kv, cfg.CacheSize)
		if err != nil {
			kv.Close()
			b.Close()
			return nil, err
		}
		kv = cached
	}
	b.kv = kv

	logger.Debug("state store open",
		zap.String("store", cfg.Store),
		zap.String("path", cfg.StorePath),
		zap.Int("cache_size", cfg.CacheSize),
	)
	return b, nil
}

func (b *backend) Close() error {
	var err error
	if b.kv != nil {
		err = b.kv.Close()
	}
	if b.pg != nil && !b.pgIsKV {
		if cerr := b.pg.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// sink returns the configured event sink, or nil when events are disabled.
func (b *backend) sink(cfg config.Config) engine.EventSink {
	switch cfg.Events {
	case "jsonl":
		return storage.NewAuditLog(cfg.EventsOut)
	case "postgres":
		return b.pg
	default:
		return nil
	}
}

func engineConfig(cfg config.Config) (engine.Config, error) {
	pairs, err := parsePairs(cfg.OraclePairs)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Admin:               model.Identity(cfg.Admin),
		MaxBatchSize:        cfg.MaxBatchSize,
		ProtocolFeeShareBps: cfg.ProtocolFeeShareBps,
		DepositToleranceBps: cfg.DepositToleranceBps,
		MaxAmount:           cfg.MaxAmount,
		Oracle: oracle.GuardConfig{
			Pairs:           pairs,
			MaxDeviationBps: cfg.MaxOracleDeviationBps,
			AllowFallback:   cfg.AllowOracleFallback,
		},
	}, nil
}

// loadEngine opens an engine over the persisted state in b.
func loadEngine(ctx context.Context, cfg config.Config, b *backend, logger *zap.Logger, opts ...engine.Option) (*engine.Engine, error) {
	ecfg, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}
	eng := engine.New(ecfg, b.kv, logger, opts...)
	found, err := eng.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if !found {
		logger.Info("no persisted state, starting empty", zap.String("store", cfg.Store))
	}
	return eng, nil
}

// parsePairs converts A/B strings into pair keys.
func parsePairs(inputs []string) ([]model.PairKey, error) {
	pairs := make([]model.PairKey, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		base, quote, err := splitPair(input)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, model.PairKey{A: base, B: quote})
	}
	return pairs, nil
}

// parseFeeds converts BASE/QUOTE -> address mappings into oracle feeds.
// Pair symbols are upper-cased since config files lower-case map keys.
func parseFeeds(inputs map[string]string) ([]oracle.Feed, error) {
	feeds := make([]oracle.Feed, 0, len(inputs))
	for pair, address := range inputs {
		base, quote, err := splitPair(strings.ToUpper(pair))
		if err != nil {
			return nil, err
		}
		address = strings.TrimSpace(address)
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid feed address for %s: %s", pair, address)
		}
		feeds = append(feeds, oracle.Feed{Base: base, Quote: quote, Address: common.HexToAddress(address)})
	}
	return feeds, nil
}

func splitPair(input string) (model.Asset, model.Asset, error) {
	parts := strings.SplitN(input, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid pair: %s", input)
	}
	base, quote := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if base == "" || quote == "" || base == quote {
		return "", "", fmt.Errorf("invalid pair: %s", input)
	}
	return model.Asset(base), model.Asset(quote), nil
}
