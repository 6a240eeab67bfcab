package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "swapledger",
		Short:        "AMM ledger engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a JSONL operation file to the engine",
		RunE:  runReplay,
	}
	addEngineFlags(replayCmd)
	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("events", "jsonl", "event sink (none, jsonl, postgres)")
	replayCmd.Flags().String("events-out", "./data/events.jsonl", "events JSONL path")
	replayCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while replaying")
	replayCmd.Flags().String("rpc", "", "RPC URL for on-chain price feeds")
	replayCmd.Flags().StringSlice("feeds", nil, "price feeds as BASE/QUOTE=0xaddress (comma-separated); input ops must not set time")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts for feed reads")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.AddCommand(replayCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print balances, pools and rate status from persisted state",
		RunE:  runStatus,
	}
	addStoreFlags(statusCmd)
	statusCmd.Flags().String("identity", "", "only report this identity")
	statusCmd.Flags().Int("top", 10, "leaderboard rows to print")
	root.AddCommand(statusCmd)

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Quote the best route from persisted state",
		RunE:  runRoute,
	}
	addStoreFlags(routeCmd)
	routeCmd.Flags().String("identity", "", "caller identity, selects the tier discount")
	routeCmd.Flags().String("in", "", "input token")
	routeCmd.Flags().String("out", "", "output token")
	routeCmd.Flags().Int64("amount", 0, "input amount")
	root.AddCommand(routeCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify the hash chain of an events JSONL log",
		RunE:  runAudit,
	}
	auditCmd.Flags().String("events-out", "./data/events.jsonl", "events JSONL path")
	root.AddCommand(auditCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "file", "state store (memory, file, pebble, bolt, postgres)")
	cmd.Flags().String("store-path", "./data/state", "state store path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Int("cache-size", 64, "state read cache entries, 0 disables")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addEngineFlags(cmd *cobra.Command) {
	addStoreFlags(cmd)
	cmd.Flags().String("admin", "", "initial admin identity")
	cmd.Flags().Int("max-batch-size", 10, "maximum operations per batch")
	cmd.Flags().Uint32("protocol-fee-share-bps", 1000, "share of swap fees kept as protocol fees")
	cmd.Flags().Uint32("deposit-tolerance-bps", 100, "allowed deposit ratio deviation")
	cmd.Flags().Int64("max-amount", 1_000_000_000_000_000_000, "maximum single credit")
	cmd.Flags().StringSlice("oracle-pairs", nil, "pairs that require an oracle price, as A/B (comma-separated)")
	cmd.Flags().Uint32("max-oracle-deviation-bps", 500, "allowed shortfall against the oracle price")
	cmd.Flags().Bool("allow-oracle-fallback", false, "price unset pairs at 1:1 (sandbox only)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
