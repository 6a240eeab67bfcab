package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel string

	// Persistence
	Store     string
	StorePath string
	PGDSN     string
	CacheSize int

	// Events
	Events    string
	EventsOut string

	// Engine policy
	Admin               string
	MaxBatchSize        int
	ProtocolFeeShareBps uint32
	DepositToleranceBps uint32
	MaxAmount           int64

	// Oracle
	OraclePairs           []string
	MaxOracleDeviationBps uint32
	AllowOracleFallback   bool
	RPCURL                string
	Feeds                 map[string]string
	MaxRetries            int
	RetryBackoff          time.Duration

	MetricsAddr string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store", "file")
	v.SetDefault("store-path", "./data/state")
	v.SetDefault("cache-size", 64)
	v.SetDefault("events", "jsonl")
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("max-batch-size", 10)
	v.SetDefault("protocol-fee-share-bps", 1000)
	v.SetDefault("deposit-tolerance-bps", 100)
	v.SetDefault("max-amount", int64(1_000_000_000_000_000_000))
	v.SetDefault("max-oracle-deviation-bps", 500)
	v.SetDefault("allow-oracle-fallback", false)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("swapledger")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		LogLevel:              v.GetString("log-level"),
		Store:                 strings.ToLower(v.GetString("store")),
		StorePath:             v.GetString("store-path"),
		PGDSN:                 v.GetString("pg-dsn"),
		CacheSize:             v.GetInt("cache-size"),
		Events:                strings.ToLower(v.GetString("events")),
		EventsOut:             v.GetString("events-out"),
		Admin:                 v.GetString("admin"),
		MaxBatchSize:          v.GetInt("max-batch-size"),
		ProtocolFeeShareBps:   v.GetUint32("protocol-fee-share-bps"),
		DepositToleranceBps:   v.GetUint32("deposit-tolerance-bps"),
		MaxAmount:             v.GetInt64("max-amount"),
		OraclePairs:           getStringSlice(v, "oracle-pairs"),
		MaxOracleDeviationBps: v.GetUint32("max-oracle-deviation-bps"),
		AllowOracleFallback:   v.GetBool("allow-oracle-fallback"),
		RPCURL:                v.GetString("rpc"),
		Feeds:                 getStringMap(v, "feeds"),
		MaxRetries:            v.GetInt("max-retries"),
		RetryBackoff:          v.GetDuration("retry-backoff"),
		MetricsAddr:           v.GetString("metrics-addr"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "memory", "file", "pebble", "bolt":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Events {
	case "none", "jsonl":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for postgres events")
		}
	default:
		return fmt.Errorf("unknown event sink %q", c.Events)
	}
	if c.ProtocolFeeShareBps >= 10_000 {
		return fmt.Errorf("protocol fee share %d bps must stay below 10000", c.ProtocolFeeShareBps)
	}
	if len(c.Feeds) > 0 && c.RPCURL == "" {
		return fmt.Errorf("rpc url is required when feeds are configured")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
