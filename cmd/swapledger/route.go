package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"swapledger/internal/config"
	"swapledger/internal/model"
)

func runRoute(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	identity, _ := cmd.Flags().GetString("identity")
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	amount, _ := cmd.Flags().GetInt64("amount")
	if in == "" || out == "" {
		return fmt.Errorf("--in and --out are required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	eng, err := loadEngine(ctx, cfg, b, logger)
	if err != nil {
		return err
	}
	route, err := eng.FindBestRoute(model.Identity(identity), model.Asset(in), model.Asset(out), amount)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(route)
}
