package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"swapledger/internal/config"
	"swapledger/internal/engine"
	"swapledger/internal/model"
)

type identityStatus struct {
	Identity  model.Identity        `json:"identity"`
	Tier      model.Tier            `json:"tier"`
	Balances  map[model.Asset]int64 `json:"balances"`
	Positions []model.LPPosition    `json:"positions"`
	Limits    []model.RateStatus    `json:"limits"`
}

type ledgerStatus struct {
	Paused     bool                 `json:"paused"`
	Pools      []*model.Pool        `json:"pools"`
	TopTraders []model.TraderVolume `json:"top_traders"`
	Identity   *identityStatus      `json:"identity,omitempty"`
	Snapshot   *engine.Snapshot     `json:"snapshot,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	identity, _ := cmd.Flags().GetString("identity")
	top, _ := cmd.Flags().GetInt("top")

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

	out := ledgerStatus{
		Paused:     eng.Paused(),
		Pools:      eng.Pools(),
		TopTraders: eng.TopTraders(top),
	}
	if identity == "" {
		snap := eng.Snapshot()
		out.Snapshot = &snap
	} else {
		out.Identity = describeIdentity(eng, model.Identity(identity))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func describeIdentity(eng *engine.Engine, id model.Identity) *identityStatus {
	status := &identityStatus{
		Identity: id,
		Tier:     eng.Tier(id),
		Balances: eng.Balances(id),
		Limits: []model.RateStatus{
			eng.GetRateStatus(id, model.OpSwap),
			eng.GetRateStatus(id, model.OpLiquidity),
		},
	}
	for _, p := range eng.Pools() {
		if pos, ok := eng.Position(p.ID, id); ok {
			status.Positions = append(status.Positions, pos)
		}
	}
	return status
}
