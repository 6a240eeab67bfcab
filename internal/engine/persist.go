package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"swapledger/internal/amm"
	"swapledger/internal/invariant"
	"swapledger/internal/model"
	"swapledger/internal/oracle"
	"swapledger/internal/ratelimit"
	"swapledger/internal/storage"
)

// SnapshotVersion is the layout version of persisted state.
const SnapshotVersion = 2

const (
	keyMeta        = "swapledger/meta"
	keyAdmin       = "swapledger/admin"
	keyLedger      = "swapledger/ledger"
	keyPools       = "swapledger/pools"
	keyRateWindows = "swapledger/rate_windows"
	keyPrices      = "swapledger/oracle_prices"
	keyVolumes     = "swapledger/volumes"
	keyReferrals   = "swapledger/referrals"
)

// Snapshot is the serializable form of the engine state.
type Snapshot struct {
	Version     int                                      `json:"version"`
	Admin       AdminState                               `json:"admin"`
	Balances    map[model.Identity]map[model.Asset]int64 `json:"balances"`
	Pools       []*model.Pool                            `json:"pools"`
	RateWindows []ratelimit.Entry                        `json:"rate_windows"`
	Prices      []oracle.PriceEntry                      `json:"prices"`
	Volumes     map[model.Identity]int64                 `json:"volumes"`
	Referrals   ReferralState                            `json:"referrals"`
}

// AdminState holds the governance part of the snapshot.
type AdminState struct {
	Admin  model.Identity                `json:"admin"`
	Paused bool                          `json:"paused"`
	Frozen []model.Identity              `json:"frozen"`
	Tiers  map[model.Identity]model.Tier `json:"tiers"`
}

// snapshotMeta is written with every snapshot. Totals and Digests let Load
// detect sections that do not belong to the same commit.
type snapshotMeta struct {
	Version int                    `json:"version"`
	Totals  map[model.Asset]string `json:"totals"`
	Digests map[string]string      `json:"digests"`
}

func snapshotOf(st *State) Snapshot {
	frozen := make([]model.Identity, 0, len(st.Frozen))
	for id := range st.Frozen {
		frozen = append(frozen, id)
	}
	sort.Slice(frozen, func(i, j int) bool { return frozen[i] < frozen[j] })

	tiers := make(map[model.Identity]model.Tier, len(st.Tiers))
	for id, tier := range st.Tiers {
		tiers[id] = tier
	}
	volumes := make(map[model.Identity]int64, len(st.Volumes))
	for id, v := range st.Volumes {
		volumes[id] = v
	}
	pools := st.Pools.Pools()
	cloned := make([]*model.Pool, 0, len(pools))
	for _, p := range pools {
		cloned = append(cloned, p.Clone())
	}

	return Snapshot{
		Version: SnapshotVersion,
		Admin: AdminState{
			Admin:  st.Admin,
			Paused: st.Paused,
			Frozen: frozen,
			Tiers:  tiers,
		},
		Balances:    st.Ledger.Entries(),
		Pools:       cloned,
		RateWindows: st.Limits.Entries(),
		Prices:      st.Prices.Entries(),
		Volumes:     volumes,
		Referrals:   referralsOf(st),
	}
}

type section struct {
	key   string
	value any
}

func (s Snapshot) sections() []section {
	return []section{
		{keyAdmin, s.Admin},
		{keyLedger, s.Balances},
		{keyPools, s.Pools},
		{keyRateWindows, s.RateWindows},
		{keyPrices, s.Prices},
		{keyVolumes, s.Volumes},
		{keyReferrals, s.Referrals},
	}
}

func (s *Snapshot) targets() []section {
	return []section{
		{keyAdmin, &s.Admin},
		{keyLedger, &s.Balances},
		{keyPools, &s.Pools},
		{keyRateWindows, &s.RateWindows},
		{keyPrices, &s.Prices},
		{keyVolumes, &s.Volumes},
		{keyReferrals, &s.Referrals},
	}
}

func digest(raw []byte) string {
	return crypto.Keccak256Hash(raw).Hex()
}

// Snapshot returns a copy of the committed state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshotOf(e.state)
}

// persist writes every state section and the meta record in one SetMany.
func (e *Engine) persist(ctx context.Context, st *State) error {
	if e.store == nil {
		return nil
	}
	snap := snapshotOf(st)
	meta := snapshotMeta{
		Version: snap.Version,
		Totals:  measure(st).Record(),
		Digests: make(map[string]string),
	}
	entries := make([]storage.Entry, 0, len(snap.sections())+1)
	for _, sec := range snap.sections() {
		raw, err := json.Marshal(sec.value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", sec.key, err)
		}
		meta.Digests[sec.key] = digest(raw)
		entries = append(entries, storage.Entry{Key: sec.key, Value: raw})
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode %s: %w", keyMeta, err)
	}
	entries = append(entries, storage.Entry{Key: keyMeta, Value: raw})
	return e.store.SetMany(ctx, entries)
}

// Load replaces the state with the snapshot held by the store. It reports
// false when the store holds no snapshot yet.
func (e *Engine) Load(ctx context.Context) (bool, error) {
	if e.store == nil {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var meta snapshotMeta
	found, err := e.readSection(ctx, keyMeta, &meta)
	if err != nil || !found {
		return false, err
	}
	if meta.Version != SnapshotVersion {
		return false, fmt.Errorf("snapshot version %d not supported", meta.Version)
	}

	snap := Snapshot{Version: meta.Version}
	for _, sec := range snap.targets() {
		raw, ok, err := e.store.Get(ctx, sec.key)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", sec.key, err)
		}
		if !ok {
			if _, want := meta.Digests[sec.key]; want {
				return false, errorsmod.Wrapf(model.ErrInvariantViolation, "section %s missing", sec.key)
			}
			continue
		}
		if want, ok := meta.Digests[sec.key]; ok && want != digest(raw) {
			return false, errorsmod.Wrapf(model.ErrInvariantViolation, "section %s digest mismatch", sec.key)
		}
		if err := json.Unmarshal(raw, sec.value); err != nil {
			return false, fmt.Errorf("decode %s: %w", sec.key, err)
		}
	}

	st, err := e.restore(snap)
	if err != nil {
		return false, err
	}
	if err := measure(st).CheckRecorded(meta.Totals); err != nil {
		return false, fmt.Errorf("restored totals: %w", err)
	}
	e.state = st
	e.metrics.SetPools(st.Pools.Pools())
	e.metrics.SetPaused(st.Paused)
	e.logger.Info("state loaded",
		zap.Int("pools", st.Pools.Len()),
		zap.Int("identities", len(snap.Balances)),
		zap.Bool("paused", st.Paused),
	)
	return true, nil
}

func (e *Engine) readSection(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// restore builds a verified state from snap.
func (e *Engine) restore(snap Snapshot) (*State, error) {
	st := newState(e.cfg)
	registry, err := amm.Restore(snap.Pools)
	if err != nil {
		return nil, err
	}
	st.Pools = registry
	st.Ledger.Restore(snap.Balances)
	st.Limits.Restore(snap.RateWindows)
	st.Prices.Restore(snap.Prices)
	if snap.Admin.Admin != "" {
		st.Admin = snap.Admin.Admin
	}
	st.Paused = snap.Admin.Paused
	for _, id := range snap.Admin.Frozen {
		st.Frozen[id] = true
	}
	for id, tier := range snap.Admin.Tiers {
		st.Tiers[id] = tier
	}
	for id, v := range snap.Volumes {
		st.Volumes[id] = v
	}
	if err := snap.Referrals.restoreInto(st); err != nil {
		return nil, fmt.Errorf("restored referrals: %w", err)
	}
	st.rebuildLeaders()

	if err := invariant.CheckState(st.Ledger.Entries(), st.Pools.Pools()); err != nil {
		return nil, fmt.Errorf("restored state: %w", err)
	}
	return st, nil
}
