package engine

import (
	"sort"

	"swapledger/internal/amm"
	"swapledger/internal/ledger"
	"swapledger/internal/model"
	"swapledger/internal/oracle"
	"swapledger/internal/ratelimit"
	"swapledger/internal/safemath"
)

// State is everything a transaction may change.
type State struct {
	Ledger  *ledger.Ledger
	Pools   *amm.Registry
	Limits  *ratelimit.Limiter
	Prices  *oracle.Static
	Admin   model.Identity
	Paused  bool
	Frozen  map[model.Identity]bool
	Tiers   map[model.Identity]model.Tier
	Volumes map[model.Identity]int64
	Leaders []model.TraderVolume

	Referrers   map[model.Identity]model.Identity
	Commissions map[model.Identity][]model.CommissionRecord
	LastClaims  map[model.Identity]uint64
}

func newState(cfg Config) *State {
	return &State{
		Ledger:  ledger.New(cfg.MaxAmount),
		Pools:   amm.NewRegistry(),
		Limits:  ratelimit.New(),
		Prices:  oracle.NewStatic(),
		Admin:   cfg.Admin,
		Frozen:  make(map[model.Identity]bool),
		Tiers:   make(map[model.Identity]model.Tier),
		Volumes: make(map[model.Identity]int64),

		Referrers:   make(map[model.Identity]model.Identity),
		Commissions: make(map[model.Identity][]model.CommissionRecord),
		LastClaims:  make(map[model.Identity]uint64),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	prices := oracle.NewStatic()
	prices.Restore(s.Prices.Entries())

	cp := &State{
		Ledger:  s.Ledger.Clone(),
		Pools:   s.Pools.Clone(),
		Limits:  s.Limits.Clone(),
		Prices:  prices,
		Admin:   s.Admin,
		Paused:  s.Paused,
		Frozen:  make(map[model.Identity]bool, len(s.Frozen)),
		Tiers:   make(map[model.Identity]model.Tier, len(s.Tiers)),
		Volumes: make(map[model.Identity]int64, len(s.Volumes)),
		Leaders: append([]model.TraderVolume(nil), s.Leaders...),

		Referrers:   make(map[model.Identity]model.Identity, len(s.Referrers)),
		Commissions: make(map[model.Identity][]model.CommissionRecord, len(s.Commissions)),
		LastClaims:  make(map[model.Identity]uint64, len(s.LastClaims)),
	}
	for id, v := range s.Frozen {
		cp.Frozen[id] = v
	}
	for id, v := range s.Tiers {
		cp.Tiers[id] = v
	}
	for id, v := range s.Volumes {
		cp.Volumes[id] = v
	}
	for id, ref := range s.Referrers {
		cp.Referrers[id] = ref
	}
	for id, recs := range s.Commissions {
		cp.Commissions[id] = append([]model.CommissionRecord(nil), recs...)
	}
	for id, ts := range s.LastClaims {
		cp.LastClaims[id] = ts
	}
	return cp
}

// Tier returns the tier of id, Basic when unset.
func (s *State) Tier(id model.Identity) model.Tier {
	if t, ok := s.Tiers[id]; ok {
		return t
	}
	return model.TierBasic
}

// addVolume credits swap volume to id and keeps the leaderboard sorted and capped.
func (s *State) addVolume(id model.Identity, amount int64) {
	total, _ := safemath.SaturatingAdd(s.Volumes[id], amount)
	s.Volumes[id] = total

	found := false
	for i := range s.Leaders {
		if s.Leaders[i].Identity == id {
			s.Leaders[i].Volume = total
			found = true
			break
		}
	}
	if !found {
		s.Leaders = append(s.Leaders, model.TraderVolume{Identity: id, Volume: total})
	}
	sortLeaders(s.Leaders)
	if len(s.Leaders) > model.MaxLeaderboardSize {
		s.Leaders = s.Leaders[:model.MaxLeaderboardSize]
	}
}

// rebuildLeaders recomputes the leaderboard from all recorded volumes.
func (s *State) rebuildLeaders() {
	s.Leaders = s.Leaders[:0]
	for id, v := range s.Volumes {
		s.Leaders = append(s.Leaders, model.TraderVolume{Identity: id, Volume: v})
	}
	sort.Slice(s.Leaders, func(i, j int) bool { return s.Leaders[i].Identity < s.Leaders[j].Identity })
	sortLeaders(s.Leaders)
	if len(s.Leaders) > model.MaxLeaderboardSize {
		s.Leaders = s.Leaders[:model.MaxLeaderboardSize]
	}
}

func sortLeaders(rows []model.TraderVolume) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Volume > rows[j].Volume })
}
