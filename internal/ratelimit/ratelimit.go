// Package ratelimit enforces per-identity hourly and daily operation limits.
package ratelimit

import (
	"sort"

	errorsmod "cosmossdk.io/errors"

	"swapledger/internal/model"
)

const (
	HourlyWindow uint64 = 3600
	DailyWindow  uint64 = 86400

	dailyMultiplier = 10
)

// Limits is the fixed allowance of a tier.
type Limits struct {
	SwapsPerHour   uint32
	LPOpsPerHour   uint32
	FeeDiscountBps uint32
}

var tierTable = map[model.Tier]Limits{
	model.TierBasic:    {SwapsPerHour: 10, LPOpsPerHour: 5, FeeDiscountBps: 0},
	model.TierSilver:   {SwapsPerHour: 20, LPOpsPerHour: 10, FeeDiscountBps: 500},
	model.TierGold:     {SwapsPerHour: 50, LPOpsPerHour: 20, FeeDiscountBps: 1000},
	model.TierPlatinum: {SwapsPerHour: 100, LPOpsPerHour: 50, FeeDiscountBps: 1500},
}

// TierLimits returns the limits of tier; unknown tiers get Basic limits.
func TierLimits(tier model.Tier) Limits {
	if l, ok := tierTable[tier]; ok {
		return l
	}
	return tierTable[model.TierBasic]
}

// Hourly returns the hourly allowance for class.
func (l Limits) Hourly(class model.OpClass) uint32 {
	if class == model.OpLiquidity {
		return l.LPOpsPerHour
	}
	return l.SwapsPerHour
}

// Daily returns the daily allowance for class.
func (l Limits) Daily(class model.OpClass) uint32 {
	return l.Hourly(class) * dailyMultiplier
}

// WindowStart is the greatest multiple of duration not after now.
func WindowStart(now, duration uint64) uint64 {
	return now / duration * duration
}

type windowKey struct {
	id    model.Identity
	class model.OpClass
}

// Entry is a persisted rate window.
type Entry struct {
	Identity model.Identity   `json:"identity"`
	Class    model.OpClass    `json:"class"`
	Window   model.RateWindow `json:"window"`
}

// Limiter tracks fixed windows per identity and operation class.
type Limiter struct {
	windows map[windowKey]*model.RateWindow
}

func New() *Limiter {
	return &Limiter{windows: make(map[windowKey]*model.RateWindow)}
}

// Check fails with ErrRateLimitExceeded when either bucket is exhausted. It does not count the call.
func (l *Limiter) Check(id model.Identity, tier model.Tier, class model.OpClass, now uint64) error {
	status := l.Status(id, tier, class, now)
	if status.Hourly.Used >= status.Hourly.Limit {
		return errorsmod.Wrapf(model.ErrRateLimitExceeded, "%s used %d/%d %s ops this hour, retry in %ds",
			id, status.Hourly.Used, status.Hourly.Limit, class, status.Hourly.CooldownSeconds)
	}
	if status.Daily.Used >= status.Daily.Limit {
		return errorsmod.Wrapf(model.ErrRateLimitExceeded, "%s used %d/%d %s ops today, retry in %ds",
			id, status.Daily.Used, status.Daily.Limit, class, status.Daily.CooldownSeconds)
	}
	return nil
}

// Record counts one successful operation in both buckets.
func (l *Limiter) Record(id model.Identity, class model.OpClass, now uint64) {
	key := windowKey{id: id, class: class}
	w := l.windows[key]
	if w == nil {
		w = &model.RateWindow{}
		l.windows[key] = w
	}
	refresh(&w.Hourly, now, HourlyWindow)
	refresh(&w.Daily, now, DailyWindow)
	w.Hourly.Count++
	w.Daily.Count++
}

// Status reports usage and cooldown of both buckets.
func (l *Limiter) Status(id model.Identity, tier model.Tier, class model.OpClass, now uint64) model.RateStatus {
	limits := TierLimits(tier)
	var w model.RateWindow
	if cur := l.windows[windowKey{id: id, class: class}]; cur != nil {
		w = *cur
	}
	refresh(&w.Hourly, now, HourlyWindow)
	refresh(&w.Daily, now, DailyWindow)
	return model.RateStatus{
		Identity: id,
		Tier:     tier,
		Class:    class,
		Hourly:   bucketStatus(w.Hourly, limits.Hourly(class), now),
		Daily:    bucketStatus(w.Daily, limits.Daily(class), now),
	}
}

func bucketStatus(b model.WindowBucket, limit uint32, now uint64) model.BucketStatus {
	s := model.BucketStatus{Used: b.Count, Limit: limit, ResetsAt: b.ExpiresAt}
	if b.Count >= limit && now < b.ExpiresAt {
		s.CooldownSeconds = b.ExpiresAt - now
	}
	return s
}

// refresh reuses the cached boundary inside the window and starts a new one otherwise.
func refresh(b *model.WindowBucket, now, duration uint64) {
	if b.ExpiresAt != 0 && now >= b.WindowStart && now < b.ExpiresAt {
		return
	}
	b.WindowStart = WindowStart(now, duration)
	b.ExpiresAt = b.WindowStart + duration
	b.Count = 0
}

// Clone returns an independent copy.
func (l *Limiter) Clone() *Limiter {
	cp := New()
	for key, w := range l.windows {
		dup := *w
		cp.windows[key] = &dup
	}
	return cp
}

// Entries lists every window sorted by identity and class.
func (l *Limiter) Entries() []Entry {
	out := make([]Entry, 0, len(l.windows))
	for key, w := range l.windows {
		out = append(out, Entry{Identity: key.id, Class: key.class, Window: *w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identity != out[j].Identity {
			return out[i].Identity < out[j].Identity
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// Restore replaces the windows with entries.
func (l *Limiter) Restore(entries []Entry) {
	l.windows = make(map[windowKey]*model.RateWindow, len(entries))
	for _, e := range entries {
		w := e.Window
		l.windows[windowKey{id: e.Identity, class: e.Class}] = &w
	}
}
