package ratelimit

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"swaptrade/native/tiers"
)

// ErrLimitExceeded indicates the current window's counter has reached the
// tier's quota. The Status returned alongside carries the usage details.
var ErrLimitExceeded = errors.New("ratelimit: quota exceeded")

// ErrInvalidAccount indicates an empty account identifier.
var ErrInvalidAccount = errors.New("ratelimit: invalid account")

// Class distinguishes the operation families that carry independent quotas.
type Class string

const (
	// ClassSwap covers swap executions, limited per hour-window.
	ClassSwap Class = "swap"
	// ClassLiquidity covers LP deposits and withdrawals, limited per day-window.
	ClassLiquidity Class = "lp"
)

// Unlimited is the sentinel quota that always passes without a counter
// lookup. It is an optimisation, not a behavioural exception: an account with
// this quota could never breach a real counter either.
const Unlimited = math.MaxUint32

// Quota holds the per-tier operation allowances.
type Quota struct {
	SwapsPerHour uint32
	LPOpsPerDay  uint32
}

// QuotaFor returns the allowances granted to a tier.
func QuotaFor(tier tiers.Tier) Quota {
	switch tier {
	case tiers.TierWhale:
		return Quota{SwapsPerHour: Unlimited, LPOpsPerDay: Unlimited}
	case tiers.TierExpert:
		return Quota{SwapsPerHour: 100, LPOpsPerDay: Unlimited}
	case tiers.TierTrader:
		return Quota{SwapsPerHour: 20, LPOpsPerDay: 30}
	default:
		return Quota{SwapsPerHour: 5, LPOpsPerDay: 10}
	}
}

func (q Quota) limit(class Class) uint32 {
	if class == ClassLiquidity {
		return q.LPOpsPerDay
	}
	return q.SwapsPerHour
}

// Window is a fixed time span aligned to multiples of its duration.
type Window struct {
	Start    int64
	Duration int64
}

func windowFor(ts int64, duration int64) Window {
	return Window{Start: ts / duration * duration, Duration: duration}
}

// CooldownMillis reports how long until the window rolls over, in
// milliseconds, clamped to zero once the clock has moved past it.
func (w Window) CooldownMillis(now int64) uint64 {
	next := w.Start + w.Duration
	if now >= next {
		return 0
	}
	return uint64(next-now) * 1000
}

// Status reports the usage of the current window.
type Status struct {
	Used           uint32
	Limit          uint32
	CooldownMillis uint64
}

// Storage exposes the subset of state access required by the limiter.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var counterPrefix = []byte("ratelimit/")

func counterKey(account string, class Class, windowStart int64) []byte {
	trimmed := strings.TrimSpace(account)
	start := strconv.FormatInt(windowStart, 10)
	buf := make([]byte, 0, len(counterPrefix)+len(class)+1+len(trimmed)+1+len(start))
	buf = append(buf, counterPrefix...)
	buf = append(buf, class...)
	buf = append(buf, '/')
	buf = append(buf, trimmed...)
	buf = append(buf, '/')
	buf = append(buf, start...)
	return buf
}

// Limiter enforces fixed-window quotas per (account, class, tier). Checking
// and recording are deliberately separate steps: validation failures after a
// successful check must never consume quota, so callers record only on an
// operation that is ultimately accepted.
type Limiter struct {
	store           Storage
	now             func() time.Time
	swapWindow      int64
	liquidityWindow int64
}

// NewLimiter constructs a limiter with the standard hour/day windows.
func NewLimiter(store Storage) *Limiter {
	return &Limiter{
		store:           store,
		now:             time.Now,
		swapWindow:      3_600,
		liquidityWindow: 86_400,
	}
}

// SetClock overrides the limiter clock, primarily for deterministic testing.
func (l *Limiter) SetClock(now func() time.Time) {
	if now == nil {
		l.now = time.Now
		return
	}
	l.now = now
}

// SetWindows overrides the window durations in seconds. Non-positive values
// keep the current setting.
func (l *Limiter) SetWindows(swapSeconds, liquiditySeconds int64) {
	if swapSeconds > 0 {
		l.swapWindow = swapSeconds
	}
	if liquiditySeconds > 0 {
		l.liquidityWindow = liquiditySeconds
	}
}

func (l *Limiter) duration(class Class) int64 {
	if class == ClassLiquidity {
		return l.liquidityWindow
	}
	return l.swapWindow
}

func (l *Limiter) count(account string, class Class, windowStart int64) (uint32, error) {
	var count uint64
	ok, err := l.store.KVGet(counterKey(account, class, windowStart), &count)
	if err != nil || !ok {
		return 0, err
	}
	return uint32(count), nil
}

// Check compares the current window's counter to the tier's quota. On breach
// it returns ErrLimitExceeded together with a Status carrying used, limit and
// the cooldown until the window rolls over. It never mutates the counter.
func (l *Limiter) Check(account string, class Class, tier tiers.Tier) (Status, error) {
	if strings.TrimSpace(account) == "" {
		return Status{}, ErrInvalidAccount
	}
	limit := QuotaFor(tier).limit(class)
	if limit == Unlimited {
		return Status{Limit: Unlimited}, nil
	}
	now := l.now().Unix()
	window := windowFor(now, l.duration(class))
	used, err := l.count(account, class, window.Start)
	if err != nil {
		return Status{}, err
	}
	status := Status{Used: used, Limit: limit, CooldownMillis: window.CooldownMillis(now)}
	if used >= limit {
		return status, ErrLimitExceeded
	}
	return status, nil
}

// Record increments the counter for the window containing ts. Callers must
// have passed Check first.
func (l *Limiter) Record(account string, class Class, ts int64) error {
	if strings.TrimSpace(account) == "" {
		return ErrInvalidAccount
	}
	window := windowFor(ts, l.duration(class))
	used, err := l.count(account, class, window.Start)
	if err != nil {
		return err
	}
	return l.store.KVPut(counterKey(account, class, window.Start), uint64(used)+1)
}

// Usage reports the current window's status without enforcing the quota.
func (l *Limiter) Usage(account string, class Class, tier tiers.Tier) (Status, error) {
	if strings.TrimSpace(account) == "" {
		return Status{}, ErrInvalidAccount
	}
	now := l.now().Unix()
	window := windowFor(now, l.duration(class))
	used, err := l.count(account, class, window.Start)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Used:           used,
		Limit:          QuotaFor(tier).limit(class),
		CooldownMillis: window.CooldownMillis(now),
	}, nil
}
