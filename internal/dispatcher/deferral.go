package dispatcher

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultDeferralBase  = time.Second
	defaultDeferralMax   = 30 * time.Second
	defaultDeferralLimit = 500
)

// DeferralPolicy bounds how long and how many failing events are held back.
type DeferralPolicy struct {
	Base  time.Duration
	Max   time.Duration
	Limit int
}

type deferral struct {
	until    time.Time
	failures int
}

// deferrals remembers events whose last step failed. Each consecutive failure
// doubles the hold, capped at Max. The set is process-local.
type deferrals struct {
	mu      sync.Mutex
	entries map[uuid.UUID]deferral
	policy  DeferralPolicy
}

func newDeferrals(policy DeferralPolicy) *deferrals {
	if policy.Base <= 0 {
		policy.Base = defaultDeferralBase
	}
	if policy.Max < policy.Base {
		policy.Max = defaultDeferralMax
		if policy.Max < policy.Base {
			policy.Max = policy.Base
		}
	}
	if policy.Limit <= 0 {
		policy.Limit = defaultDeferralLimit
	}
	return &deferrals{entries: make(map[uuid.UUID]deferral), policy: policy}
}

// active lists the events still held back at now.
func (d *deferrals) active(now time.Time) []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(d.entries))
	for id, entry := range d.entries {
		if entry.until.After(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// fail records a failure and returns how long the event is held back.
func (d *deferrals) fail(id uuid.UUID, now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.entries[id]
	entry.failures++
	hold := d.policy.Base
	for i := 1; i < entry.failures && hold < d.policy.Max; i++ {
		hold *= 2
	}
	if hold > d.policy.Max {
		hold = d.policy.Max
	}
	entry.until = now.Add(hold)
	d.entries[id] = entry

	if len(d.entries) > d.policy.Limit {
		d.evictEarliest(id)
	}
	return hold
}

// clear forgets an event after a successful step and reports whether it was held.
func (d *deferrals) clear(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[id]; !ok {
		return false
	}
	delete(d.entries, id)
	return true
}

func (d *deferrals) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *deferrals) evictEarliest(keep uuid.UUID) {
	var (
		victim uuid.UUID
		until  time.Time
		found  bool
	)
	for id, entry := range d.entries {
		if id == keep {
			continue
		}
		if !found || entry.until.Before(until) {
			victim, until, found = id, entry.until, true
		}
	}
	if found {
		delete(d.entries, victim)
	}
}
