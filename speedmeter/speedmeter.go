// Package speedmeter implements a sliding-window bytes-per-second
// accumulator for a single data connection. It is grounded on rclone's
// accounting.Stats/Account pattern (a lock-guarded counter fed by every
// Read/Write), generalised from one running total into a ring of one-second
// slots so a stalled transfer's speed decays instead of staying pinned at
// its historical average.
package speedmeter

import (
	"sync"
	"time"
)

// slots is the number of closed one-second buckets kept behind the open
// slot, per spec: a ring of N=31 plus the currently accumulating slot.
const slots = 31

// Meter accumulates bytes transferred over a sliding window and reports a
// smoothed bytes-per-second rate. One Meter serves one data connection; a
// short lock (matched to the teacher's per-resource mutex idiom, not a full
// RWMutex) serialises every call so callers never see a torn ring.
type Meter struct {
	mu sync.Mutex

	ring      [slots]int64
	head      int // index the next closed slot will be written to
	active    int // number of closed slots currently holding data
	slotStart time.Time
	openBytes int64

	lastActive time.Time

	now func() time.Time
}

// New creates a Meter in its just-connected state.
func New() *Meter {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Meter {
	m := &Meter{now: now}
	m.reset(now())

	return m
}

func (m *Meter) reset(at time.Time) {
	m.ring = [slots]int64{}
	m.head = 0
	m.active = 0
	m.slotStart = at
	m.openBytes = 0
	m.lastActive = at
}

// JustConnected resets the ring to one active, empty slot starting now, as
// spec requires when a fresh data connection begins transferring.
func (m *Meter) JustConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset(m.now())
}

// Add records n bytes transferred at the current instant, advancing the
// ring's head across any elapsed, fully-idle seconds first.
func (m *Meter) Add(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.advance(now)
	m.openBytes += n
	m.lastActive = now
}

// advance rolls the open slot into the ring once its second elapses,
// fast-forwarding through idle seconds up to the ring's full depth — past
// that there is nothing left in the window to decay, so older seconds are
// simply dropped.
func (m *Meter) advance(now time.Time) {
	elapsed := int(now.Sub(m.slotStart) / time.Second)
	if elapsed <= 0 {
		return
	}

	if elapsed > slots {
		// Every slot, including the one open when the gap began, is older
		// than the window: nothing survives, so skip straight to empty
		// instead of looping slots+1 times for the same result.
		m.ring = [slots]int64{}
		m.head = 0
		m.active = 0
		m.openBytes = 0
		m.slotStart = now

		return
	}

	for i := 0; i < elapsed; i++ {
		m.ring[m.head] = m.openBytes
		m.head = (m.head + 1) % slots
		if m.active < slots {
			m.active++
		}
		m.openBytes = 0
	}

	m.slotStart = m.slotStart.Add(time.Duration(elapsed) * time.Second)
}

// Speed returns the smoothed bytes-per-second rate: the sum of every
// closed slot plus the partial open slot, divided by the elapsed
// milliseconds since the oldest still-counted slot began.
func (m *Meter) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.advance(now)

	var total int64
	for i := 0; i < m.active; i++ {
		idx := (m.head - 1 - i + slots) % slots
		total += m.ring[idx]
	}
	total += m.openBytes

	oldestStart := m.slotStart.Add(-time.Duration(m.active) * time.Second)

	elapsedMs := now.Sub(oldestStart).Milliseconds()
	if elapsedMs <= 0 {
		return 0
	}

	return float64(total) * 1000 / float64(elapsedMs)
}

// LastActivity returns the timestamp of the most recent Add call, used by
// the worker's no-data-transfer watchdog.
func (m *Meter) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastActive
}
