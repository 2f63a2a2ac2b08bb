package dns

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mathrand "math/rand"

	"go.uber.org/zap"
)

// maxHintsPerZone bounds each zone's hint list (spec.md §4.5: "up to 16
// addresses").
const maxHintsPerZone = 16

// maxPenaltySeconds caps how long a demoted hint stays in the penalty
// box, per spec.md §4.5's update() rule.
const maxPenaltySeconds = 60

// hintEntry is one nameserver candidate for a zone. Its priority/ttl/
// loss-count fields are the shared mutable state of spec.md §5,
// updated with relaxed atomic semantics rather than a lock — a reader
// may observe effective==0 with a stale, already-elapsed penaltyTTL,
// which is harmless (spec.md §5: "worst case is one extra probe").
type hintEntry struct {
	addr          string
	savedPriority int32
	effective     atomic.Int32
	penaltyTTL    atomic.Int64 // UnixNano deadline; 0 means "no penalty"
	nlost         atomic.Int32
}

func clampPriority(p int) int32 {
	if p < 1 {
		return 1
	}
	return int32(p)
}

// restoreIfExpired lazily reinstates a demoted entry once its penalty
// has elapsed (spec.md §4.5: "any entry whose penalty_ttl has elapsed
// is restored lazily").
func restoreIfExpired(e *hintEntry, now time.Time) {
	if e.effective.Load() != 0 {
		return
	}
	ttl := e.penaltyTTL.Load()
	if ttl == 0 || now.UnixNano() < ttl {
		return
	}
	e.effective.Store(e.savedPriority)
	e.penaltyTTL.Store(0)
}

// zoneHints is the fixed-size, ring-overwriting slot array backing one
// zone's hint list (spec.md §4.5: "beyond that, newest overwrites slot
// count % 16 but count does not grow further"). inserts counts every
// new entry ever created for this zone, uncapped (re-inserting an
// address already present updates it in place and is not counted);
// size() is that count clamped to maxHintsPerZone.
type zoneHints struct {
	entries [maxHintsPerZone]*hintEntry
	inserts int
}

func (z *zoneHints) size() int {
	if z.inserts < maxHintsPerZone {
		return z.inserts
	}
	return maxHintsPerZone
}

func (z *zoneHints) find(addr string) *hintEntry {
	for i := 0; i < z.size(); i++ {
		if z.entries[i].addr == addr {
			return z.entries[i]
		}
	}
	return nil
}

// insert creates a fresh entry for addr, overwriting the ring slot
// `inserts % 16` once the zone already holds 16 entries. This cycles
// through all 16 slots on overflow rather than repeatedly clobbering
// slot 0, a deliberate departure from §4.5's literal "count % 16 once
// count stops growing" wording (documented as an open-question
// resolution in DESIGN.md) chosen so overflow inserts keep displacing
// the oldest entry instead of only ever displacing the first one.
func (z *zoneHints) insert(addr string, priority int) *hintEntry {
	e := &hintEntry{addr: addr, savedPriority: clampPriority(priority)}
	e.effective.Store(clampPriority(priority))
	slot := z.inserts % maxHintsPerZone
	z.entries[slot] = e
	z.inserts++
	return e
}

func (z *zoneHints) snapshot() []*hintEntry {
	out := make([]*hintEntry, z.size())
	copy(out, z.entries[:z.size()])
	return out
}

// HintsTable maps zone names to ranked, adaptively-deprioritized
// nameserver candidates (spec.md §4.5). Safe for concurrent Update/
// Iterator use from multiple goroutines: the zone map itself is guarded
// by mu, but per-entry priority/ttl/loss fields are plain atomics.
type HintsTable struct {
	mu    sync.RWMutex
	zones map[string]*zoneHints

	clock Clock
	rand  func() uint32
	log   *zap.Logger
}

// NewHintsTable constructs an empty HintsTable. By default it uses a
// monotonic-ish wall clock, a private (non-singleton) RNG source, and
// a no-op logger; all three can be overridden with Option (spec.md §9:
// "avoid any process-wide singleton" for the RNG).
func NewHintsTable(opts ...Option) *HintsTable {
	cfg := defaultTableConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &HintsTable{
		zones: make(map[string]*zoneHints),
		clock: cfg.clock,
		rand:  cfg.rand,
		log:   cfg.log,
	}
}

func normalizeZone(zone string) string { return strings.ToLower(zone) }

// Insert creates or fetches the hint entry for (zone, addr), (re)setting
// its saved and effective priority to max(1, priority) (spec.md §4.5).
func (h *HintsTable) Insert(zone, addr string, priority int) {
	z := normalizeZone(zone)
	h.mu.Lock()
	zh, ok := h.zones[z]
	if !ok {
		zh = &zoneHints{}
		h.zones[z] = zh
	}
	h.mu.Unlock()

	if e := zh.find(addr); e != nil {
		p := clampPriority(priority)
		e.savedPriority = p
		e.effective.Store(p)
		e.penaltyTTL.Store(0)
		e.nlost.Store(0)
		return
	}
	zh.insert(addr, priority)
}

// Update applies a query outcome to (zone, addr): nice<0 demotes the
// entry into a penalty box scaled by its accumulated loss count,
// nice>0 clears the loss count and restores its saved priority
// (spec.md §4.5). nice==0 is a no-op.
func (h *HintsTable) Update(zone, addr string, nice int) {
	h.mu.RLock()
	zh := h.zones[normalizeZone(zone)]
	h.mu.RUnlock()
	if zh == nil {
		return
	}
	e := zh.find(addr)
	if e == nil {
		return
	}
	now := h.clock.Now()
	restoreIfExpired(e, now)

	switch {
	case nice < 0:
		n := e.nlost.Add(1)
		e.effective.Store(0)
		penalty := 3 * int64(n)
		if penalty > maxPenaltySeconds {
			penalty = maxPenaltySeconds
		}
		e.penaltyTTL.Store(now.Add(time.Duration(penalty) * time.Second).UnixNano())
		h.log.Info("hint demoted",
			zap.String("zone", zone), zap.String("addr", addr),
			zap.Int32("nlost", n), zap.Int64("penalty_seconds", penalty))
	case nice > 0:
		e.nlost.Store(0)
		e.penaltyTTL.Store(0)
		e.effective.Store(e.savedPriority)
		h.log.Info("hint restored",
			zap.String("zone", zone), zap.String("addr", addr),
			zap.Int32("priority", e.savedPriority))
	}
}

// HintIterator yields a zone's addresses in ascending effective-priority
// order, randomizing the relative order of ties (spec.md §4.5). Its
// zero value is a legal, immediately-exhausted iterator (spec.md §6).
type HintIterator struct {
	table   *HintsTable
	entries []*hintEntry

	started    bool
	targetPrio int32
	startIdx   int
	walked     int
}

// NewIterator snapshots zone's current hint entries and returns an
// iterator over them. The snapshot is taken once, at construction;
// priority/penalty state is still read live (through the snapshotted
// pointers) as Next is called, so a concurrent Update is reflected
// mid-iteration exactly as spec.md §5 describes.
func (h *HintsTable) NewIterator(zone string) *HintIterator {
	h.mu.RLock()
	zh := h.zones[normalizeZone(zone)]
	h.mu.RUnlock()
	if zh == nil {
		return &HintIterator{}
	}
	return &HintIterator{table: h, entries: zh.snapshot()}
}

// smallestAtOrAbove returns the smallest effective priority >= min
// currently present among it.entries (after lazily restoring any
// expired penalties), or 0 if none qualifies.
func (it *HintIterator) smallestAtOrAbove(min int32) int32 {
	now := it.table.clock.Now()
	var best int32
	for _, e := range it.entries {
		restoreIfExpired(e, now)
		p := e.effective.Load()
		if p < min {
			continue
		}
		if best == 0 || p < best {
			best = p
		}
	}
	return best
}

// smallestAbove returns the smallest effective priority strictly
// greater than cur, or 0 if the bands are exhausted — the ascending-
// until-exhaustion direction spec.md §9's second open question calls
// for (the source's "while(found)" loop continued in the wrong
// direction; this always advances to a strictly larger band and stops
// when none remains).
func (it *HintIterator) smallestAbove(cur int32) int32 {
	now := it.table.clock.Now()
	var best int32
	for _, e := range it.entries {
		restoreIfExpired(e, now)
		p := e.effective.Load()
		if p == 0 || p <= cur {
			continue
		}
		if best == 0 || p < best {
			best = p
		}
	}
	return best
}

func (it *HintIterator) rollStart() {
	if len(it.entries) == 0 {
		it.startIdx = 0
		return
	}
	it.startIdx = int(it.table.rand() % uint32(len(it.entries)))
	it.walked = 0
}

// Next returns the next address in priority order, or ("", false) once
// the iteration is exhausted.
func (it *HintIterator) Next() (string, bool) {
	if it.table == nil || len(it.entries) == 0 {
		return "", false
	}
	if !it.started {
		it.started = true
		it.targetPrio = it.smallestAtOrAbove(1)
		if it.targetPrio == 0 {
			return "", false
		}
		it.rollStart()
	}

	for it.targetPrio != 0 {
		for it.walked < len(it.entries) {
			idx := (it.startIdx + it.walked) % len(it.entries)
			it.walked++
			e := it.entries[idx]
			restoreIfExpired(e, it.table.clock.Now())
			if e.effective.Load() == it.targetPrio {
				return e.addr, true
			}
		}
		it.targetPrio = it.smallestAbove(it.targetPrio)
		it.rollStart()
	}
	return "", false
}

// defaultRand returns an RNG callback backed by a private math/rand
// source (not the global one), per spec.md §9's "avoid any process-
// wide singleton" instruction.
func defaultRand() func() uint32 {
	src := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	var mu sync.Mutex
	return func() uint32 {
		mu.Lock()
		defer mu.Unlock()
		return src.Uint32()
	}
}
