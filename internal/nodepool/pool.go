// Package nodepool implements the preprocessing stage: per-batch noise
// filtering, cross-batch slot bookkeeping, and the final classification
// into StaticStatic / StaticNode / DynamicNode pools.
//
// Grounded on the teacher's internal/memacc accessor bookkeeping (slot
// arrays keyed by address, overlap-checked insertion) adapted from byte
// ranges to per-batch pointer-value slots.
package nodepool

import (
	"github.com/google/uuid"

	"pscan/internal/catalog"
	"pscan/internal/ptrcore"
)

// Counts is the per-range tally returned after each addBatch, used to
// decide whether to recommend skipSticky.
type Counts struct {
	RangeStaticStatics []int
	RangeStaticNodes   []int
	DynamicNodes       int
	WarnBasePointers   bool
	RecommendSkipSticky bool
}

// warnBasePointerThreshold is the soft threshold past which getCounts warns
// that scan time will be high.
const warnBasePointerThreshold = 50_000

// Pool owns the mutable slot map for one analysis run. Slot b of an
// address's value array is 0 iff that address was absent from batch b; 0 is
// never a valid post-validation pointer value, so it doubles as an absence
// sentinel.
type Pool struct {
	system  *catalog.System
	runID   uuid.UUID
	batches int
	slots   map[ptrcore.Address][]ptrcore.PointerValue
}

func New(system *catalog.System) *Pool {
	return &Pool{system: system, slots: make(map[ptrcore.Address][]ptrcore.PointerValue)}
}

// WithRunID attaches a run id so errors raised by this Pool carry it; the
// orchestrator always calls this before use.
func (p *Pool) WithRunID(id uuid.UUID) *Pool {
	p.runID = id
	return p
}

func (p *Pool) BatchCount() int { return p.batches }

// AddBatch filters then merges one batch into the pool, returning updated
// counts. Fails with ptrcore.BatchLimitExceeded past MaxBatches.
func (p *Pool) AddBatch(batch ptrcore.Batch) (Counts, error) {
	if p.batches >= ptrcore.MaxBatches {
		return Counts{}, ptrcore.NewError(ptrcore.BatchLimitExceeded, ptrcore.StagePreprocess, p.runID, "preprocessor already holds the maximum number of batches")
	}

	idx := p.batches
	keep := filterBatch(batch, p.system)
	for _, row := range keep {
		slot, ok := p.slots[row.Address]
		if !ok {
			slot = make([]ptrcore.PointerValue, ptrcore.MaxBatches)
			p.slots[row.Address] = slot
		}
		slot[idx] = row.Value
	}
	p.batches++
	return p.getCounts(), nil
}

// RemoveBatch drops batch i, shifts later slots down, zeroes the freed
// slot, and prunes addresses that are now entirely absent.
func (p *Pool) RemoveBatch(i int) (Counts, error) {
	if i < 0 || i >= p.batches {
		return Counts{}, ptrcore.NewError(ptrcore.InvalidBatchIndex, ptrcore.StagePreprocess, p.runID, "batch index out of range")
	}
	for addr, slot := range p.slots {
		for b := i; b < p.batches-1; b++ {
			slot[b] = slot[b+1]
		}
		slot[p.batches-1] = 0
		if allZero(slot[:p.batches-1]) {
			delete(p.slots, addr)
		}
	}
	p.batches--
	return p.getCounts(), nil
}

func allZero(s []ptrcore.PointerValue) bool {
	for _, v := range s {
		if v != 0 {
			return false
		}
	}
	return true
}

// getCounts computes per-range StaticStatic/StaticNode tallies and the
// total DynamicNode count in a single pass over the slot map, then applies
// the recommendation documented in DESIGN.md (Open Question 2): only
// range[0]'s tally feeds the soft warning, regardless of how many ranges
// the active system defines.
func (p *Pool) getCounts() Counts {
	ranges := p.system.Ranges()
	c := Counts{
		RangeStaticStatics: make([]int, len(ranges)),
		RangeStaticNodes:   make([]int, len(ranges)),
	}
	for addr, slot := range p.slots {
		masked := make([]ptrcore.PointerValue, p.batches)
		for b := 0; b < p.batches; b++ {
			if slot[b] != 0 {
				masked[b] = p.system.ApplyMask(slot[b])
			}
		}
		kind := classifyKind(masked)
		if kind == ptrcore.KindDynamicNode {
			c.DynamicNodes++
			continue
		}
		ri := p.system.RangeIndex(addr)
		if ri < 0 {
			continue
		}
		if kind == ptrcore.KindStaticStatic {
			c.RangeStaticStatics[ri]++
		} else {
			c.RangeStaticNodes[ri]++
		}
	}
	if len(ranges) > 0 {
		total := c.RangeStaticStatics[0] + c.RangeStaticNodes[0]
		c.RecommendSkipSticky = true
		if total > warnBasePointerThreshold {
			c.WarnBasePointers = true
		}
	}
	return c
}

// GetCounts exposes getCounts for callers outside the package (the
// orchestrator, tests) without re-triggering a batch mutation.
func (p *Pool) GetCounts() Counts { return p.getCounts() }

func classifyKind(slot []ptrcore.PointerValue) ptrcore.NodeKind {
	allEqual := true
	anyZero := false
	first := slot[0]
	for _, v := range slot {
		if v == 0 {
			anyZero = true
		}
		if v != first {
			allEqual = false
		}
	}
	if anyZero {
		return ptrcore.KindDynamicNode
	}
	if allEqual {
		return ptrcore.KindStaticStatic
	}
	return ptrcore.KindStaticNode
}

