// Package scanner implements C5: promotion of base pointers, the
// traversal bitmap precompute, and the chunked forward-scan DFS driver.
//
// Grounded on the teacher's internal/memacc accessor lookup (range gating,
// per-ID indexing) and on other_examples' radix-bitmap AddressSet for the
// bitmap precompute idea, adapted from byte-range gating to pointer-graph
// traversal.
package scanner

import (
	"sort"

	"pscan/internal/catalog"
	"pscan/internal/nodepool"
	"pscan/internal/ptrcore"
)

// BasePointer is one StaticNode promoted into a forward-scan starting
// point: not already consumed by any batch's target-node pool.
type BasePointer struct {
	Address ptrcore.Address
	Values  []ptrcore.PointerValue // one per batch
}

// PromoteBasePointers selects every StaticNode whose address is not already
// claimed in any batch's target set, range-gates against enabledRanges, and
// returns them sorted by address for reproducible iteration order.
func PromoteBasePointers(entries []nodepool.StaticNodeEntry, targetsByBatch []map[ptrcore.Address]bool, sys *catalog.System, enabledRanges map[int]bool) []BasePointer {
	var out []BasePointer
	for _, e := range entries {
		claimed := false
		for _, targets := range targetsByBatch {
			if targets[e.Address] {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		if len(enabledRanges) > 0 {
			ri := sys.RangeIndex(e.Address)
			if ri < 0 || !enabledRanges[ri] {
				continue
			}
		}
		out = append(out, BasePointer{Address: e.Address, Values: e.Values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// BatchIndex is an O(1) address -> value lookup for one batch, built once
// per batch, covering every address (base pointer or traversal node) a scan
// might dereference.
type BatchIndex struct {
	values map[ptrcore.Address]ptrcore.PointerValue
}

func NewBatchIndex(capacity int) *BatchIndex {
	return &BatchIndex{values: make(map[ptrcore.Address]ptrcore.PointerValue, capacity)}
}

func (idx *BatchIndex) Add(addr ptrcore.Address, val ptrcore.PointerValue) {
	idx.values[addr] = val
}

// Get returns the value stored at addr in this batch, or (0, false) if
// addr was never present in this batch.
func (idx *BatchIndex) Get(addr ptrcore.Address) (ptrcore.PointerValue, bool) {
	v, ok := idx.values[addr]
	return v, ok
}

// BuildBatchIndexes constructs one BatchIndex per batch from the union of
// StaticNode and DynamicNode entries (base pointers are queried directly
// from BasePointer.Values and never need an index lookup for their own
// address).
func BuildBatchIndexes(batchCount int, staticNodes []nodepool.StaticNodeEntry, dynamicNodes []nodepool.DynamicNodeEntry) []*BatchIndex {
	idxs := make([]*BatchIndex, batchCount)
	hint := len(staticNodes) + len(dynamicNodes)
	for b := range idxs {
		idxs[b] = NewBatchIndex(hint)
	}
	for _, e := range staticNodes {
		for b := 0; b < batchCount && b < len(e.Values); b++ {
			idxs[b].Add(e.Address, e.Values[b])
		}
	}
	for _, e := range dynamicNodes {
		for b := 0; b < batchCount && b < len(e.Values); b++ {
			if e.Values[b] != 0 {
				idxs[b].Add(e.Address, e.Values[b])
			}
		}
	}
	return idxs
}
