package nodepool

import (
	"pscan/internal/catalog"
	"pscan/internal/ptrcore"
)

type row struct {
	Address ptrcore.Address
	Value   ptrcore.PointerValue
}

// vtableAnchorThreshold: a value pointed to by more than this many distinct
// addresses within a single batch is a shared anchor, not a structural
// pointer, and every row naming it is dropped.
const vtableAnchorThreshold = 10

// selfRefMin/selfRefMax bound the self-reference / pointer-into-own-header
// window: address - maskedValue in this (inclusive) range is discarded.
const (
	selfRefMin = -44
	selfRefMax = 4
)

// filterBatch applies the two per-batch noise filters (VTable anchor
// removal, self-reference removal) before rows are merged into the pool.
func filterBatch(b ptrcore.Batch, sys *catalog.System) []row {
	valueCounts := make(map[ptrcore.PointerValue]int, len(b.Addresses))
	for _, v := range b.Values {
		valueCounts[v]++
	}

	out := make([]row, 0, len(b.Addresses))
	for i, addr := range b.Addresses {
		v := b.Values[i]
		if valueCounts[v] > vtableAnchorThreshold {
			continue
		}
		masked := sys.ApplyMask(v)
		diff := int64(addr) - int64(masked)
		if diff >= selfRefMin && diff <= selfRefMax {
			continue
		}
		out = append(out, row{Address: addr, Value: v})
	}
	return out
}
