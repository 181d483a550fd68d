package nodepool

import (
	"sort"

	"pscan/internal/ptrcore"
)

// StaticStaticEntry is one collapsed StaticStatic-tier node: a single
// masked value, identical across every batch.
type StaticStaticEntry struct {
	Address ptrcore.Address
	Value   ptrcore.PointerValue
}

// StaticNodeEntry is one collapsed StaticNode-tier node: one masked value
// per batch, all non-zero.
type StaticNodeEntry struct {
	Address ptrcore.Address
	Values  []ptrcore.PointerValue
}

// DynamicNodeEntry is one collapsed DynamicNode-tier node: one masked value
// per batch, 0 meaning absent in that batch.
type DynamicNodeEntry struct {
	Address ptrcore.Address
	Values  []ptrcore.PointerValue
}

// CollapsedPools is the disjoint three-way partition handed to detection
// and scanning. After Collapse is called the Pool's own map is released.
type CollapsedPools struct {
	SystemName    string
	BatchCount    int
	StaticStatics []StaticStaticEntry
	StaticNodes   []StaticNodeEntry
	DynamicNodes  []DynamicNodeEntry
}

// Collapse applies the system mask to every stored value, classifies every
// address, and partitions the pool into the three typed arrays. The Pool's
// internal map is released afterward; Collapse must not be called twice.
func (p *Pool) Collapse() CollapsedPools {
	out := CollapsedPools{SystemName: p.system.Name, BatchCount: p.batches}
	for addr, slot := range p.slots {
		masked := make([]ptrcore.PointerValue, p.batches)
		for b := 0; b < p.batches; b++ {
			if slot[b] != 0 {
				masked[b] = p.system.ApplyMask(slot[b])
			}
		}
		switch classifyKind(masked) {
		case ptrcore.KindStaticStatic:
			out.StaticStatics = append(out.StaticStatics, StaticStaticEntry{Address: addr, Value: masked[0]})
		case ptrcore.KindStaticNode:
			out.StaticNodes = append(out.StaticNodes, StaticNodeEntry{Address: addr, Values: masked})
		default:
			out.DynamicNodes = append(out.DynamicNodes, DynamicNodeEntry{Address: addr, Values: masked})
		}
	}
	sort.Slice(out.StaticStatics, func(i, j int) bool { return out.StaticStatics[i].Address < out.StaticStatics[j].Address })
	sort.Slice(out.StaticNodes, func(i, j int) bool { return out.StaticNodes[i].Address < out.StaticNodes[j].Address })
	sort.Slice(out.DynamicNodes, func(i, j int) bool { return out.DynamicNodes[i].Address < out.DynamicNodes[j].Address })
	p.slots = make(map[ptrcore.Address][]ptrcore.PointerValue)
	return out
}
