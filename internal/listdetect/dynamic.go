package listdetect

import (
	"sort"

	"pscan/internal/chainwalk"
	"pscan/internal/nodepool"
	"pscan/internal/ptrcore"
)

// DynamicResult is everything the dynamic pass produces.
type DynamicResult struct {
	Structures  []ptrcore.Structure
	EntryPoints []ptrcore.Structure
	// TargetsByBatch accumulates every node (static pass seed plus dynamic
	// discoveries) consumed in batch b, used by the forward scanner as its
	// termination set.
	TargetsByBatch []map[ptrcore.Address]bool
}

// RunDynamic sweeps (offset, batch) in that nested order over the
// StaticNode pool, one independent working set per batch seeded with
// staticTargets (identical across batches since it came from the static
// pass).
func RunDynamic(entries []nodepool.StaticNodeEntry, batchCount int, staticTargets map[ptrcore.Address]bool, opts Options, nextID func() int) DynamicResult {
	result := DynamicResult{TargetsByBatch: make([]map[ptrcore.Address]bool, batchCount)}

	workingSets := make([]map[ptrcore.Address]ptrcore.PointerValue, batchCount)
	for b := 0; b < batchCount; b++ {
		ws := make(map[ptrcore.Address]ptrcore.PointerValue, len(entries))
		for _, e := range entries {
			if !staticTargets[e.Address] {
				ws[e.Address] = e.Values[b]
			}
		}
		workingSets[b] = ws

		targets := make(map[ptrcore.Address]bool, len(staticTargets))
		for a := range staticTargets {
			targets[a] = true
		}
		result.TargetsByBatch[b] = targets
	}

	for _, offset := range Offsets() {
		for b := 0; b < batchCount; b++ {
			ws := workingSets[b]
			if len(ws) == 0 {
				continue
			}
			pool := make([]ptrcore.Address, 0, len(ws))
			for a := range ws {
				pool = append(pool, a)
			}
			sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })

			getValue := func(a ptrcore.Address) (ptrcore.PointerValue, bool) {
				v, ok := ws[a]
				return v, ok
			}

			chains, entryHits := chainwalk.WalkChainsAtOffset(pool, offset, getValue, chainwalk.Options{
				MinChainLength: opts.MinChainLength,
				MaxGhostNodes:  0,
				TargetPool:     result.TargetsByBatch[b],
			})
			resolved := chainwalk.ResolveChainConflicts(chains)

			for _, c := range resolved {
				for _, n := range c.Nodes {
					delete(ws, n)
				}
				if !c.IsHead || len(c.Nodes) < opts.MinChainLength {
					continue
				}
				sorted := append([]ptrcore.Address(nil), c.Nodes...)
				sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
				result.Structures = append(result.Structures, ptrcore.Structure{
					ID:          nextID(),
					Type:        ptrcore.DynamicList,
					Root:        c.Nodes[0],
					Addresses:   sorted,
					Stride:      dominantStride(sorted),
					BuildOffset: offset,
					BatchIdx:    b,
				})
				for _, n := range c.Nodes {
					result.TargetsByBatch[b][n] = true
				}
			}

			for _, hit := range entryHits {
				for _, n := range hit.Nodes {
					delete(ws, n)
				}
				result.EntryPoints = append(result.EntryPoints, ptrcore.Structure{
					ID:          nextID(),
					Type:        ptrcore.EntryPoint,
					Root:        hit.Nodes[0],
					Addresses:   hit.Nodes,
					BuildOffset: offset,
					BatchIdx:    b,
					Path:        []int32{offset},
					TargetStruct: -1,
				})
			}
		}
	}
	return result
}
