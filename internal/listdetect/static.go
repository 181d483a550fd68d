// Package listdetect implements C4: the static and dynamic list detection
// passes built on top of internal/chainwalk's offset-following routine.
//
// Grounded on the teacher's internal/common/code_follower.go walking idiom,
// driven per offset the way internal/pipeline/tree.go's setupDecoders
// drives per-device setup in a deterministic loop.
package listdetect

import (
	"sort"

	"pscan/internal/chainwalk"
	"pscan/internal/nodepool"
	"pscan/internal/ptrcore"
)

// Offsets are the fixed byte offsets both passes sweep, smallest first.
func Offsets() []int32 {
	out := make([]int32, 0, 16)
	for o := int32(0); o <= 0x3C; o += 4 {
		out = append(out, o)
	}
	return out
}

// Options bundles the configurable detection tunables (runconfig feeds
// these in; unit tests construct them directly).
type Options struct {
	MinChainLength    int // used for dynamic pass; static pass uses StaticMinChainLen
	StaticMinChainLen int // default 15
	MaxGhostNodes     int // static pass ghost cap; dynamic pass forces 0
	SkipSticky        bool
}

// DefaultOptions mirrors SPEC_FULL.md's stated defaults.
func DefaultOptions() Options {
	return Options{
		MinChainLength:    5,
		StaticMinChainLen: 15,
		MaxGhostNodes:     10,
		SkipSticky:        true,
	}
}

// StaticResult is everything the static pass produces.
type StaticResult struct {
	Structures []ptrcore.Structure
	// PromotedStaticNodes holds the StaticStatics that survive to become
	// StaticNode base-pointer candidates (skipSticky == false only).
	PromotedStaticNodes []nodepool.StaticNodeEntry
	// Targets is one set shared by every batch, since StaticStatic values
	// don't vary by batch: the nodes and ghosts of every static list.
	Targets map[ptrcore.Address]bool
}

// RunStatic sweeps Offsets() over the StaticStatic pool, removing winning
// chains (and their ghosts) from the working pool after each offset so
// later offsets can't re-detect them.
func RunStatic(entries []nodepool.StaticStaticEntry, batchCount int, opts Options, nextID func() int) StaticResult {
	values := make(map[ptrcore.Address]ptrcore.PointerValue, len(entries))
	pool := make([]ptrcore.Address, 0, len(entries))
	for _, e := range entries {
		values[e.Address] = e.Value
		pool = append(pool, e.Address)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })

	getValue := func(a ptrcore.Address) (ptrcore.PointerValue, bool) {
		v, ok := values[a]
		return v, ok
	}

	targets := make(map[ptrcore.Address]bool)
	var structures []ptrcore.Structure

	for _, offset := range Offsets() {
		chains, _ := chainwalk.WalkChainsAtOffset(pool, offset, getValue, chainwalk.Options{
			MinChainLength: opts.StaticMinChainLen,
			MaxGhostNodes:  opts.MaxGhostNodes,
		})
		resolved := chainwalk.ResolveChainConflicts(chains)

		consumed := make(map[ptrcore.Address]bool)
		for _, c := range resolved {
			if !c.IsHead || len(c.Nodes) < opts.StaticMinChainLen {
				continue
			}
			sorted := append([]ptrcore.Address(nil), c.Nodes...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			structures = append(structures, ptrcore.Structure{
				ID:          nextID(),
				Type:        ptrcore.StaticList,
				Root:        c.Nodes[0],
				Addresses:   sorted,
				Ghosts:      c.Ghosts,
				Stride:      dominantStride(sorted),
				BuildOffset: offset,
				BatchIdx:    -1,
			})
			for _, n := range c.Nodes {
				targets[n] = true
				consumed[n] = true
			}
			for _, g := range c.Ghosts {
				targets[g] = true
			}
		}
		if len(consumed) > 0 {
			filtered := pool[:0:0]
			for _, a := range pool {
				if !consumed[a] {
					filtered = append(filtered, a)
				}
			}
			pool = filtered
		}
	}

	result := StaticResult{Structures: structures, Targets: targets}
	if !opts.SkipSticky {
		for _, a := range pool {
			vals := make([]ptrcore.PointerValue, batchCount)
			for b := range vals {
				vals[b] = values[a]
			}
			result.PromotedStaticNodes = append(result.PromotedStaticNodes, nodepool.StaticNodeEntry{Address: a, Values: vals})
		}
	}
	return result
}
