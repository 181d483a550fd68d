package chainwalk

import (
	"sort"

	"pscan/internal/ptrcore"
)

// ResolveChainConflicts groups chains that share at least one node and
// picks exactly one winner per group: the chain with the most nodes,
// ties broken by smaller root address. The winner keeps IsHead=true; every
// other chain in the group is demoted to IsHead=false.
func ResolveChainConflicts(chains []Chain) []Chain {
	nodeOwner := make(map[ptrcore.Address]int)
	parent := make([]int, len(chains))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i, c := range chains {
		for _, n := range c.Nodes {
			if j, ok := nodeOwner[n]; ok {
				union(i, j)
			} else {
				nodeOwner[n] = i
			}
		}
	}

	groups := make(map[int][]int)
	for i := range chains {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	out := make([]Chain, len(chains))
	copy(out, chains)

	for _, idxs := range groups {
		sort.Slice(idxs, func(a, b int) bool {
			ca, cb := chains[idxs[a]], chains[idxs[b]]
			if len(ca.Nodes) != len(cb.Nodes) {
				return len(ca.Nodes) > len(cb.Nodes)
			}
			return ca.Nodes[0] < cb.Nodes[0]
		})
		for pos, idx := range idxs {
			out[idx].IsHead = pos == 0
		}
	}
	return out
}
