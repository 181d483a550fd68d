// Package chainwalk implements the single offset-following routine shared
// by static and dynamic list detection: head identification, forward
// walking with ghost bridging, and conflict resolution between chains that
// share nodes.
//
// Grounded on the teacher's internal/common/code_follower.go: a pure,
// bounded, stepwise address-following routine with explicit stop
// conditions. WalkChainsAtOffset plays the role CodeFollower.FollowSingleAtom
// plays for instruction streams, but for pointer chains: no back-reference
// to orchestrator state, every input supplied by the caller.
package chainwalk

import (
	"sort"

	"pscan/internal/ptrcore"
)

// ValueFunc returns the value stored at addr and whether addr is present at
// all. Static detection closes over a single masked value; dynamic
// detection closes over one batch's value.
type ValueFunc func(addr ptrcore.Address) (ptrcore.PointerValue, bool)

// Options configures one WalkChainsAtOffset call.
type Options struct {
	MinChainLength int
	MaxGhostNodes  int
	// TargetPool, if non-nil, causes a chain landing on a member address to
	// terminate as an entry point instead of continuing.
	TargetPool map[ptrcore.Address]bool
}

// Chain is a detected (or losing) run of nodes linked by offset.
type Chain struct {
	Nodes  []ptrcore.Address
	Ghosts []ptrcore.Address
	IsHead bool
}

// EntryPointHit is a chain that terminated inside opts.TargetPool.
type EntryPointHit struct {
	Nodes []ptrcore.Address
}

// WalkChainsAtOffset is the shared core of static and dynamic list
// detection: identify heads, walk forward following offset with ghost
// bridging, and classify the result.
func WalkChainsAtOffset(pool []ptrcore.Address, offset int32, getValue ValueFunc, opts Options) (chains []Chain, entryPoints []EntryPointHit) {
	inPool := make(map[ptrcore.Address]bool, len(pool))
	for _, a := range pool {
		inPool[a] = true
	}

	pointedTo := make(map[ptrcore.Address]bool, len(pool))
	for _, a := range pool {
		v, ok := getValue(a)
		if !ok {
			continue
		}
		target := ptrcore.Address(int64(v) + int64(offset))
		if inPool[target] {
			pointedTo[target] = true
		}
	}

	heads := make([]ptrcore.Address, 0)
	for _, a := range pool {
		if !pointedTo[a] {
			heads = append(heads, a)
		}
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })

	processed := make(map[ptrcore.Address]bool, len(pool))

	for _, head := range heads {
		if processed[head] {
			continue
		}
		chain, ep, ok := walkOne(head, inPool, getValue, offset, opts, processed)
		if !ok {
			continue
		}
		if ep != nil {
			entryPoints = append(entryPoints, *ep)
			continue
		}
		if len(chain.Nodes) >= opts.MinChainLength {
			chain.IsHead = true
			chains = append(chains, chain)
		}
	}
	return chains, entryPoints
}

func walkOne(head ptrcore.Address, inPool map[ptrcore.Address]bool, getValue ValueFunc, offset int32, opts Options, processed map[ptrcore.Address]bool) (Chain, *EntryPointHit, bool) {
	var nodes, ghosts []ptrcore.Address
	current := head
	ghostBudget := opts.MaxGhostNodes
	visited := make(map[ptrcore.Address]bool)

	for {
		if visited[current] {
			// a cycle fed back into itself; stop here rather than loop
			// forever. The preprocessor's self-reference filter catches
			// the common case, but a cycle spanning several nodes at this
			// particular offset is still possible.
			break
		}
		visited[current] = true

		if opts.TargetPool != nil && opts.TargetPool[current] {
			nodes = append(nodes, current)
			processed[current] = true
			if len(nodes) == 0 {
				return Chain{}, nil, false
			}
			return Chain{}, &EntryPointHit{Nodes: nodes}, true
		}
		if !inPool[current] {
			break
		}
		val, ok := getValue(current)
		if !ok {
			break
		}
		nodes = append(nodes, current)
		processed[current] = true

		expected := ptrcore.Address(int64(val) + int64(offset))
		if isResumable(expected, inPool, opts.TargetPool) {
			current = expected
			continue
		}

		// ghost bridging: walk expected, expected+offset, ... looking for
		// the first bridge point back into the pool (or into the target
		// set), using only expected + k*offset arithmetic (never current's
		// own address), since ghosts represent missing entries on the
		// forward path.
		bridge := expected
		bridged := false
		for ghostBudget > 0 {
			ghosts = append(ghosts, bridge)
			ghostBudget--
			afterBridge := ptrcore.Address(int64(bridge) + int64(offset))
			if isResumable(afterBridge, inPool, opts.TargetPool) {
				current = afterBridge
				bridged = true
				break
			}
			bridge = afterBridge
		}
		if !bridged {
			break
		}
	}

	if len(nodes) == 0 {
		return Chain{}, nil, false
	}
	return Chain{Nodes: nodes, Ghosts: ghosts}, nil, true
}

// isResumable reports whether addr is a valid place for the walk to resume:
// either a live pool member, or a member of the target set (in which case
// the next loop iteration's top-of-loop check terminates the chain as an
// entry point).
func isResumable(addr ptrcore.Address, inPool map[ptrcore.Address]bool, targetPool map[ptrcore.Address]bool) bool {
	if inPool[addr] {
		return true
	}
	return targetPool != nil && targetPool[addr]
}
