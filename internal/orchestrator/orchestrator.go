// Package orchestrator sequences the pipeline end to end: ingest,
// preprocess, static detect, dynamic detect, base-pointer/index build,
// bitmap precompute, forward scan, and finding streaming.
//
// Grounded on the teacher's internal/pipeline/tree.go NewDecodeTree, which
// drives its own sequence of setup steps (memory, then decoders) through a
// single constructor that fails fast and wraps each step's error with the
// step's name; Run below follows the same shape, one stage per step, each
// wrapped with a *ptrcore.Error carrying the stage tag.
package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"pscan/internal/catalog"
	"pscan/internal/events"
	"pscan/internal/ingest"
	"pscan/internal/listdetect"
	"pscan/internal/nodepool"
	"pscan/internal/ptrcore"
	"pscan/internal/runconfig"
	"pscan/internal/scanner"
)

// Result is everything one Run produces: the raw structures and target
// paths, plus their already-encoded lines in discovery order.
type Result struct {
	RunID        uuid.UUID
	StaticLists  []ptrcore.Structure
	DynamicLists []ptrcore.Structure
	EntryPoints  []ptrcore.Structure
	TargetPaths  []ptrcore.TargetPath
	Lines        []string
}

// Orchestrator owns the sink attachment point and the encoder; System and
// Config are supplied per Run, and each Run creates its own ID allocator.
type Orchestrator struct {
	sink    events.Point[events.Sink]
	encoder ingest.Encoder
}

func New(encoder ingest.Encoder) *Orchestrator {
	if encoder == nil {
		encoder = ingest.TextEncoder{}
	}
	return &Orchestrator{encoder: encoder}
}

// AttachSink swaps the active event sink without touching any stage code,
// per the teacher's AttachPt-derived design note.
func (o *Orchestrator) AttachSink(sink events.Sink) {
	o.sink.Attach(sink)
}

func (o *Orchestrator) emitProgress(runID string, p events.Progress) {
	if o.sink.HasAttachedAndEnabled() {
		o.sink.First().Progress(runID, p)
	}
}

func (o *Orchestrator) emitTransition(runID string, t events.Transition) {
	if o.sink.HasAttachedAndEnabled() {
		o.sink.First().StageTransition(runID, t)
	}
}

func (o *Orchestrator) emitCounts(runID string, c events.Counts) {
	if o.sink.HasAttachedAndEnabled() {
		o.sink.First().Counts(runID, c)
	}
}

// lookupIndex answers scanner.StructureLookup by indexing every detected
// structure's addresses and ghosts per batch: static_list entries apply to
// every batch, dynamic_list/entry_point entries apply only to their own
// BatchIdx. Ghosts are indexed alongside addresses (P4: a structure's
// addresses and ghosts both live in targetNodes[b] for every batch b), so a
// forward-scan hit landing on a ghost still resolves to the owning
// structure's id and buildOffset.
type lookupEntry struct {
	id          int
	buildOffset int32
}

type lookupIndex struct {
	byAddrBatch map[[2]uint64]lookupEntry
}

func newLookupIndex(batchCount int, structs ...[]ptrcore.Structure) *lookupIndex {
	idx := &lookupIndex{byAddrBatch: make(map[[2]uint64]lookupEntry)}
	for _, group := range structs {
		for _, s := range group {
			batches := []int{s.BatchIdx}
			if s.BatchIdx < 0 {
				batches = make([]int, batchCount)
				for b := range batches {
					batches[b] = b
				}
			}
			for _, b := range batches {
				for _, a := range s.Addresses {
					key := [2]uint64{uint64(a), uint64(b)}
					idx.byAddrBatch[key] = lookupEntry{id: s.ID, buildOffset: s.BuildOffset}
				}
				for _, g := range s.Ghosts {
					key := [2]uint64{uint64(g), uint64(b)}
					idx.byAddrBatch[key] = lookupEntry{id: s.ID, buildOffset: s.BuildOffset}
				}
			}
		}
	}
	return idx
}

func (idx *lookupIndex) Lookup(addr ptrcore.Address, batch int) (int, int32, bool) {
	v, ok := idx.byAddrBatch[[2]uint64{uint64(addr), uint64(batch)}]
	if !ok {
		return 0, 0, false
	}
	return v.id, v.buildOffset, true
}

// Run executes the full pipeline over batches and returns every finding,
// already encoded. It yields to ctx at every stage boundary and
// approximately every 100 base pointers during the scan stage.
func (o *Orchestrator) Run(ctx context.Context, sys *catalog.System, cfg *runconfig.Config, batches []ptrcore.Batch, targetAddrs []ptrcore.Address) (Result, error) {
	runID := uuid.New()
	runIDStr := runID.String()
	result := Result{RunID: runID}

	pool := nodepool.New(sys).WithRunID(runID)
	for _, b := range batches {
		if ctx.Err() != nil {
			return result, ptrcore.WrapError(ptrcore.Cancelled, ptrcore.StagePreprocess, runID, ctx.Err())
		}
		if _, err := pool.AddBatch(b); err != nil {
			return result, err
		}
	}
	collapsed := pool.Collapse()
	nodeKinds := classifyNodes(collapsed)
	o.emitCounts(runIDStr, events.Counts{
		Static:  countKind(nodeKinds, ptrcore.KindStaticStatic) + countKind(nodeKinds, ptrcore.KindStaticNode),
		Dynamic: countKind(nodeKinds, ptrcore.KindDynamicNode),
	})

	structIDCounter := 1
	nextID := func() int {
		id := structIDCounter
		structIDCounter++
		return id
	}

	detOpts := listdetect.Options{
		MinChainLength:    cfg.MinChainLength,
		StaticMinChainLen: cfg.StaticMinChainLength,
		MaxGhostNodes:     cfg.MaxGhostNodes,
		SkipSticky:        cfg.SkipStickyPointers,
	}

	ids := ingest.NewIDAllocator()
	targetSet := make(map[ptrcore.Address]bool, len(targetAddrs))
	for _, a := range targetAddrs {
		targetSet[a] = true
	}

	// processedBaseAddrs dedups finding lines across both detection-phase
	// entry points and scan-phase hits, keyed on the entry point's or
	// target path's root address.
	processedBaseAddrs := make(map[ptrcore.Address]bool)
	var pendingEntryPoints []ptrcore.Structure
	var pendingTargetPaths []ptrcore.TargetPath

	flush := func() {
		for _, ep := range pendingEntryPoints {
			if processedBaseAddrs[ep.Root] {
				continue
			}
			processedBaseAddrs[ep.Root] = true
			result.Lines = append(result.Lines, o.encodeStructure(ids, ep, targetSet))
		}
		for _, tp := range pendingTargetPaths {
			if processedBaseAddrs[tp.BasePointer] {
				continue
			}
			processedBaseAddrs[tp.BasePointer] = true
			result.Lines = append(result.Lines, o.encodeTargetPath(ids, tp))
		}
		pendingEntryPoints = nil
		pendingTargetPaths = nil
	}

	o.emitTransition(runIDStr, events.Transition{Stage: events.StageStatic, Status: events.StatusActive})
	staticResult := listdetect.RunStatic(collapsed.StaticStatics, collapsed.BatchCount, detOpts, nextID)
	result.StaticLists = staticResult.Structures
	collapsed.StaticStatics = nil // already consumed
	o.emitTransition(runIDStr, events.Transition{Stage: events.StageStatic, Status: events.StatusCompleted})
	o.emitCounts(runIDStr, events.Counts{Static: len(staticResult.Structures)})
	for _, s := range staticResult.Structures {
		result.Lines = append(result.Lines, o.encodeStructure(ids, s, targetSet))
	}

	if ctx.Err() != nil {
		return result, ptrcore.WrapError(ptrcore.Cancelled, ptrcore.StageDynamicDetect, runID, ctx.Err())
	}

	o.emitTransition(runIDStr, events.Transition{Stage: events.StageDynamic, Status: events.StatusActive})
	dynamicResult := listdetect.RunDynamic(collapsed.StaticNodes, collapsed.BatchCount, staticResult.Targets, detOpts, nextID)
	result.DynamicLists = dynamicResult.Structures
	o.emitTransition(runIDStr, events.Transition{Stage: events.StageDynamic, Status: events.StatusCompleted})
	o.emitCounts(runIDStr, events.Counts{Dynamic: len(dynamicResult.Structures)})
	for _, s := range dynamicResult.Structures {
		result.Lines = append(result.Lines, o.encodeStructure(ids, s, targetSet))
	}
	// Entry points the dynamic pass terminated into are queued through the
	// same flush() path as scan-phase entry points so both sources dedup
	// against one another via processedBaseAddrs.
	result.EntryPoints = append(result.EntryPoints, dynamicResult.EntryPoints...)
	pendingEntryPoints = append(pendingEntryPoints, dynamicResult.EntryPoints...)

	if ctx.Err() != nil {
		return result, ptrcore.WrapError(ptrcore.Cancelled, ptrcore.StagePrecompute, runID, ctx.Err())
	}

	o.emitTransition(runIDStr, events.Transition{Stage: events.StagePrecompute, Status: events.StatusActive})
	batchIndexes := scanner.BuildBatchIndexes(collapsed.BatchCount, collapsed.StaticNodes, collapsed.DynamicNodes)
	basePointers := scanner.PromoteBasePointers(collapsed.StaticNodes, dynamicResult.TargetsByBatch, sys, cfg.EnabledRanges)

	basePointerAddrs := make(map[ptrcore.Address]bool, len(basePointers))
	for _, bp := range basePointers {
		basePointerAddrs[bp.Address] = true
	}
	var traversalNodes []ptrcore.Address
	for _, e := range collapsed.StaticNodes {
		if !basePointerAddrs[e.Address] {
			traversalNodes = append(traversalNodes, e.Address)
		}
	}
	for _, e := range collapsed.DynamicNodes {
		if !basePointerAddrs[e.Address] {
			traversalNodes = append(traversalNodes, e.Address)
		}
	}
	getValue := func(addr ptrcore.Address, batch int) (ptrcore.PointerValue, bool) {
		if batch < 0 || batch >= len(batchIndexes) {
			return 0, false
		}
		return batchIndexes[batch].Get(addr)
	}
	bitmaps := scanner.Precompute(traversalNodes, collapsed.BatchCount, uint32(cfg.MaxBreadth), batchIndexes, getValue)
	o.emitTransition(runIDStr, events.Transition{Stage: events.StagePrecompute, Status: events.StatusCompleted})

	if ctx.Err() != nil {
		return result, ptrcore.WrapError(ptrcore.Cancelled, ptrcore.StageScan, runID, ctx.Err())
	}

	lookup := newLookupIndex(collapsed.BatchCount, staticResult.Structures, dynamicResult.Structures, dynamicResult.EntryPoints)
	scanOpts := scanner.Options{
		MaxBreadth:          cfg.MaxBreadth,
		MaxDepth:            cfg.MaxDepth,
		TargetAddresses:     targetSet,
		TargetNodesByBatch:  dynamicResult.TargetsByBatch,
		EarlyOutTarget:      cfg.EarlyOutTarget,
		EarlyOutBasePointer: cfg.EarlyOutBasePointer,
	}

	o.emitTransition(runIDStr, events.Transition{Stage: events.StageScan, Status: events.StatusActive})

	canceled := false
	for i, bp := range basePointers {
		if i%100 == 0 && ctx.Err() != nil {
			canceled = true
			break
		}
		hits := scanner.ScanBasePointer(bp, batchIndexes, bitmaps, lookup, scanOpts)
		stop := false
		for _, h := range hits {
			if h.TargetPath != nil {
				result.TargetPaths = append(result.TargetPaths, *h.TargetPath)
				pendingTargetPaths = append(pendingTargetPaths, *h.TargetPath)
				if scanOpts.EarlyOutTarget {
					stop = true
				}
			}
			if h.EntryPoint != nil {
				result.EntryPoints = append(result.EntryPoints, *h.EntryPoint)
				pendingEntryPoints = append(pendingEntryPoints, *h.EntryPoint)
			}
		}
		if i%100 == 0 {
			o.emitProgress(runIDStr, events.Progress{Percent: (i * 100) / maxInt(len(basePointers), 1)})
		}
		if (i+1)%1000 == 0 {
			flush()
		}
		if stop && scanOpts.EarlyOutBasePointer {
			break
		}
	}
	flush()

	o.emitTransition(runIDStr, events.Transition{Stage: events.StageScan, Status: events.StatusCompleted})
	o.emitTransition(runIDStr, events.Transition{Stage: events.StageGenerate, Status: events.StatusCompleted})

	// Memory discipline: free everything that detection/scan no longer need.
	collapsed.StaticNodes = nil
	collapsed.DynamicNodes = nil
	basePointers = nil
	dynamicResult.TargetsByBatch = nil

	if canceled {
		return result, ptrcore.WrapError(ptrcore.Cancelled, ptrcore.StageScan, runID, ctx.Err())
	}
	return result, nil
}

func (o *Orchestrator) encodeStructure(ids *ingest.IDAllocator, s ptrcore.Structure, targetSet map[ptrcore.Address]bool) string {
	isTarget := addressesIntersect(s.Addresses, targetSet)
	id := ids.Allocate(s.Type == ptrcore.StaticList, isTarget)
	line, _ := o.encoder.Encode(ingest.Finding{
		ID:          id,
		Type:        s.Type.String(),
		Root:        s.Root,
		NodeCount:   s.NodeCount(),
		Addresses:   s.Addresses,
		Ghosts:      s.Ghosts,
		Stride:      s.Stride,
		Path:        s.Path,
		BuildOffset: s.BuildOffset,
		IsTarget:    isTarget,
	})
	return line
}

func (o *Orchestrator) encodeTargetPath(ids *ingest.IDAllocator, tp ptrcore.TargetPath) string {
	id := ids.Allocate(false, true)
	line, _ := o.encoder.Encode(ingest.Finding{
		ID:            id,
		Type:          "target_path",
		Root:          tp.BasePointer,
		NodeCount:     1,
		Addresses:     []ptrcore.Address{tp.BasePointer},
		Path:          tp.Path,
		TargetAddress: tp.TargetAddress,
		IsTarget:      true,
	})
	return line
}

func addressesIntersect(addrs []ptrcore.Address, set map[ptrcore.Address]bool) bool {
	for _, a := range addrs {
		if set[a] {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// classifyNodes reconstructs the per-batch union from collapsed arrays so
// Run can report a pre-detection static/dynamic count without holding onto
// the Pool past Collapse.
func classifyNodes(c nodepool.CollapsedPools) map[ptrcore.Address]ptrcore.NodeKind {
	out := make(map[ptrcore.Address]ptrcore.NodeKind, len(c.StaticStatics)+len(c.StaticNodes)+len(c.DynamicNodes))
	for _, e := range c.StaticStatics {
		out[e.Address] = ptrcore.KindStaticStatic
	}
	for _, e := range c.StaticNodes {
		out[e.Address] = ptrcore.KindStaticNode
	}
	for _, e := range c.DynamicNodes {
		out[e.Address] = ptrcore.KindDynamicNode
	}
	return out
}

func countKind(nodes map[ptrcore.Address]ptrcore.NodeKind, want ptrcore.NodeKind) int {
	n := 0
	for _, k := range nodes {
		if k == want {
			n++
		}
	}
	return n
}
