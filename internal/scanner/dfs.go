package scanner

import (
	"math/bits"

	"pscan/internal/ptrcore"
)

// entryPointBatchFraction / entryPointModalFraction are the moving-entry-
// point thresholds named in SPEC_FULL.md's Open Question 3: implemented
// exactly as specified, not tuned.
const (
	entryPointBatchFraction = 0.66
	entryPointModalFraction = 0.5
)

// Options configures one forward-scan run.
type Options struct {
	MaxBreadth int32 // masked with &^3 by the caller (runconfig)
	MaxDepth   int
	// TargetAddresses is the user-supplied injected target set.
	TargetAddresses map[ptrcore.Address]bool
	// TargetNodesByBatch is targetNodes[b]: every structure/ghost address
	// detection has consumed for batch b (staticResult.Targets unioned with
	// dynamicResult.TargetsByBatch[b]). Distinct from TargetAddresses, which
	// is the caller-injected pool from step 1, not a detection byproduct.
	TargetNodesByBatch  []map[ptrcore.Address]bool
	EarlyOutTarget      bool
	EarlyOutBasePointer bool
}

// StructureLookup answers "is addr a node of some known structure, and if
// so which one" for a given batch — the merged static_list/dynamic_list/
// entry_point node index the orchestrator maintains.
type StructureLookup interface {
	Lookup(addr ptrcore.Address, batch int) (structID int, buildOffset int32, ok bool)
}

// Hit is one forward-scan result: either a TargetPath or a promotion into
// an entry-point record.
type Hit struct {
	BasePointer Address
	TargetPath  *ptrcore.TargetPath
	EntryPoint  *ptrcore.Structure
}

// Address is a local alias kept for readability inside this file's
// signatures; it is ptrcore.Address.
type Address = ptrcore.Address

// ScanBasePointer runs the chunked DFS for a single base pointer across
// every batch simultaneously, returning any hits found before maxDepth or
// an empty combined bitmap stops the walk.
func ScanBasePointer(bp BasePointer, batchIndexes []*BatchIndex, bitmaps map[ptrcore.Address]*NodeBitmap, lookup StructureLookup, opts Options) []Hit {
	batchCount := len(batchIndexes)
	if batchCount == 0 || opts.MaxBreadth <= 0 {
		return nil
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 12
	}
	if maxDepth > 20 {
		maxDepth = 20
	}

	var hits []Hit
	current := make([]Address, batchCount)
	for i, v := range bp.Values {
		current[i] = Address(v)
	}

	var path []int32
	depth := 1

	for depth <= maxDepth {
		if allInTargetSet(current, opts.TargetAddresses) {
			hits = append(hits, Hit{BasePointer: bp.Address, TargetPath: &ptrcore.TargetPath{
				BasePointer:   bp.Address,
				Path:          append([]int32(nil), path...),
				TargetAddress: current[0],
			}})
			break
		}

		if structID, buildOffset, unanimous := allSameStructure(current, lookup); unanimous {
			hits = append(hits, Hit{BasePointer: bp.Address, EntryPoint: &ptrcore.Structure{
				Type:             ptrcore.EntryPoint,
				Root:             bp.Address,
				Path:             append([]int32(nil), path...),
				TargetStruct:     structID,
				BuildOffset:      buildOffset,
				MovingEntryPoint: true,
			}})
			break
		}

		chosenOffset, found := nextChunkOffset(current, opts.MaxBreadth, batchIndexes, bitmaps)
		if !found {
			break
		}

		if epHit := checkMajorityEntryVote(current, chosenOffset, batchIndexes, lookup, opts.TargetNodesByBatch); epHit != nil {
			epHit.Path = append(append([]int32(nil), path...), chosenOffset)
			hits = append(hits, Hit{BasePointer: bp.Address, EntryPoint: epHit})
			break
		}

		for b := 0; b < batchCount; b++ {
			v, ok := batchIndexes[b].Get(current[b])
			if !ok {
				current[b] = 0
				continue
			}
			current[b] = Address(int64(v) + int64(chosenOffset))
		}
		path = append(path, chosenOffset)
		depth++
	}
	return hits
}

func allInTargetSet(current []Address, targets map[ptrcore.Address]bool) bool {
	if len(targets) == 0 {
		return false
	}
	if !targets[current[0]] {
		return false
	}
	for _, c := range current {
		if !targets[c] {
			return false
		}
	}
	return true
}

func allSameStructure(current []Address, lookup StructureLookup) (structID int, buildOffset int32, unanimous bool) {
	if lookup == nil {
		return 0, 0, false
	}
	first, fOffset, ok := lookup.Lookup(current[0], 0)
	if !ok {
		return 0, 0, false
	}
	for b := 1; b < len(current); b++ {
		id, _, ok := lookup.Lookup(current[b], b)
		if !ok || id != first {
			return 0, 0, false
		}
	}
	return first, fOffset, true
}

// nextChunkOffset walks chunks of chunkBytes across [0,maxBreadth], ANDing
// the per-batch chunk word, and returns the smallest offset whose bit is
// set in the combined word across every batch.
func nextChunkOffset(current []Address, maxBreadth int32, batchIndexes []*BatchIndex, bitmaps map[ptrcore.Address]*NodeBitmap) (int32, bool) {
	for chunkStart := int32(0); chunkStart <= maxBreadth; chunkStart += chunkBytes {
		combined := ^uint32(0)
		for b, idx := range batchIndexes {
			v, ok := idx.Get(current[b])
			if !ok {
				combined = 0
				break
			}
			word := LookupOrCompute(current[b], b, v, chunkStart, bitmaps, idx)
			combined &= word
			if combined == 0 {
				break
			}
		}
		if combined == 0 {
			continue
		}
		bit := bits.TrailingZeros32(combined)
		offset := chunkStart + int32(bit)*4
		if offset > maxBreadth {
			continue
		}
		return offset, true
	}
	return 0, false
}

// checkMajorityEntryVote implements the >0.66 batch-fraction / >50% modal-
// offset entry-point promotion rule: for each batch, the CANDIDATE address
// (value-at-current[b], advanced by chosenOffset) is tested against that
// batch's known structure/target nodes, not current[b] itself. A hit is
// either a lookup match (a structure, its ghosts, or a prior-phase entry
// point — see newLookupIndex) or membership in that batch's targetNodes[b]
// pool, the set of addresses detection has already consumed for batch b.
func checkMajorityEntryVote(current []Address, chosenOffset int32, batchIndexes []*BatchIndex, lookup StructureLookup, targetNodesByBatch []map[ptrcore.Address]bool) *ptrcore.Structure {
	batchCount := len(batchIndexes)
	matchCount := 0
	offsetVotes := make(map[int32]int)
	var anyStructID int
	haveStructID := false

	for b := 0; b < batchCount; b++ {
		v, ok := batchIndexes[b].Get(current[b])
		if !ok {
			continue
		}
		candidate := Address(int64(v) + int64(chosenOffset))

		if lookup != nil {
			if structID, buildOffset, ok := lookup.Lookup(candidate, b); ok {
				matchCount++
				offsetVotes[buildOffset]++
				if !haveStructID {
					anyStructID = structID
					haveStructID = true
				}
				continue
			}
		}
		if b < len(targetNodesByBatch) && targetNodesByBatch[b][candidate] {
			matchCount++
		}
	}

	threshold := int(float64(batchCount) * entryPointBatchFraction)
	if matchCount <= threshold {
		return nil
	}

	modalOffset, modalCount := int32(0), 0
	for off, count := range offsetVotes {
		if count > modalCount {
			modalOffset, modalCount = off, count
		}
	}
	if modalCount == 0 || float64(modalCount) <= float64(matchCount)*entryPointModalFraction {
		return nil
	}

	return &ptrcore.Structure{
		BuildOffset:      modalOffset,
		TargetStruct:     anyStructID,
		MovingEntryPoint: true,
	}
}
