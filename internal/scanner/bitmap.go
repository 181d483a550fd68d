package scanner

import "pscan/internal/ptrcore"

// precomputeBudgetBytes bounds the whole bitmap store, per SPEC_FULL.md
// section 4.5.
const precomputeBudgetBytes = 80 * 1024 * 1024

// chunkBytes is the DFS chunk width: 0x80 bytes of offset space per step.
const chunkBytes = 0x80

// offsetsPerWord is how many 4-byte-aligned offsets one 32-bit word covers;
// one word spans exactly chunkBytes of offset space.
const offsetsPerWord = 32

// NodeBitmap is the precomputed per-batch, per-word presence bitmap for one
// traversal node: bit k of word (b*WordsPerBatch+s) is set iff
// value(node, b) + (s*32+k)*4 is present in batch b's index.
type NodeBitmap struct {
	WordsPerBatch int
	Words         []uint32 // length BatchCount * WordsPerBatch
}

// Precompute builds NodeBitmap entries for every traversal node (every
// batch-index address that is not itself a base pointer), sized so the
// whole store stays within precomputeBudgetBytes.
func Precompute(traversalNodes []ptrcore.Address, batchCount int, maxBreadth uint32, batchIndexes []*BatchIndex, getValue func(addr ptrcore.Address, batch int) (ptrcore.PointerValue, bool)) map[ptrcore.Address]*NodeBitmap {
	n := len(traversalNodes)
	if n == 0 || batchCount == 0 {
		return nil
	}

	wantWords := int(ceilDiv(uint64(maxBreadth), offsetsPerWord*4))
	if wantWords < 1 {
		wantWords = 1
	}
	maxWordsByBudget := int(precomputeBudgetBytes / 4 / uint64Max(uint64(n*batchCount), 1))
	wordsPerBatch := wantWords
	if wordsPerBatch > maxWordsByBudget {
		wordsPerBatch = maxWordsByBudget
	}
	if wordsPerBatch < 1 {
		wordsPerBatch = 1
	}

	out := make(map[ptrcore.Address]*NodeBitmap, n)
	for _, addr := range traversalNodes {
		nb := &NodeBitmap{WordsPerBatch: wordsPerBatch, Words: make([]uint32, batchCount*wordsPerBatch)}
		for b := 0; b < batchCount; b++ {
			v, ok := getValue(addr, b)
			if !ok {
				continue
			}
			for s := 0; s < wordsPerBatch; s++ {
				nb.Words[b*wordsPerBatch+s] = ChunkWord(v, int32(s*offsetsPerWord*4), batchIndexes[b])
			}
		}
		out[addr] = nb
	}
	return out
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func uint64Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// ChunkWord computes, for one batch, the 32-bit presence word for the
// offset range [chunkStart, chunkStart+0x7C] relative to val — the single
// function used both by Precompute (one call per word) and by the
// on-the-fly fallback, so the two paths agree bit-for-bit.
func ChunkWord(val ptrcore.PointerValue, chunkStart int32, idx *BatchIndex) uint32 {
	var word uint32
	for k := 0; k < offsetsPerWord; k++ {
		target := ptrcore.Address(int64(val) + int64(chunkStart) + int64(k)*4)
		if _, ok := idx.Get(target); ok {
			word |= 1 << uint(k)
		}
	}
	return word
}

// LookupOrCompute returns the chunk word for addr/batch: from the
// precomputed bitmap when the chunk falls within its coverage, else
// computed on the fly via ChunkWord (guaranteed to agree bit-for-bit since
// Precompute builds its words with ChunkWord too).
func LookupOrCompute(addr ptrcore.Address, batch int, val ptrcore.PointerValue, chunkStart int32, bitmaps map[ptrcore.Address]*NodeBitmap, idx *BatchIndex) uint32 {
	nb, ok := bitmaps[addr]
	if ok {
		wordIdx := chunkStart / (offsetsPerWord * 4)
		if wordIdx >= 0 && int(wordIdx) < nb.WordsPerBatch {
			return nb.Words[batch*nb.WordsPerBatch+int(wordIdx)]
		}
	}
	return ChunkWord(val, chunkStart, idx)
}
