package scanner

import "pscan/internal/ptrcore"

// DriverResult accumulates everything a full forward-scan driver run
// produced, streamed out in StreamEvery-sized chunks by the caller.
type DriverResult struct {
	TargetPaths []ptrcore.TargetPath
	EntryPoints []ptrcore.Structure
}

// YieldEvery is how many base pointers the driver processes between
// cooperative yields (progress reporting); StreamEvery is how many it
// processes before the caller should drain accumulated findings.
const (
	YieldEvery   = 100
	StreamEvery  = 1000
)

// Drive runs ScanBasePointer over every base pointer in order, invoking
// onYield every YieldEvery base pointers and onStream every StreamEvery,
// so the orchestrator can service cancellation and stream findings without
// scanner needing to know about events or encoders directly.
func Drive(bases []BasePointer, batchIndexes []*BatchIndex, bitmaps map[ptrcore.Address]*NodeBitmap, lookup StructureLookup, opts Options, onYield func(done, total int), onStream func(result DriverResult)) DriverResult {
	var acc DriverResult
	var pending DriverResult

	for i, bp := range bases {
		hits := ScanBasePointer(bp, batchIndexes, bitmaps, lookup, opts)
		stop := false
		for _, h := range hits {
			if h.TargetPath != nil {
				acc.TargetPaths = append(acc.TargetPaths, *h.TargetPath)
				pending.TargetPaths = append(pending.TargetPaths, *h.TargetPath)
				if opts.EarlyOutTarget {
					stop = true
				}
			}
			if h.EntryPoint != nil {
				acc.EntryPoints = append(acc.EntryPoints, *h.EntryPoint)
				pending.EntryPoints = append(pending.EntryPoints, *h.EntryPoint)
			}
		}

		if (i+1)%YieldEvery == 0 && onYield != nil {
			onYield(i+1, len(bases))
		}
		if (i+1)%StreamEvery == 0 && onStream != nil && (len(pending.TargetPaths) > 0 || len(pending.EntryPoints) > 0) {
			onStream(pending)
			pending = DriverResult{}
		}
		if stop && opts.EarlyOutBasePointer {
			break
		}
	}
	if onStream != nil && (len(pending.TargetPaths) > 0 || len(pending.EntryPoints) > 0) {
		onStream(pending)
	}
	return acc
}
