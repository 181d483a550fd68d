package ingest

// ID allocation bands, per the external-interfaces section: static-list
// findings from 100000, target-covering findings from 1000, everything
// else from 10000.
const (
	staticListIDBase     = 100000
	targetCoveringIDBase = 1000
	defaultIDBase        = 10000
)

// IDAllocator hands out finding IDs for one run, one counter per band.
type IDAllocator struct {
	nextStatic  int
	nextTarget  int
	nextDefault int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		nextStatic:  staticListIDBase,
		nextTarget:  targetCoveringIDBase,
		nextDefault: defaultIDBase,
	}
}

// Allocate picks the band for a finding: static list wins first, then
// target-covering, then the default band. isStaticList and isTargetCovering
// are evaluated by the caller (the orchestrator knows the structure type
// and whether any of its addresses intersect the user-supplied target set).
func (a *IDAllocator) Allocate(isStaticList, isTargetCovering bool) int {
	switch {
	case isStaticList:
		id := a.nextStatic
		a.nextStatic++
		return id
	case isTargetCovering:
		id := a.nextTarget
		a.nextTarget++
		return id
	default:
		id := a.nextDefault
		a.nextDefault++
		return id
	}
}
