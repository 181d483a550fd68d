// Package catalog holds per-system memory descriptors: the address range(s)
// a console's memory spans, the pointer mask to apply, endianness, and the
// rule for subdividing the range into scan-gateable chunks.
package catalog

import (
	"fmt"

	"pscan/internal/ptrcore"
)

// RangeMode tags how a System's memory range is subdivided for scan gating.
type RangeMode string

const (
	ModeFull    RangeMode = "full"
	ModeHalf    RangeMode = "half"
	ModeQuarter RangeMode = "quarter"
	ModeDual    RangeMode = "dual"
)

// Range is one contiguous, 4-byte-aligned subdivision of a System's memory
// space.
type Range struct {
	Label string
	Min   ptrcore.Address
	Max   ptrcore.Address
}

// System is the immutable descriptor for one supported platform/title
// memory layout.
type System struct {
	Name         string
	Mask         *uint32 // nil means no mask is applied
	MemMin       ptrcore.Address
	MemMax       ptrcore.Address
	// DualMin/DualMax are only set when Mode == ModeDual, naming the second
	// region.
	DualMin      ptrcore.Address
	DualMax      ptrcore.Address
	Use24Bit     bool
	UseBigEndian bool
	Mode         RangeMode
}

// normalizeRangeMode resolves Open Question 1: the built-in table (and any
// INI override) may spell the quarter mode "quater". Any other unknown tag
// is a hard construction-time error, never a silent fallback to full.
func normalizeRangeMode(raw string) (RangeMode, error) {
	switch raw {
	case "full":
		return ModeFull, nil
	case "half":
		return ModeHalf, nil
	case "quarter", "quater":
		return ModeQuarter, nil
	case "dual":
		return ModeDual, nil
	default:
		return "", fmt.Errorf("catalog: unrecognised range mode %q", raw)
	}
}

// align4 rounds addr down to the nearest multiple of 4.
func align4(addr uint64) uint64 { return addr &^ 3 }

// Ranges derives the System's range list. Subdivision is deterministic and
// 4-byte aligned, and the ranges always cover [MemMin,MemMax] (plus
// [DualMin,DualMax] for dual-region systems) without gaps or overlaps.
func (s *System) Ranges() []Range {
	switch s.Mode {
	case ModeFull:
		return []Range{{Label: "full", Min: s.MemMin, Max: s.MemMax}}
	case ModeHalf:
		mid := ptrcore.Address(align4(uint64(s.MemMin) + (uint64(s.MemMax)-uint64(s.MemMin))/2))
		return []Range{
			{Label: "half0", Min: s.MemMin, Max: mid - 4},
			{Label: "half1", Min: mid, Max: s.MemMax},
		}
	case ModeQuarter:
		total := uint64(s.MemMax) - uint64(s.MemMin) + 1
		q := align4(total / 4)
		ranges := make([]Range, 4)
		cur := uint64(s.MemMin)
		for i := 0; i < 4; i++ {
			var end uint64
			if i == 3 {
				end = uint64(s.MemMax)
			} else {
				end = cur + q - 4
			}
			ranges[i] = Range{Label: fmt.Sprintf("quarter%d", i), Min: ptrcore.Address(cur), Max: ptrcore.Address(end)}
			cur = end + 4
		}
		return ranges
	case ModeDual:
		midA := ptrcore.Address(align4(uint64(s.MemMin) + (uint64(s.MemMax)-uint64(s.MemMin))/2))
		midB := ptrcore.Address(align4(uint64(s.DualMin) + (uint64(s.DualMax)-uint64(s.DualMin))/2))
		return []Range{
			{Label: "dualA0", Min: s.MemMin, Max: midA - 4},
			{Label: "dualA1", Min: midA, Max: s.MemMax},
			{Label: "dualB0", Min: s.DualMin, Max: midB - 4},
			{Label: "dualB1", Min: midB, Max: s.DualMax},
		}
	default:
		return nil
	}
}

// RangeIndex returns the 0-based index of the range addr falls within, or -1
// if addr lies outside every range.
func (s *System) RangeIndex(addr ptrcore.Address) int {
	for i, r := range s.Ranges() {
		if addr >= r.Min && addr <= r.Max {
			return i
		}
	}
	return -1
}

// ApplyMask returns v masked by the system's pointer mask, or v unchanged if
// the system carries no mask.
func (s *System) ApplyMask(v ptrcore.PointerValue) ptrcore.PointerValue {
	if s.Mask == nil {
		return v
	}
	return ptrcore.PointerValue(uint32(v) & *s.Mask)
}

// InMemoryRange reports whether value is a plausible pointer for this
// system: inside the primary range, or (dual-region) inside either region
// with the dual-region bit tests satisfied.
func (s *System) InMemoryRange(value ptrcore.PointerValue) bool {
	v := uint32(value)
	if s.Mode == ModeDual {
		if v&(1<<31) == 0 {
			return false
		}
		if v>>28&1 == 0 {
			return v >= uint32(s.MemMin) && v <= uint32(s.MemMax)
		}
		return v >= uint32(s.DualMin) && v <= uint32(s.DualMax)
	}
	return v >= uint32(s.MemMin) && v <= uint32(s.MemMax)
}

// Catalog is a lookup table of Systems keyed by name.
type Catalog struct {
	systems map[string]*System
}

func New() *Catalog {
	return &Catalog{systems: make(map[string]*System)}
}

// Register adds or replaces a system definition, normalising its range mode
// and rejecting unrecognised modes at registration time.
func (c *Catalog) Register(name string, def SystemDef) error {
	mode, err := normalizeRangeMode(def.Mode)
	if err != nil {
		return fmt.Errorf("catalog: registering %q: %w", name, err)
	}
	sys := &System{
		Name:         name,
		Mask:         def.Mask,
		MemMin:       def.MemMin,
		MemMax:       def.MemMax,
		DualMin:      def.DualMin,
		DualMax:      def.DualMax,
		Use24Bit:     def.Use24Bit,
		UseBigEndian: def.UseBigEndian,
		Mode:         mode,
	}
	c.systems[name] = sys
	return nil
}

// Lookup returns the named system, or false if it is unknown.
func (c *Catalog) Lookup(name string) (*System, bool) {
	s, ok := c.systems[name]
	return s, ok
}

// SystemDef is the raw, not-yet-validated form of a system descriptor, as
// it arrives from the built-in table or an INI override file.
type SystemDef struct {
	Mask         *uint32
	MemMin       ptrcore.Address
	MemMax       ptrcore.Address
	DualMin      ptrcore.Address
	DualMax      ptrcore.Address
	Use24Bit     bool
	UseBigEndian bool
	Mode         string
}
