// Package ptrcore holds the types shared across every stage of the pointer
// graph analysis pipeline: addresses, pointer values, batches, the
// structure/entry-point output model, and the run-scoped error type.
package ptrcore

// Address is a 32-bit location in the target console's memory.
type Address uint32

// PointerValue is a 32-bit word read from an Address, interpreted as another
// Address once a system's mask has been applied.
type PointerValue uint32

// MaxBatches is the largest number of snapshots the preprocessor will hold
// at once.
const MaxBatches = 10

// Batch is one snapshot of (address, value) pairs captured at a distinct
// game state. Values are stored unmasked; masking happens at collapse time.
type Batch struct {
	Addresses []Address
	Values    []PointerValue
}

// NodeKind distinguishes the three classification tiers a node pool address can
// fall into once the batch count is known.
type NodeKind int

const (
	// KindStaticStatic: present in every batch, same value in every batch.
	KindStaticStatic NodeKind = iota
	// KindStaticNode: present in every batch, value varies across batches.
	KindStaticNode
	// KindDynamicNode: absent from at least one batch.
	KindDynamicNode
)

func (k NodeKind) String() string {
	switch k {
	case KindStaticStatic:
		return "static_static"
	case KindStaticNode:
		return "static_node"
	case KindDynamicNode:
		return "dynamic_node"
	default:
		return "unknown_kind"
	}
}

// StructureType tags the three shapes detection and scanning produce.
type StructureType int

const (
	StaticList StructureType = iota
	DynamicList
	EntryPoint
)

func (t StructureType) String() string {
	switch t {
	case StaticList:
		return "static_list"
	case DynamicList:
		return "dynamic_list"
	case EntryPoint:
		return "entry_point"
	default:
		return "unknown_structure"
	}
}

// Structure is a detected pointer chain: a static list, a dynamic list, or
// (when Type == EntryPoint) a chain that terminates inside a known target
// set.
type Structure struct {
	ID          int
	Type        StructureType
	Root        Address
	Addresses   []Address
	Ghosts      []Address
	Stride      uint32
	BuildOffset int32
	// BatchIdx identifies which batch produced a dynamic_list or a
	// dynamic-pass entry point; static_list uses -1, and scan-phase entry
	// points leave it at 0.
	BatchIdx int
	// Path records the offsets an entry point followed from its base
	// pointer; nil for static_list/dynamic_list.
	Path []int32
	// TargetStruct names the structure id a scan-phase entry point walked
	// into; dynamic-pass entry points record -1, as they do not track which
	// structure their target node belongs to.
	TargetStruct int
	MovingEntryPoint bool
	Claimed          bool
}

// NodeCount returns len(Addresses), matching the spec's nodeCount field.
func (s *Structure) NodeCount() int { return len(s.Addresses) }

// TargetPath is a forward-scan hit that reached an injected target address.
type TargetPath struct {
	BasePointer   Address
	Path          []int32
	TargetAddress Address
}
