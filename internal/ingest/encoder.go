package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"pscan/internal/ptrcore"
)

// Finding is the encoder-facing record: everything the external-interfaces
// section lists for one structure or entry point, id already allocated.
type Finding struct {
	ID            int
	Type          string
	Root          ptrcore.Address
	NodeCount     int
	Addresses     []ptrcore.Address
	Ghosts        []ptrcore.Address
	Stride        uint32
	Path          []int32
	BuildOffset   int32
	TargetAddress ptrcore.Address
	IsTarget      bool
}

// Encoder turns a Finding into the opaque string the achievement-logic
// layer consumes. Nothing downstream of Encode inspects the returned
// string.
type Encoder interface {
	Encode(f Finding) (string, error)
}

// TextEncoder is a minimal pipe-delimited line encoder standing in for the
// real achievement-logic string encoder.
type TextEncoder struct{}

func (TextEncoder) Encode(f Finding) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|0x%X|%d", f.ID, f.Type, uint32(f.Root), f.NodeCount)
	for _, a := range f.Addresses {
		fmt.Fprintf(&b, "|0x%X", uint32(a))
	}
	if len(f.Ghosts) > 0 {
		b.WriteString("|ghosts=")
		for i, g := range f.Ghosts {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "0x%X", uint32(g))
		}
	}
	if f.Stride != 0 {
		fmt.Fprintf(&b, "|stride=%d", f.Stride)
	}
	if len(f.Path) > 0 {
		b.WriteString("|path=")
		for i, p := range f.Path {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(p)))
		}
	}
	if f.BuildOffset != 0 {
		fmt.Fprintf(&b, "|buildOffset=%d", f.BuildOffset)
	}
	if f.TargetAddress != 0 {
		fmt.Fprintf(&b, "|target=0x%X", uint32(f.TargetAddress))
	}
	fmt.Fprintf(&b, "|isTarget=%t", f.IsTarget)
	return b.String(), nil
}
