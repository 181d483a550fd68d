// Package ingest realizes the external-interfaces CSV parser, encoder, and
// ID-allocator adapters named in the concrete-adapters section: the
// minimal, in-scope collaborators that let the pipeline run end to end
// without pulling in a real achievement-logic toolchain.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"pscan/internal/catalog"
	"pscan/internal/ptrcore"
)

// Batch is the CSV parser's output shape: unmasked, validated
// (address, value) pairs for one snapshot.
type Batch struct {
	Addresses []ptrcore.Address
	Values    []ptrcore.PointerValue
}

// RowWarning describes one dropped row, returned to the caller alongside the
// batch rather than as an error — InconsistentBatch rows are filtered
// silently by policy, but the caller may still want to know.
type RowWarning struct {
	Line   int
	Reason string
}

// ParseCSVBatchFile opens path and delegates to ParseCSVBatch.
func ParseCSVBatchFile(path string, sys *catalog.System) (Batch, []RowWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, nil, err
	}
	defer f.Close()
	return ParseCSVBatch(f, sys)
}

// ParseCSVBatch reads "address,value" (optionally "address,value,comment")
// rows, hex or decimal. The address need only be 4-byte aligned; the value
// is the pointer candidate and must additionally satisfy sys's memory-range
// membership, including the dual-region bit-31/bit-28 test. Rows failing
// validation are dropped with a RowWarning, never surfaced as an error.
func ParseCSVBatch(r io.Reader, sys *catalog.System) (Batch, []RowWarning, error) {
	var batch Batch
	var warnings []RowWarning

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			warnings = append(warnings, RowWarning{Line: lineNo, Reason: "fewer than 2 fields"})
			continue
		}

		addr, err := parseUint32Field(fields[0])
		if err != nil {
			warnings = append(warnings, RowWarning{Line: lineNo, Reason: fmt.Sprintf("address: %v", err)})
			continue
		}
		val, err := parseUint32Field(fields[1])
		if err != nil {
			warnings = append(warnings, RowWarning{Line: lineNo, Reason: fmt.Sprintf("value: %v", err)})
			continue
		}

		a := ptrcore.Address(addr)
		if a%4 != 0 {
			warnings = append(warnings, RowWarning{Line: lineNo, Reason: "address not 4-byte aligned"})
			continue
		}

		v := ptrcore.PointerValue(val)
		if uint32(v)%4 != 0 {
			warnings = append(warnings, RowWarning{Line: lineNo, Reason: "value not 4-byte aligned"})
			continue
		}
		if !sys.InMemoryRange(v) {
			warnings = append(warnings, RowWarning{Line: lineNo, Reason: "value outside system memory range"})
			continue
		}

		batch.Addresses = append(batch.Addresses, a)
		batch.Values = append(batch.Values, v)
	}
	if err := scanner.Err(); err != nil {
		return Batch{}, warnings, err
	}
	return batch, warnings, nil
}

func parseUint32Field(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
