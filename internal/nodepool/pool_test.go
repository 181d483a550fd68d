package nodepool

import (
	"testing"

	"pscan/internal/catalog"
	"pscan/internal/ptrcore"

	"github.com/stretchr/testify/require"
)

func testSystem(t *testing.T) *catalog.System {
	c, err := catalog.NewBuiltin()
	require.NoError(t, err)
	sys, ok := c.Lookup("generic32")
	require.True(t, ok)
	return sys
}

func TestCollapsePartitionIsDisjointAndComplete(t *testing.T) {
	sys := testSystem(t)
	p := New(sys)

	_, err := p.AddBatch(ptrcore.Batch{
		Addresses: []ptrcore.Address{0x1000, 0x1004, 0x1008},
		Values:    []ptrcore.PointerValue{0x2000, 0x2000, 0x3000},
	})
	require.NoError(t, err)
	_, err = p.AddBatch(ptrcore.Batch{
		Addresses: []ptrcore.Address{0x1000, 0x1004},
		Values:    []ptrcore.PointerValue{0x2000, 0x2100},
	})
	require.NoError(t, err)

	pools := p.Collapse()
	total := len(pools.StaticStatics) + len(pools.StaticNodes) + len(pools.DynamicNodes)
	require.Equal(t, 3, total)

	seen := map[ptrcore.Address]bool{}
	for _, e := range pools.StaticStatics {
		require.False(t, seen[e.Address])
		seen[e.Address] = true
	}
	for _, e := range pools.StaticNodes {
		require.False(t, seen[e.Address])
		seen[e.Address] = true
	}
	for _, e := range pools.DynamicNodes {
		require.False(t, seen[e.Address])
		seen[e.Address] = true
	}

	// 0x1000 has equal values in both batches -> StaticStatic.
	require.Len(t, pools.StaticStatics, 1)
	require.Equal(t, ptrcore.Address(0x1000), pools.StaticStatics[0].Address)
	// 0x1004 varies across batches -> StaticNode.
	require.Len(t, pools.StaticNodes, 1)
	require.Equal(t, ptrcore.Address(0x1004), pools.StaticNodes[0].Address)
	// 0x1008 missing from batch 1 -> DynamicNode.
	require.Len(t, pools.DynamicNodes, 1)
	require.Equal(t, ptrcore.Address(0x1008), pools.DynamicNodes[0].Address)
}

func TestStaticStaticValuesAllEqualAcrossBatches(t *testing.T) {
	sys := testSystem(t)
	p := New(sys)
	for i := 0; i < 3; i++ {
		_, err := p.AddBatch(ptrcore.Batch{
			Addresses: []ptrcore.Address{0x2000},
			Values:    []ptrcore.PointerValue{0x9000},
		})
		require.NoError(t, err)
	}
	pools := p.Collapse()
	require.Len(t, pools.StaticStatics, 1)
	require.Equal(t, ptrcore.PointerValue(0x9000), pools.StaticStatics[0].Value)
}

func TestAddBatchEnforcesBatchLimit(t *testing.T) {
	sys := testSystem(t)
	p := New(sys)
	for i := 0; i < ptrcore.MaxBatches; i++ {
		_, err := p.AddBatch(ptrcore.Batch{Addresses: []ptrcore.Address{0x3000}, Values: []ptrcore.PointerValue{0x4000}})
		require.NoError(t, err)
	}
	_, err := p.AddBatch(ptrcore.Batch{Addresses: []ptrcore.Address{0x3000}, Values: []ptrcore.PointerValue{0x4000}})
	require.Error(t, err)
}

func TestRemoveBatchRejectsInvalidIndex(t *testing.T) {
	sys := testSystem(t)
	p := New(sys)
	_, err := p.RemoveBatch(0)
	require.Error(t, err)
}

// TestRemoveAndReAddCommutes is the Go rendition of property P8: removing
// batch i and re-adding the original batch i at the end yields the same
// classification counts as never removing it.
func TestRemoveAndReAddCommutes(t *testing.T) {
	sys := testSystem(t)
	batches := []ptrcore.Batch{
		{Addresses: []ptrcore.Address{0x5000, 0x5004}, Values: []ptrcore.PointerValue{0x6000, 0x6004}},
		{Addresses: []ptrcore.Address{0x5000, 0x5004}, Values: []ptrcore.PointerValue{0x6000, 0x6100}},
		{Addresses: []ptrcore.Address{0x5000, 0x5004}, Values: []ptrcore.PointerValue{0x6000, 0x6200}},
	}

	baseline := New(sys)
	for _, b := range batches {
		_, err := baseline.AddBatch(b)
		require.NoError(t, err)
	}
	baselineCounts := baseline.GetCounts()

	shuffled := New(sys)
	for _, b := range batches {
		_, err := shuffled.AddBatch(b)
		require.NoError(t, err)
	}
	_, err := shuffled.RemoveBatch(1)
	require.NoError(t, err)
	_, err = shuffled.AddBatch(batches[1])
	require.NoError(t, err)
	shuffledCounts := shuffled.GetCounts()

	require.Equal(t, baselineCounts.DynamicNodes, shuffledCounts.DynamicNodes)
	require.Equal(t, baselineCounts.RangeStaticStatics, shuffledCounts.RangeStaticStatics)
	require.Equal(t, baselineCounts.RangeStaticNodes, shuffledCounts.RangeStaticNodes)
}

// TestVTableAnchorFilter implements end-to-end scenario 4: eleven addresses
// all pointing at the same value are all dropped.
func TestVTableAnchorFilter(t *testing.T) {
	sys := testSystem(t)
	p := New(sys)

	addrs := make([]ptrcore.Address, 11)
	vals := make([]ptrcore.PointerValue, 11)
	for i := range addrs {
		addrs[i] = ptrcore.Address(0x10000 + i*4)
		vals[i] = 0x80020000
	}
	_, err := p.AddBatch(ptrcore.Batch{Addresses: addrs, Values: vals})
	require.NoError(t, err)

	pools := p.Collapse()
	require.Empty(t, pools.StaticStatics)
	require.Empty(t, pools.StaticNodes)
	require.Empty(t, pools.DynamicNodes)
}

// TestSelfReferenceFilter exercises the [-44,4] self-reference window from
// end-to-end scenario 5 at its exact boundaries.
func TestSelfReferenceFilter(t *testing.T) {
	sys := testSystem(t)

	cases := []struct {
		name string
		addr ptrcore.Address
		val  ptrcore.PointerValue
		kept bool
	}{
		{"diff=4 at upper boundary, discarded", 0x80001004, 0x80001000, false},
		{"diff=-44 at lower boundary, discarded", 0x80001000, 0x8000102C, false},
		{"diff=5 just past upper boundary, kept", 0x80001005, 0x80001000, true},
		{"diff=-45 just past lower boundary, kept", 0x80001000, 0x8000102D, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := New(sys)
			_, err := p.AddBatch(ptrcore.Batch{Addresses: []ptrcore.Address{c.addr}, Values: []ptrcore.PointerValue{c.val}})
			require.NoError(t, err)
			pools := p.Collapse()
			total := len(pools.StaticStatics) + len(pools.StaticNodes) + len(pools.DynamicNodes)
			if c.kept {
				require.Equal(t, 1, total)
			} else {
				require.Equal(t, 0, total)
			}
		})
	}
}

// TestGetCountsAgreesWithCollapseUnderMaskCollision exercises the masked
// system case (ngc/wii/ps2): two raw values that differ only outside the
// mask collapse to the same masked value, so the node is StaticStatic, not
// StaticNode. getCounts must classify from the same masked view Collapse
// uses, or its tallies disagree with collapse()'s for this exact state.
func TestGetCountsAgreesWithCollapseUnderMaskCollision(t *testing.T) {
	c, err := catalog.NewBuiltin()
	require.NoError(t, err)
	sys, ok := c.Lookup("ngc")
	require.True(t, ok)

	p := New(sys)
	_, err = p.AddBatch(ptrcore.Batch{
		Addresses: []ptrcore.Address{0x80010000},
		Values:    []ptrcore.PointerValue{0x80020000},
	})
	require.NoError(t, err)
	counts, err := p.AddBatch(ptrcore.Batch{
		Addresses: []ptrcore.Address{0x80010000},
		Values:    []ptrcore.PointerValue{0x00020000},
	})
	require.NoError(t, err)

	require.Equal(t, 1, counts.RangeStaticStatics[0]+counts.RangeStaticNodes[0])
	require.Equal(t, 0, counts.DynamicNodes)

	pools := p.Collapse()
	require.Len(t, pools.StaticStatics, 1)
	require.Empty(t, pools.StaticNodes)
	require.Equal(t, 1, counts.RangeStaticStatics[0])
}

// TestGetCountsAgreesWithCollapseWhenMaskZeroesValue covers the other half
// of the same disagreement: a raw value that is nonzero in every batch but
// masks down to exactly 0 must count as DynamicNode (absent), matching
// Collapse's masked-then-classify order exactly.
func TestGetCountsAgreesWithCollapseWhenMaskZeroesValue(t *testing.T) {
	c, err := catalog.NewBuiltin()
	require.NoError(t, err)
	sys, ok := c.Lookup("ngc")
	require.True(t, ok)

	p := New(sys)
	for i := 0; i < 2; i++ {
		_, err := p.AddBatch(ptrcore.Batch{
			Addresses: []ptrcore.Address{0x80010004},
			Values:    []ptrcore.PointerValue{0x80000000},
		})
		require.NoError(t, err)
	}
	counts := p.GetCounts()
	require.Equal(t, 1, counts.DynamicNodes)
	require.Equal(t, 0, counts.RangeStaticStatics[0]+counts.RangeStaticNodes[0])

	pools := p.Collapse()
	require.Empty(t, pools.StaticStatics)
	require.Empty(t, pools.StaticNodes)
	require.Len(t, pools.DynamicNodes, 1)
}

func TestGetCountsRecommendsSkipStickyAndWarnsPastThreshold(t *testing.T) {
	sys := testSystem(t)
	p := New(sys)
	addrs := make([]ptrcore.Address, 0, warnBasePointerThreshold+1)
	vals := make([]ptrcore.PointerValue, 0, warnBasePointerThreshold+1)
	for i := 0; i <= warnBasePointerThreshold; i++ {
		addrs = append(addrs, ptrcore.Address(0x100000+i*4))
		vals = append(vals, ptrcore.PointerValue(0x200000+i*4))
	}
	counts, err := p.AddBatch(ptrcore.Batch{Addresses: addrs, Values: vals})
	require.NoError(t, err)
	require.True(t, counts.RecommendSkipSticky)
	require.True(t, counts.WarnBasePointers)
}
