package runconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadAppliesDefaultsWhenEverythingAbsent(t *testing.T) {
	cfg, err := Load(lookupFrom(nil))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadParsesHexMaxBreadthAndMasksLowBits(t *testing.T) {
	cfg, err := Load(lookupFrom(map[string]string{"MAX_BREADTH": "0xFFF"}))
	require.NoError(t, err)
	require.Equal(t, int32(0xFFC), cfg.MaxBreadth)
}

func TestLoadAcceptsPlainDecimalMaxBreadth(t *testing.T) {
	cfg, err := Load(lookupFrom(map[string]string{"MAX_BREADTH": "100"}))
	require.NoError(t, err)
	require.Equal(t, int32(100), cfg.MaxBreadth)
}

func TestLoadRejectsMaxDepthOutOfRange(t *testing.T) {
	_, err := Load(lookupFrom(map[string]string{"MAX_DEPTH": "21"}))
	require.Error(t, err)
}

func TestLoadParsesEnabledRangesSet(t *testing.T) {
	cfg, err := Load(lookupFrom(map[string]string{"ENABLED_RANGES": "0, 2,3"}))
	require.NoError(t, err)
	require.Equal(t, map[int]bool{0: true, 2: true, 3: true}, cfg.EnabledRanges)
}

func TestLoadParsesBooleanTunables(t *testing.T) {
	cfg, err := Load(lookupFrom(map[string]string{
		"SKIP_STICKY_POINTERS":   "false",
		"EARLY_OUT_BASE_POINTER": "true",
	}))
	require.NoError(t, err)
	require.False(t, cfg.SkipStickyPointers)
	require.True(t, cfg.EarlyOutBasePointer)
}
