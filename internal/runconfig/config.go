// Package runconfig loads the pipeline's runtime tunables, read once at
// stage start per the external-interfaces contract: the caller (cmd/pscan,
// through LoadEnv) loads a *Config once and passes it to orchestrator.Run,
// which threads it through every stage.
package runconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// Config carries every tunable named in the external-interfaces section,
// with the stated defaults.
type Config struct {
	MinChainLength       int
	StaticMinChainLength int
	MaxGhostNodes        int
	MaxBreadth           int32
	MaxDepth             int
	SkipStickyPointers   bool
	EarlyOutBasePointer  bool
	EarlyOutTarget       bool
	EnabledRanges        map[int]bool
}

// Defaults returns a Config with every tunable at its documented default.
func Defaults() *Config {
	return &Config{
		MinChainLength:       5,
		StaticMinChainLength: 15,
		MaxGhostNodes:        10,
		MaxBreadth:           0xFFC,
		MaxDepth:             12,
		SkipStickyPointers:   true,
		EarlyOutBasePointer:  false,
		EarlyOutTarget:       false,
		EnabledRanges:        map[int]bool{0: true},
	}
}

// Lookup mirrors os.LookupEnv's shape so Load can be driven by any
// key-value source (the process environment, a parsed .env file, a test
// fixture map).
type Lookup func(key string) (string, bool)

// Load reads every known key from lookup at most once, falling back to
// Defaults for anything absent.
func Load(lookup Lookup) (*Config, error) {
	cfg := Defaults()

	if v, ok := lookup("MIN_CHAIN_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: MIN_CHAIN_LENGTH: %w", err)
		}
		cfg.MinChainLength = n
	}
	if v, ok := lookup("STATIC_MIN_CHAIN_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: STATIC_MIN_CHAIN_LENGTH: %w", err)
		}
		cfg.StaticMinChainLength = n
	}
	if v, ok := lookup("MAX_GHOST_NODES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: MAX_GHOST_NODES: %w", err)
		}
		cfg.MaxGhostNodes = n
	}
	if v, ok := lookup("MAX_BREADTH"); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("runconfig: MAX_BREADTH: %w", err)
		}
		cfg.MaxBreadth = int32(uint32(n) &^ 3)
	}
	if v, ok := lookup("MAX_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: MAX_DEPTH: %w", err)
		}
		if n < 1 || n > 20 {
			return nil, fmt.Errorf("runconfig: MAX_DEPTH: %d out of accepted range 1..20", n)
		}
		cfg.MaxDepth = n
	}
	if v, ok := lookup("SKIP_STICKY_POINTERS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: SKIP_STICKY_POINTERS: %w", err)
		}
		cfg.SkipStickyPointers = b
	}
	if v, ok := lookup("EARLY_OUT_BASE_POINTER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: EARLY_OUT_BASE_POINTER: %w", err)
		}
		cfg.EarlyOutBasePointer = b
	}
	if v, ok := lookup("EARLY_OUT_TARGET"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: EARLY_OUT_TARGET: %w", err)
		}
		cfg.EarlyOutTarget = b
	}
	if v, ok := lookup("ENABLED_RANGES"); ok {
		ranges, err := parseRangeSet(v)
		if err != nil {
			return nil, fmt.Errorf("runconfig: ENABLED_RANGES: %w", err)
		}
		cfg.EnabledRanges = ranges
	}

	return cfg, nil
}

func parseRangeSet(v string) (map[int]bool, error) {
	out := make(map[int]bool)
	for _, field := range strings.Split(v, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", field, err)
		}
		out[n] = true
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty range set")
	}
	return out, nil
}
