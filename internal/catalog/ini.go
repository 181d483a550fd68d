package catalog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pscan/internal/ptrcore"
)

// LoadOverridesINI parses a small INI-style file of system overrides and
// returns each section it finds as a SystemDef; it registers nothing itself
// (RegisterAll does that). Section names become system names; recognised keys are mask, range (min,max hex pair),
// range2 (dual-region second range), mode, use24bit, bigendian.
//
// Grounded on the teacher's bufio.Scanner-based snapshot.ini reader: a
// simple line-oriented parser, no dependency pulled in for something this
// small.
func LoadOverridesINI(r io.Reader) (map[string]SystemDef, error) {
	defs := make(map[string]SystemDef)
	var section string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := defs[section]; !ok {
				defs[section] = SystemDef{Mode: "full"}
			}
			continue
		}
		if section == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		def := defs[section]
		if err := applyKey(&def, key, val); err != nil {
			return nil, fmt.Errorf("catalog: section %q key %q: %w", section, key, err)
		}
		defs[section] = def
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("catalog: reading overrides: %w", err)
	}
	return defs, nil
}

func applyKey(def *SystemDef, key, val string) error {
	switch key {
	case "mask":
		v, err := parseHex(val)
		if err != nil {
			return err
		}
		def.Mask = u32(v)
	case "range":
		lo, hi, err := parsePair(val)
		if err != nil {
			return err
		}
		def.MemMin, def.MemMax = ptrcore.Address(lo), ptrcore.Address(hi)
	case "range2":
		lo, hi, err := parsePair(val)
		if err != nil {
			return err
		}
		def.DualMin, def.DualMax = ptrcore.Address(lo), ptrcore.Address(hi)
	case "mode":
		def.Mode = strings.ToLower(val)
	case "use24bit":
		def.Use24Bit = parseBool(val)
	case "bigendian":
		def.UseBigEndian = parseBool(val)
	default:
		// unknown keys are ignored, matching the teacher's permissive
		// section/key scanning in internal/snapshot.
	}
	return nil
}

func parsePair(val string) (lo, hi uint32, err error) {
	parts := strings.SplitN(val, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected min,max pair, got %q", val)
	}
	loV, err := parseHex(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	hiV, err := parseHex(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return loV, hiV, nil
}

func parseHex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// RegisterAll registers every def in defs against c, stopping at the first
// error (an unrecognised range mode, typically).
func (c *Catalog) RegisterAll(defs map[string]SystemDef) error {
	for name, def := range defs {
		if err := c.Register(name, def); err != nil {
			return err
		}
	}
	return nil
}
