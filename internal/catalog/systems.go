package catalog

func u32(v uint32) *uint32 { return &v }

// builtinDefs is the default system table, expressed the way the teacher's
// own static register tables are: a Go literal compiled in at package
// init(), with no recompile required to add an INI override on top of it.
var builtinDefs = map[string]SystemDef{
	"generic32": {
		MemMin: 0x00000000,
		MemMax: 0xFFFFFFFF,
		Mode:   "full",
	},
	"ps2": {
		Mask:   u32(0x1FFFFFFF),
		MemMin: 0x00000000,
		MemMax: 0x01FFFFFF,
		Mode:   "half",
	},
	"ngc": {
		Mask:   u32(0x7FFFFFFF),
		MemMin: 0x80000000,
		MemMax: 0x817FFFFF,
		Mode:   "quarter",
	},
	"wii": {
		// one entry deliberately carries the source's "quater" spelling to
		// exercise the normalisation described in SPEC_FULL.md section 4.1.
		Mask:   u32(0x7FFFFFFF),
		MemMin: 0x80000000,
		MemMax: 0x817FFFFF,
		Mode:   "quater",
	},
	"ps3": {
		MemMin:       0x00010000,
		MemMax:       0x2FFFFFFF,
		DualMin:      0xD0000000,
		DualMax:      0xDFFFFFFF,
		UseBigEndian: true,
		Mode:         "dual",
	},
}

// NewBuiltin returns a Catalog preloaded with the default system
// table. An error here is a programming error in builtinDefs, not a runtime
// possibility, so callers that don't expect failure may safely discard it
// in tests; Load callers should still check it.
func NewBuiltin() (*Catalog, error) {
	c := New()
	for name, def := range builtinDefs {
		if err := c.Register(name, def); err != nil {
			return nil, err
		}
	}
	return c, nil
}
