package cellite

// Options is the recognized option set from spec §3, with effects:
//
//   - MaxExpressionLength rejects source longer than this at compile time.
//   - MaxAstNodes aborts the parser once the node count would exceed it.
//   - MaxCallDepth aborts evaluation once function-call nesting exceeds it.
//   - MaxTraceEntries stops the trace buffer from growing further (but
//     evaluation continues) once it would exceed it.
//
// A zero value for any field means "use the default" — Compile always
// merges the caller's Options against DefaultOptions before use, per
// spec §4.6 step 1.
type Options struct {
	MaxExpressionLength int
	MaxAstNodes         int
	MaxCallDepth        int
	MaxTraceEntries     int
}

// DefaultOptions returns the spec-mandated defaults: 4096, 2000, 50, 5000.
func DefaultOptions() Options {
	return Options{
		MaxExpressionLength: 4096,
		MaxAstNodes:         2000,
		MaxCallDepth:        50,
		MaxTraceEntries:     5000,
	}
}

// mergeOptions fills any zero-valued field of o with the corresponding
// default, per the "merge defaults with caller options" step in spec
// §4.6.
func mergeOptions(o Options) Options {
	d := DefaultOptions()
	if o.MaxExpressionLength == 0 {
		o.MaxExpressionLength = d.MaxExpressionLength
	}
	if o.MaxAstNodes == 0 {
		o.MaxAstNodes = d.MaxAstNodes
	}
	if o.MaxCallDepth == 0 {
		o.MaxCallDepth = d.MaxCallDepth
	}
	if o.MaxTraceEntries == 0 {
		o.MaxTraceEntries = d.MaxTraceEntries
	}
	return o
}
