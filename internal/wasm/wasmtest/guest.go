// Package wasmtest assembles tiny completion provider modules for tests.
//
// Guests are written directly in the binary format so tests need no
// external toolchain. Each guest exports a single page of memory, an alloc
// that always hands out InputOffset, and complete/resolve functions that
// return canned JSON from data segments.
package wasmtest

// InputOffset is where every guest's alloc places host input.
const InputOffset = 16

const (
	completeOffset = 32 * 1024
	resolveOffset  = 48 * 1024
)

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

// Guest describes a test module.
type Guest struct {
	// Complete is returned by the complete export. Empty returns no output.
	Complete string
	// Resolve, when set, adds a resolve export returning it.
	Resolve string
	// NoComplete omits the complete export.
	NoComplete bool
	// Spin makes complete loop forever.
	Spin bool
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func packed(offset, length int) []byte {
	return sleb(int64(uint64(offset)<<32 | uint64(length)))
}

// body wraps an expression as a function body without locals.
func body(expr ...byte) []byte {
	fn := append([]byte{0x00}, expr...)
	fn = append(fn, 0x0b)
	return append(uleb(uint64(len(fn))), fn...)
}

// Build returns the module binary.
func (g Guest) Build() []byte {
	allocType := []byte{0x60, 0x01, valI32, 0x01, valI32}
	callType := []byte{0x60, 0x02, valI32, valI32, 0x01, valI64}

	funcs := [][]byte{{0x00}}
	exports := [][]byte{
		append(name("memory"), 0x02, 0x00),
		append(name("alloc"), 0x00, 0x00),
	}
	codes := [][]byte{body(append([]byte{0x41}, sleb(InputOffset)...)...)}
	var data [][]byte

	segment := func(offset int, s string) []byte {
		d := []byte{0x00, 0x41}
		d = append(d, sleb(int64(offset))...)
		d = append(d, 0x0b)
		d = append(d, uleb(uint64(len(s)))...)
		return append(d, s...)
	}

	if !g.NoComplete {
		idx := byte(len(funcs))
		funcs = append(funcs, []byte{0x01})
		exports = append(exports, append(name("complete"), 0x00, idx))
		switch {
		case g.Spin:
			// loop br 0 end unreachable
			codes = append(codes, body(0x03, 0x40, 0x0c, 0x00, 0x0b, 0x00))
		default:
			codes = append(codes, body(append([]byte{0x42}, packed(completeOffset, len(g.Complete))...)...))
			if g.Complete != "" {
				data = append(data, segment(completeOffset, g.Complete))
			}
		}
	}

	if g.Resolve != "" {
		idx := byte(len(funcs))
		funcs = append(funcs, []byte{0x01})
		exports = append(exports, append(name("resolve"), 0x00, idx))
		codes = append(codes, body(append([]byte{0x42}, packed(resolveOffset, len(g.Resolve))...)...))
		data = append(data, segment(resolveOffset, g.Resolve))
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, vec(allocType, callType))...)
	out = append(out, section(3, vec(funcs...))...)
	out = append(out, section(5, vec([]byte{0x00, 0x01}))...)
	out = append(out, section(7, vec(exports...))...)
	out = append(out, section(10, vec(codes...))...)
	if len(data) > 0 {
		out = append(out, section(11, vec(data...))...)
	}
	return out
}
