// Package wasmtest hand-assembles minimal WebAssembly binary modules for
// tests that need a real guest instance calling real host imports, rather
// than exercising scheduler/linker logic through Go-level calls alone.
// This mirrors the example repos' own practice of hand-encoding a raw
// WASM byte module inline in a test file (see
// weisyn-go-weisyn's wasm_adapter_extended_test.go) rather than shipping
// a compiled .wasm fixture or depending on an external wat2wasm toolchain
// this workspace cannot invoke; it just does so through a small reusable
// encoder instead of one literal byte slice per test.
package wasmtest

// ValType is a WASM value type byte, used for both params/results and
// local declarations.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// Import declares one function import. Imports always occupy the lowest
// function indices in the assembled module, in the order given to Module.
type Import struct {
	Module, Name    string
	Params, Results []ValType
}

// Func declares one function defined by the module. If Name is non-empty
// it is exported under that name. Functions are indexed immediately after
// every Import, in the order given to Module — so a Func's own body can
// call an earlier Func j via Call(uint32(len(imports)+j)) using that
// convention.
type Func struct {
	Name            string
	Params, Results []ValType
	Locals          []ValType
	Body            []byte
}

// Module assembles a complete WASM binary: typeSection+importSection (one
// function type per import, in order) + functionSection/codeSection (one
// per Func, types continuing after the imports') + an optional memory
// export when memoryPages > 0.
func Module(imports []Import, funcs []Func, memoryPages uint32) []byte {
	var types [][]byte
	var importEntries [][]byte
	for i, imp := range imports {
		types = append(types, functype(imp.Params, imp.Results))
		importEntries = append(importEntries, importEntry(imp.Module, imp.Name, uint32(i)))
	}

	funcTypeBase := uint32(len(imports))
	var funcSec, codeSec, exportEntries [][]byte
	for j, f := range funcs {
		types = append(types, functype(f.Params, f.Results))
		funcSec = append(funcSec, uleb(uint64(funcTypeBase)+uint64(j)))
		codeSec = append(codeSec, funcBody(f.Locals, f.Body))
		if f.Name != "" {
			exportEntries = append(exportEntries, exportEntry(f.Name, 0x00, funcTypeBase+uint32(j)))
		}
	}

	var memSec [][]byte
	if memoryPages > 0 {
		memSec = append(memSec, append([]byte{0x00}, uleb(uint64(memoryPages))...))
		exportEntries = append(exportEntries, exportEntry("memory", 0x02, 0))
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, vec(types))...)
	if len(importEntries) > 0 {
		out = append(out, section(2, vec(importEntries))...)
	}
	if len(funcSec) > 0 {
		out = append(out, section(3, vec(funcSec))...)
	}
	if len(memSec) > 0 {
		out = append(out, section(5, vec(memSec))...)
	}
	if len(exportEntries) > 0 {
		out = append(out, section(7, vec(exportEntries))...)
	}
	if len(codeSec) > 0 {
		out = append(out, section(10, vec(codeSec))...)
	}
	return out
}

func section(id byte, payload []byte) []byte {
	return append([]byte{id}, append(uleb(uint64(len(payload))), payload...)...)
}

func vec(items [][]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	b := []byte(s)
	return append(uleb(uint64(len(b))), b...)
}

func functype(params, results []ValType) []byte {
	var p, r [][]byte
	for _, v := range params {
		p = append(p, []byte{byte(v)})
	}
	for _, v := range results {
		r = append(r, []byte{byte(v)})
	}
	return append([]byte{0x60}, append(vec(p), vec(r)...)...)
}

func importEntry(mod, field string, typeIdx uint32) []byte {
	out := append(name(mod), name(field)...)
	out = append(out, 0x00)
	return append(out, uleb(uint64(typeIdx))...)
}

func exportEntry(nm string, kind byte, idx uint32) []byte {
	out := append(name(nm), kind)
	return append(out, uleb(uint64(idx))...)
}

func funcBody(localTypes []ValType, code []byte) []byte {
	var locals [][]byte
	for _, t := range localTypes {
		locals = append(locals, append(uleb(1), byte(t)))
	}
	body := append(vec(locals), code...)
	body = append(body, 0x0b)
	return append(uleb(uint64(len(body))), body...)
}

func uleb(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	return out
}

func sleb(n int64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		signBitSet := b&0x40 != 0
		if (n == 0 && !signBitSet) || (n == -1 && signBitSet) {
			out = append(out, b)
			break
		}
		out = append(out, b|0x80)
	}
	return out
}

func memarg(align, offset uint32) []byte {
	return append(uleb(uint64(align)), uleb(uint64(offset))...)
}

// Ins concatenates instruction byte sequences into one function body.
func Ins(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func LocalGet(idx uint32) []byte { return append([]byte{0x20}, uleb(uint64(idx))...) }
func LocalSet(idx uint32) []byte { return append([]byte{0x21}, uleb(uint64(idx))...) }
func Call(idx uint32) []byte     { return append([]byte{0x10}, uleb(uint64(idx))...) }
func I32Const(v int32) []byte    { return append([]byte{0x41}, sleb(int64(v))...) }
func I64Const(v int64) []byte    { return append([]byte{0x42}, sleb(v)...) }
func I32Load(offset uint32) []byte  { return append([]byte{0x28}, memarg(2, offset)...) }
func I64Load(offset uint32) []byte  { return append([]byte{0x29}, memarg(3, offset)...) }
func I32Store(offset uint32) []byte { return append([]byte{0x36}, memarg(2, offset)...) }
func I64Store(offset uint32) []byte { return append([]byte{0x37}, memarg(3, offset)...) }

// Drop discards the top operand stack value.
func Drop() []byte { return []byte{0x1a} }
