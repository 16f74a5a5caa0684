package payload

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Piebald-AI/tweakcc-sub001/common"
)

// ModuleInput is one module's resolved byte strings plus its opaque tags,
// ready to be laid out into a fresh payload. A nil Sourcemap or Bytecode
// means the string is absent and keeps a zero pointer; an empty non-nil
// slice is a present, zero-length string and gets pooled like any other.
type ModuleInput struct {
	Name         []byte
	Contents     []byte
	Sourcemap    []byte
	Bytecode     []byte
	Encoding     byte
	Loader       byte
	ModuleFormat byte
	Side         byte
}

// RebuildResult is the reconstructed payload plus the header the repackers
// need (ELF repacking wants the fresh ByteCount).
type RebuildResult struct {
	Payload  []byte
	Header   OffsetsHeader
	Replaced int
}

// Build lays out a complete payload from scratch: the string pool holds
// the strings of every module in order, each null-terminated, then the
// module table, the exec argv, the offsets header and the trailer. Every
// offset is computed as the strings are placed; ByteCount falls out of
// the layout and nothing else. argv is appended only when argvPresent;
// absent argv, Sourcemap and Bytecode strings keep their zero pointers.
func Build(modules []ModuleInput, entryPointID uint32, argv []byte, argvPresent bool) (*RebuildResult, error) {
	// Pointers are u32 pairs; a layout they cannot address is rejected
	// before a single byte is pooled.
	var projected uint64
	for _, mod := range modules {
		projected += uint64(len(mod.Name)) + uint64(len(mod.Contents)) +
			uint64(len(mod.Sourcemap)) + uint64(len(mod.Bytecode)) + 4
	}
	projected += uint64(len(modules)*ModuleRecordSize) + uint64(len(argv)) + 1 + OffsetsHeaderSize
	if projected > math.MaxUint32 {
		return nil, fmt.Errorf("%w: layout of %d bytes exceeds the u32 pointer range",
			common.ErrSizeMismatch, projected)
	}

	var pool bytes.Buffer

	place := func(s []byte) StringPointer {
		ptr := StringPointer{Offset: uint32(pool.Len()), Length: uint32(len(s))}
		pool.Write(s)
		pool.WriteByte(0)
		return ptr
	}
	placeOptional := func(s []byte) StringPointer {
		if s == nil {
			return StringPointer{}
		}
		return place(s)
	}

	records := make([]ModuleRecord, len(modules))
	for i, mod := range modules {
		records[i] = ModuleRecord{
			Name:         place(mod.Name),
			Contents:     place(mod.Contents),
			Sourcemap:    placeOptional(mod.Sourcemap),
			Bytecode:     placeOptional(mod.Bytecode),
			Encoding:     mod.Encoding,
			Loader:       mod.Loader,
			ModuleFormat: mod.ModuleFormat,
			Side:         mod.Side,
		}
	}

	modulesPtr := StringPointer{
		Offset: uint32(pool.Len()),
		Length: uint32(len(records) * ModuleRecordSize),
	}
	for _, record := range records {
		pool.Write(EncodeModuleRecord(record))
	}

	argvPtr := StringPointer{}
	if argvPresent {
		argvPtr = StringPointer{Offset: uint32(pool.Len()), Length: uint32(len(argv))}
		pool.Write(argv)
		pool.WriteByte(0)
	}

	// ByteCount spans everything before the trailer, the header itself
	// included. It is never carried over from any source; the layout is
	// the only source of truth.
	header := OffsetsHeader{
		ByteCount:          uint64(pool.Len() + OffsetsHeaderSize),
		ModulesPtr:         modulesPtr,
		EntryPointID:       entryPointID,
		CompileExecArgvPtr: argvPtr,
	}
	pool.Write(EncodeOffsets(header))

	// The trailer, exactly once. No repacker appends another.
	pool.WriteString(Trailer)

	out := pool.Bytes()
	if header.ByteCount != uint64(len(out)-len(Trailer)) {
		return nil, fmt.Errorf("%w: built byte count %d, laid out %d",
			common.ErrSizeMismatch, header.ByteCount, len(out)-len(Trailer))
	}
	return &RebuildResult{Payload: out, Header: header}, nil
}

// readOptional resolves a possibly-absent pooled string: a zero pointer
// reads back as nil, so absence survives a rebuild instead of turning
// into a placed empty string.
func readOptional(data []byte, p StringPointer) ([]byte, error) {
	if p == (StringPointer{}) {
		return nil, nil
	}
	return ReadStringPointer(data, p)
}

// Rebuild reconstructs the entire payload from an extraction, substituting
// module contents from replacements (keyed by prefix-stripped module
// name). Only contents is ever replaceable; names, sourcemaps, bytecode
// and the exec argv are copied verbatim. Offsets are recomputed even for
// untouched strings, since an earlier string growing shifts every later
// pointer, so there is no in-place fast path. With an empty replacement
// map the output is byte-identical to the source payload.
func Rebuild(ext *Extraction, replacements map[string][]byte) (*RebuildResult, error) {
	inputs := make([]ModuleInput, len(ext.Modules))
	replaced := 0

	for i, mod := range ext.Modules {
		name, err := ReadStringPointer(ext.Payload, mod.Name)
		if err != nil {
			return nil, fmt.Errorf("module %d name: %w", i, err)
		}
		contents, err := ReadStringPointer(ext.Payload, mod.Contents)
		if err != nil {
			return nil, fmt.Errorf("module %d contents: %w", i, err)
		}
		sourcemap, err := readOptional(ext.Payload, mod.Sourcemap)
		if err != nil {
			return nil, fmt.Errorf("module %d sourcemap: %w", i, err)
		}
		bytecode, err := readOptional(ext.Payload, mod.Bytecode)
		if err != nil {
			return nil, fmt.Errorf("module %d bytecode: %w", i, err)
		}

		if repl, ok := replacements[StripBasePrefix(string(name), ext.BasePrefix)]; ok {
			contents = repl
			replaced++
		}

		inputs[i] = ModuleInput{
			Name:         name,
			Contents:     contents,
			Sourcemap:    sourcemap,
			Bytecode:     bytecode,
			Encoding:     mod.Encoding,
			Loader:       mod.Loader,
			ModuleFormat: mod.ModuleFormat,
			Side:         mod.Side,
		}
	}

	argv, err := readOptional(ext.Payload, ext.Header.CompileExecArgvPtr)
	if err != nil {
		return nil, fmt.Errorf("exec argv: %w", err)
	}
	argvPresent := argv != nil

	result, err := Build(inputs, ext.Header.EntryPointID, argv, argvPresent)
	if err != nil {
		return nil, err
	}
	result.Replaced = replaced
	return result, nil
}
