// Package payload implements the wire format of the data blob a compiled
// executable carries: a string pool indexed by (offset, length) pointers,
// a fixed-size module table, the serialized exec argv, a trailing offsets
// header and a constant trailer. The layout is a private contract with the
// target runtime; nothing here is a published format.
package payload

import "github.com/Piebald-AI/tweakcc-sub001/common"

// Trailer is the constant byte sequence ending every payload. The host
// runtime locates the payload from end-of-file by this marker.
const Trailer = "\n---- Bun! ----\n"

const (
	// StringPointerSize is two packed u32s.
	StringPointerSize = 8

	// OffsetsHeaderSize is the packed sum of the header fields:
	// u64 byte count, modules pointer, u32 entry point id, argv pointer.
	OffsetsHeaderSize = 8 + StringPointerSize + 4 + StringPointerSize

	// ModuleRecordSize is four string pointers plus four tag bytes.
	ModuleRecordSize = 4*StringPointerSize + 4

	// ELFTailSize is the little-endian u64 appended after the payload in
	// ELF containers, holding the total embedded size including itself.
	ELFTailSize = 8
)

// StringPointer addresses a byte range within the payload. Stored strings
// are null-terminated; Length never includes the terminator, which always
// sits at Offset+Length.
type StringPointer struct {
	Offset uint32
	Length uint32
}

// OffsetsHeader is the fixed-size record sitting immediately before the
// trailer. ByteCount covers everything before the trailer, this header
// included; it is recomputed on every rebuild and never trusted from any
// other source.
type OffsetsHeader struct {
	ByteCount          uint64
	ModulesPtr         StringPointer
	EntryPointID       uint32
	CompileExecArgvPtr StringPointer
}

// ModuleRecord describes one compiled source module: four byte strings in
// the pool plus four single-byte classification tags.
type ModuleRecord struct {
	Name         StringPointer
	Contents     StringPointer
	Sourcemap    StringPointer
	Bytecode     StringPointer
	Encoding     byte
	Loader       byte
	ModuleFormat byte
	Side         byte
}

// Extraction is what a container extractor hands back: the raw payload and
// the structures decoded from it.
type Extraction struct {
	Format     common.BinaryFormat
	Payload    []byte
	Header     OffsetsHeader
	Modules    []ModuleRecord
	BasePrefix string
}
