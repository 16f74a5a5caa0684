package payload

import (
	"encoding/binary"
	"fmt"

	"github.com/Piebald-AI/tweakcc-sub001/common"
)

// Pure encode/decode for the fixed-size records. Everything is packed
// little-endian in declaration order; the round-trip law
// Decode(Encode(x)) == x holds bit-exact for both record types.

func encodeStringPointer(dst []byte, p StringPointer) {
	binary.LittleEndian.PutUint32(dst[0:4], p.Offset)
	binary.LittleEndian.PutUint32(dst[4:8], p.Length)
}

func decodeStringPointer(src []byte) StringPointer {
	return StringPointer{
		Offset: binary.LittleEndian.Uint32(src[0:4]),
		Length: binary.LittleEndian.Uint32(src[4:8]),
	}
}

// EncodeOffsets serializes the offsets header to exactly OffsetsHeaderSize bytes.
func EncodeOffsets(h OffsetsHeader) []byte {
	buf := make([]byte, OffsetsHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.ByteCount)
	encodeStringPointer(buf[8:16], h.ModulesPtr)
	binary.LittleEndian.PutUint32(buf[16:20], h.EntryPointID)
	encodeStringPointer(buf[20:28], h.CompileExecArgvPtr)
	return buf
}

// DecodeOffsets parses an offsets header from raw bytes.
func DecodeOffsets(data []byte) (OffsetsHeader, error) {
	if len(data) < OffsetsHeaderSize {
		return OffsetsHeader{}, fmt.Errorf("%w: offsets header needs %d bytes, have %d",
			common.ErrHeaderParse, OffsetsHeaderSize, len(data))
	}
	return OffsetsHeader{
		ByteCount:          binary.LittleEndian.Uint64(data[0:8]),
		ModulesPtr:         decodeStringPointer(data[8:16]),
		EntryPointID:       binary.LittleEndian.Uint32(data[16:20]),
		CompileExecArgvPtr: decodeStringPointer(data[20:28]),
	}, nil
}

// EncodeModuleRecord serializes a module record to exactly ModuleRecordSize bytes.
func EncodeModuleRecord(r ModuleRecord) []byte {
	buf := make([]byte, ModuleRecordSize)
	encodeStringPointer(buf[0:8], r.Name)
	encodeStringPointer(buf[8:16], r.Contents)
	encodeStringPointer(buf[16:24], r.Sourcemap)
	encodeStringPointer(buf[24:32], r.Bytecode)
	buf[32] = r.Encoding
	buf[33] = r.Loader
	buf[34] = r.ModuleFormat
	buf[35] = r.Side
	return buf
}

// DecodeModuleRecord parses a module record from raw bytes.
func DecodeModuleRecord(data []byte) (ModuleRecord, error) {
	if len(data) < ModuleRecordSize {
		return ModuleRecord{}, fmt.Errorf("%w: module record needs %d bytes, have %d",
			common.ErrHeaderParse, ModuleRecordSize, len(data))
	}
	return ModuleRecord{
		Name:         decodeStringPointer(data[0:8]),
		Contents:     decodeStringPointer(data[8:16]),
		Sourcemap:    decodeStringPointer(data[16:24]),
		Bytecode:     decodeStringPointer(data[24:32]),
		Encoding:     data[32],
		Loader:       data[33],
		ModuleFormat: data[34],
		Side:         data[35],
	}, nil
}

// ReadStringPointer slices the pointed-at bytes out of the payload. The
// stored length is authoritative; the slice never runs past it even if a
// null byte appears later.
func ReadStringPointer(data []byte, p StringPointer) ([]byte, error) {
	end := uint64(p.Offset) + uint64(p.Length)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: string pointer %d+%d exceeds payload of %d bytes",
			common.ErrHeaderParse, p.Offset, p.Length, len(data))
	}
	return data[p.Offset:end], nil
}

// checkTerminated verifies the invariant that a null byte immediately
// follows every pooled string.
func checkTerminated(data []byte, p StringPointer) error {
	if p == (StringPointer{}) {
		// Absent string (no sourcemap, no bytecode, no argv).
		return nil
	}
	end := uint64(p.Offset) + uint64(p.Length)
	if end >= uint64(len(data)) {
		return fmt.Errorf("%w: string pointer %d+%d leaves no room for terminator",
			common.ErrHeaderParse, p.Offset, p.Length)
	}
	if data[end] != 0 {
		return fmt.Errorf("%w: string at %d+%d is not null-terminated",
			common.ErrHeaderParse, p.Offset, p.Length)
	}
	return nil
}

// DecodePayload parses a complete payload blob: trailer check, offsets
// header, module table, and the terminator invariant for every pointer.
func DecodePayload(data []byte) (OffsetsHeader, []ModuleRecord, error) {
	if len(data) < OffsetsHeaderSize+len(Trailer) {
		return OffsetsHeader{}, nil, fmt.Errorf("%w: payload of %d bytes is too small",
			common.ErrHeaderParse, len(data))
	}
	if string(data[len(data)-len(Trailer):]) != Trailer {
		return OffsetsHeader{}, nil, fmt.Errorf("%w: payload trailer missing", common.ErrHeaderParse)
	}

	headerStart := len(data) - len(Trailer) - OffsetsHeaderSize
	header, err := DecodeOffsets(data[headerStart:])
	if err != nil {
		return OffsetsHeader{}, nil, err
	}
	if header.ByteCount != uint64(len(data)-len(Trailer)) {
		return OffsetsHeader{}, nil, fmt.Errorf("%w: header byte count %d, payload holds %d before trailer",
			common.ErrSizeMismatch, header.ByteCount, len(data)-len(Trailer))
	}

	tableBytes, err := ReadStringPointer(data, header.ModulesPtr)
	if err != nil {
		return OffsetsHeader{}, nil, err
	}
	if len(tableBytes)%ModuleRecordSize != 0 {
		return OffsetsHeader{}, nil, fmt.Errorf("%w: module table of %d bytes is not a whole number of records",
			common.ErrHeaderParse, len(tableBytes))
	}

	modules := make([]ModuleRecord, 0, len(tableBytes)/ModuleRecordSize)
	for off := 0; off < len(tableBytes); off += ModuleRecordSize {
		record, err := DecodeModuleRecord(tableBytes[off : off+ModuleRecordSize])
		if err != nil {
			return OffsetsHeader{}, nil, err
		}
		for _, ptr := range []StringPointer{record.Name, record.Contents, record.Sourcemap, record.Bytecode} {
			if err := checkTerminated(data, ptr); err != nil {
				return OffsetsHeader{}, nil, err
			}
		}
		modules = append(modules, record)
	}

	if header.EntryPointID >= uint32(len(modules)) && len(modules) > 0 {
		return OffsetsHeader{}, nil, fmt.Errorf("%w: entry point id %d with %d modules",
			common.ErrHeaderParse, header.EntryPointID, len(modules))
	}
	if err := checkTerminated(data, header.CompileExecArgvPtr); err != nil {
		return OffsetsHeader{}, nil, err
	}

	return header, modules, nil
}
