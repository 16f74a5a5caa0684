// Package elfrw locates and rewrites the embedded payload in ELF
// executables. ELF carries no discoverable section table entry for the
// payload; its position is inferred arithmetically from end-of-file, so
// both read and write sides are pure offset bookkeeping against the tail.
package elfrw

import (
	"encoding/binary"
	"fmt"

	"github.com/yalue/elf_reader"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

// tailFixedSize is everything the tail locator needs before it can trust
// ByteCount: the trailing u64, the trailer and the offsets header.
const tailFixedSize = payload.ELFTailSize + len(payload.Trailer) + payload.OffsetsHeaderSize

// validateELF parses the container with elf_reader and rejects anything
// that is not an executable or shared object.
func validateELF(data []byte) error {
	elfFile, err := elf_reader.ParseELFFile(data)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrFormatMismatch, err)
	}
	fileType := elfFile.GetFileType()
	if fileType != elf_reader.ELFFileType(2) && fileType != elf_reader.ELFFileType(3) {
		return fmt.Errorf("%w: ELF type %d is not an executable or shared object",
			common.ErrFormatMismatch, fileType)
	}
	return nil
}

// LocateTail performs the two-pass read: first parse the offsets header at
// its fixed distance from end-of-file, then use its ByteCount to compute
// where the payload truly begins. Returns the payload start offset and the
// parsed header.
func LocateTail(data []byte) (int64, payload.OffsetsHeader, error) {
	fileSize := int64(len(data))
	if fileSize < int64(tailFixedSize) {
		return 0, payload.OffsetsHeader{}, fmt.Errorf("%w: file of %d bytes has no room for a payload tail",
			common.ErrSectionNotFound, fileSize)
	}

	trailerStart := fileSize - payload.ELFTailSize - int64(len(payload.Trailer))
	if string(data[trailerStart:trailerStart+int64(len(payload.Trailer))]) != payload.Trailer {
		return 0, payload.OffsetsHeader{}, fmt.Errorf("%w: no payload trailer at end of file",
			common.ErrSectionNotFound)
	}

	headerStart := trailerStart - payload.OffsetsHeaderSize
	header, err := payload.DecodeOffsets(data[headerStart:])
	if err != nil {
		return 0, payload.OffsetsHeader{}, err
	}

	// Bound ByteCount before any signed arithmetic touches it; a crafted
	// value near 2^64 would otherwise wrap the start offset positive again.
	if header.ByteCount > uint64(fileSize) {
		return 0, payload.OffsetsHeader{}, fmt.Errorf("%w: byte count %d exceeds file size %d",
			common.ErrHeaderParse, header.ByteCount, fileSize)
	}

	// The trailing u64 is the total embedded size including itself; it
	// must agree with the header before anything is trusted.
	embedSize := binary.LittleEndian.Uint64(data[fileSize-payload.ELFTailSize:])
	wantEmbed := header.ByteCount + uint64(len(payload.Trailer)) + payload.ELFTailSize
	if embedSize != wantEmbed {
		return 0, payload.OffsetsHeader{}, fmt.Errorf("%w: trailing size %d, header implies %d",
			common.ErrSizeMismatch, embedSize, wantEmbed)
	}

	bunDataStart := fileSize - payload.ELFTailSize - int64(len(payload.Trailer)) - int64(header.ByteCount)
	if bunDataStart < 0 {
		return 0, payload.OffsetsHeader{}, fmt.Errorf("%w: byte count %d exceeds file size %d",
			common.ErrHeaderParse, header.ByteCount, fileSize)
	}
	return bunDataStart, header, nil
}

// ExtractData pulls the payload out of an in-memory ELF image.
func ExtractData(data []byte) (*payload.Extraction, error) {
	if err := validateELF(data); err != nil {
		return nil, err
	}
	bunDataStart, header, err := LocateTail(data)
	if err != nil {
		return nil, err
	}
	raw := data[bunDataStart : bunDataStart+int64(header.ByteCount)+int64(len(payload.Trailer))]
	return payload.NewExtraction(common.FormatELF, raw)
}

// Extract reads path and pulls out its embedded payload.
func Extract(path string) (*payload.Extraction, error) {
	data, err := common.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractData(data)
}
