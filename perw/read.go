// Package perw locates and rewrites the embedded payload in PE
// executables. The payload lives in a dedicated ".bun" section; the write
// side regenerates the whole image at the declared file alignment, so the
// section is free to grow.
package perw

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

// SectionName is the reserved PE section carrying the payload.
const SectionName = ".bun"

// sectionHeaderSize is one IMAGE_SECTION_HEADER entry.
const sectionHeaderSize = 40

func validateDOSHeader(data []byte) error {
	if len(data) < 0x40 {
		return fmt.Errorf("%w: file too small for a DOS header", common.ErrFormatMismatch)
	}
	if data[0] != 'M' || data[1] != 'Z' {
		return fmt.Errorf("%w: invalid DOS header signature", common.ErrFormatMismatch)
	}
	return nil
}

// sectionContent returns the payload bytes of a length-prefixed section
// body. The section's first 4 bytes are the true payload length; the
// declared raw size may exceed it with alignment padding and is never
// trusted for reading.
func sectionContent(body []byte) ([]byte, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: section too small for its length prefix", common.ErrHeaderParse)
	}
	length := binary.LittleEndian.Uint32(body[:4])
	if uint64(length)+4 > uint64(len(body)) {
		return nil, fmt.Errorf("%w: embedded length %d exceeds section of %d bytes",
			common.ErrHeaderParse, length, len(body))
	}
	return body[4 : 4+length], nil
}

// ExtractData pulls the payload out of an in-memory PE image.
func ExtractData(data []byte) (*payload.Extraction, error) {
	if err := validateDOSHeader(data); err != nil {
		return nil, err
	}
	peFile, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFormatMismatch, err)
	}
	defer func(peFile *pe.File) {
		_ = peFile.Close()
	}(peFile)

	section := peFile.Section(SectionName)
	if section == nil {
		return nil, fmt.Errorf("%w: no %s section", common.ErrSectionNotFound, SectionName)
	}
	if uint64(section.Offset)+uint64(section.Size) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s section extends past end of file",
			common.ErrHeaderParse, SectionName)
	}

	raw, err := sectionContent(data[section.Offset : section.Offset+section.Size])
	if err != nil {
		return nil, err
	}
	return payload.NewExtraction(common.FormatPE, raw)
}

// Extract reads path and pulls out its embedded payload.
func Extract(path string) (*payload.Extraction, error) {
	data, err := common.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractData(data)
}
