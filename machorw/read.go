// Package machorw locates and rewrites the embedded payload in Mach-O
// executables. The payload lives in the __bun section of the __BUN
// segment; the write side patches the section's file range in a copy of
// the image, which bounds the new content by the section's declared size.
package machorw

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

const (
	// SegmentName and SectionName identify the reserved payload section.
	SegmentName = "__BUN"
	SectionName = "__bun"
)

func findSection(machoFile *macho.File) (*macho.Section, error) {
	for _, section := range machoFile.Sections {
		if section.Seg == SegmentName && section.Name == SectionName {
			return section, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s,%s section", common.ErrSectionNotFound, SegmentName, SectionName)
}

// ExtractData pulls the payload out of an in-memory Mach-O image. The
// section's first 4 bytes are the true payload length; the section's
// declared size may exceed it with padding and is never trusted for
// reading.
func ExtractData(data []byte) (*payload.Extraction, error) {
	machoFile, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFormatMismatch, err)
	}
	defer func(machoFile *macho.File) {
		_ = machoFile.Close()
	}(machoFile)

	section, err := findSection(machoFile)
	if err != nil {
		return nil, err
	}
	// Offset and Size come straight from the load command; the sum is
	// checked without adding so a huge Size cannot wrap past the guard.
	if section.Offset == 0 || uint64(section.Offset) > uint64(len(data)) ||
		section.Size > uint64(len(data))-uint64(section.Offset) {
		return nil, fmt.Errorf("%w: %s,%s section extends past end of file",
			common.ErrHeaderParse, SegmentName, SectionName)
	}

	body := data[section.Offset : uint64(section.Offset)+section.Size]
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: section too small for its length prefix", common.ErrHeaderParse)
	}
	length := binary.LittleEndian.Uint32(body[:4])
	if uint64(length)+4 > uint64(len(body)) {
		return nil, fmt.Errorf("%w: embedded length %d exceeds section of %d bytes",
			common.ErrHeaderParse, length, len(body))
	}
	return payload.NewExtraction(common.FormatMachO, body[4:4+length])
}

// Extract reads path and pulls out its embedded payload.
func Extract(path string) (*payload.Extraction, error) {
	data, err := common.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractData(data)
}
