package perw

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

// peLayout carries the raw-byte offsets of the header fields the rewriter
// touches. All of them are computed from e_lfanew by hand; the optional
// header field positions used here are identical for PE32 and PE32+.
type peLayout struct {
	optOffset        int64
	sectionTableOff  int64
	numSections      int
	fileAlignment    uint32
	sectionAlignment uint32
	sizeOfHeaders    uint32
}

func parseLayout(data []byte) (*peLayout, error) {
	if err := validateDOSHeader(data); err != nil {
		return nil, err
	}
	peOff := int64(binary.LittleEndian.Uint32(data[0x3C:0x40]))
	coffOff := peOff + 4
	if coffOff+20 > int64(len(data)) {
		return nil, fmt.Errorf("%w: COFF header out of range", common.ErrFormatMismatch)
	}
	numSections := int(binary.LittleEndian.Uint16(data[coffOff+2 : coffOff+4]))
	optSize := int64(binary.LittleEndian.Uint16(data[coffOff+16 : coffOff+18]))
	optOff := coffOff + 20
	if optOff+optSize > int64(len(data)) || optSize < 64 {
		return nil, fmt.Errorf("%w: optional header out of range", common.ErrFormatMismatch)
	}

	layout := &peLayout{
		optOffset:        optOff,
		sectionTableOff:  optOff + optSize,
		numSections:      numSections,
		sectionAlignment: binary.LittleEndian.Uint32(data[optOff+32 : optOff+36]),
		fileAlignment:    binary.LittleEndian.Uint32(data[optOff+36 : optOff+40]),
		sizeOfHeaders:    binary.LittleEndian.Uint32(data[optOff+60 : optOff+64]),
	}
	if layout.fileAlignment == 0 || layout.sectionAlignment == 0 {
		return nil, fmt.Errorf("%w: zero alignment", common.ErrFormatMismatch)
	}
	if layout.sectionTableOff+int64(numSections*sectionHeaderSize) > int64(len(data)) {
		return nil, fmt.Errorf("%w: section table out of range", common.ErrFormatMismatch)
	}
	return layout, nil
}

func alignUp(v, alignment uint32) uint32 {
	if alignment == 0 {
		return v
	}
	return (v + alignment - 1) &^ (alignment - 1)
}

type sectionEntry struct {
	name          string
	headerOff     int64
	virtualSize   uint32
	virtualAddr   uint32
	sizeOfRawData uint32
	rawPointer    uint32
}

func readSectionTable(data []byte, layout *peLayout) []sectionEntry {
	entries := make([]sectionEntry, layout.numSections)
	for i := range entries {
		off := layout.sectionTableOff + int64(i*sectionHeaderSize)
		entries[i] = sectionEntry{
			name:          string(bytes.TrimRight(data[off:off+8], "\x00")),
			headerOff:     off,
			virtualSize:   binary.LittleEndian.Uint32(data[off+8 : off+12]),
			virtualAddr:   binary.LittleEndian.Uint32(data[off+12 : off+16]),
			sizeOfRawData: binary.LittleEndian.Uint32(data[off+16 : off+20]),
			rawPointer:    binary.LittleEndian.Uint32(data[off+20 : off+24]),
		}
	}
	return entries
}

// RepackData regenerates a PE image with the ".bun" section replaced by
// the rebuilt payload. Headers are kept verbatim except for the section
// table and SizeOfImage; every section's raw data is re-placed at
// sequential file-aligned offsets, which is what lets the section grow.
// Trailing overlay bytes (authenticode signatures and the like) are
// carried over after the last section.
func RepackData(data []byte, rebuilt *payload.RebuildResult) ([]byte, error) {
	layout, err := parseLayout(data)
	if err != nil {
		return nil, err
	}
	sections := readSectionTable(data, layout)

	bunIndex := -1
	for i, s := range sections {
		if s.name == SectionName {
			bunIndex = i
		}
	}
	if bunIndex < 0 {
		return nil, fmt.Errorf("%w: no %s section", common.ErrSectionNotFound, SectionName)
	}
	// Growth reshuffles raw placement but never rebases virtual
	// addresses, so the payload section has to sit at the top of the
	// address space.
	for i, s := range sections {
		if i != bunIndex && s.virtualAddr > sections[bunIndex].virtualAddr {
			return nil, fmt.Errorf("%w: %s is not the last section virtually",
				common.ErrFormatMismatch, SectionName)
		}
	}

	newContent := make([]byte, 4+len(rebuilt.Payload))
	binary.LittleEndian.PutUint32(newContent[:4], uint32(len(rebuilt.Payload)))
	copy(newContent[4:], rebuilt.Payload)

	// Original overlay: everything past the last raw section byte.
	overlayStart := uint32(len(data))
	var lastRawEnd uint32
	for _, s := range sections {
		if end := s.rawPointer + s.sizeOfRawData; s.rawPointer > 0 && end > lastRawEnd {
			lastRawEnd = end
		}
	}
	if lastRawEnd > 0 && lastRawEnd < overlayStart {
		overlayStart = lastRawEnd
	}

	header := make([]byte, layout.sizeOfHeaders)
	copy(header, data[:min(int(layout.sizeOfHeaders), len(data))])

	out := make([]byte, 0, len(data)+len(newContent))
	out = append(out, header...)
	if pad := alignUp(layout.sizeOfHeaders, layout.fileAlignment) - layout.sizeOfHeaders; pad > 0 {
		out = append(out, make([]byte, pad)...)
	}

	sizeOfImage := alignUp(layout.sizeOfHeaders, layout.sectionAlignment)
	for i := range sections {
		s := &sections[i]

		var body []byte
		if i == bunIndex {
			body = newContent
			s.virtualSize = uint32(len(newContent))
			s.sizeOfRawData = alignUp(uint32(len(newContent)), layout.fileAlignment)
		} else if s.rawPointer > 0 && s.sizeOfRawData > 0 {
			end := uint64(s.rawPointer) + uint64(s.sizeOfRawData)
			if end > uint64(len(data)) {
				return nil, fmt.Errorf("%w: section %s extends past end of file",
					common.ErrHeaderParse, s.name)
			}
			body = data[s.rawPointer:end]
		}

		if s.sizeOfRawData > 0 {
			s.rawPointer = uint32(len(out))
			out = append(out, body...)
			if pad := int(s.sizeOfRawData) - len(body); pad > 0 {
				out = append(out, make([]byte, pad)...)
			}
		} else {
			s.rawPointer = 0
		}

		// Rewrite the section header in the copied header block.
		off := s.headerOff
		binary.LittleEndian.PutUint32(out[off+8:off+12], s.virtualSize)
		binary.LittleEndian.PutUint32(out[off+16:off+20], s.sizeOfRawData)
		binary.LittleEndian.PutUint32(out[off+20:off+24], s.rawPointer)

		sizeOfImage += alignUp(s.virtualSize, layout.sectionAlignment)
	}

	binary.LittleEndian.PutUint32(out[layout.optOffset+56:layout.optOffset+60], sizeOfImage)

	if overlayStart < uint32(len(data)) {
		out = append(out, data[overlayStart:]...)
	}

	// The regenerated image must still parse.
	if _, err := pe.NewFile(bytes.NewReader(out)); err != nil {
		return nil, fmt.Errorf("repacked image failed validation: %w", err)
	}
	return out, nil
}

// Repack writes a repacked copy of origPath to outPath. The input file is
// never touched; the output appears atomically with executable
// permissions or not at all.
func Repack(origPath, outPath string, rebuilt *payload.RebuildResult) (*common.OperationResult, error) {
	data, err := common.ReadFile(origPath)
	if err != nil {
		return nil, err
	}
	out, err := RepackData(data, rebuilt)
	if err != nil {
		return nil, err
	}
	if err := common.WriteFileAtomic(outPath, out); err != nil {
		return nil, err
	}
	return common.NewApplied("pe-repack",
		fmt.Sprintf("%d -> %d bytes", len(data), len(out)), rebuilt.Replaced), nil
}
