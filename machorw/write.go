package machorw

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

// Options controls the repack policy when the rebuilt payload no longer
// fits the section.
type Options struct {
	// AllowTruncation restores the legacy behavior of writing anyway and
	// dropping everything past the section's declared capacity. The
	// resulting binary is very likely corrupt; the warning carried on the
	// result is the caller's only notice.
	AllowTruncation bool
}

// RepackData splices a rebuilt payload into a copy of an in-memory Mach-O
// image. Segments are never grown: content beyond the section's declared
// size is an ErrCapacityExceeded failure unless truncation was explicitly
// allowed.
func RepackData(data []byte, rebuilt *payload.RebuildResult, opts Options) ([]byte, *common.OperationResult, error) {
	machoFile, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrFormatMismatch, err)
	}
	defer func(machoFile *macho.File) {
		_ = machoFile.Close()
	}(machoFile)

	section, err := findSection(machoFile)
	if err != nil {
		return nil, nil, err
	}
	// Same overflow-safe bound as the read side; Size is untrusted.
	if section.Offset == 0 || uint64(section.Offset) > uint64(len(data)) ||
		section.Size > uint64(len(data))-uint64(section.Offset) {
		return nil, nil, fmt.Errorf("%w: %s,%s section extends past end of file",
			common.ErrHeaderParse, SegmentName, SectionName)
	}

	newContent := make([]byte, 4+len(rebuilt.Payload))
	binary.LittleEndian.PutUint32(newContent[:4], uint32(len(rebuilt.Payload)))
	copy(newContent[4:], rebuilt.Payload)

	result := common.NewApplied("macho-repack",
		fmt.Sprintf("%d payload bytes into a %d byte section", len(newContent), section.Size),
		rebuilt.Replaced)

	if uint64(len(newContent)) > section.Size {
		if !opts.AllowTruncation {
			return nil, nil, fmt.Errorf("%w: new content is %d bytes, section holds %d",
				common.ErrCapacityExceeded, len(newContent), section.Size)
		}
		result.Warn("new content (%d bytes) exceeds section capacity (%d bytes); %d bytes dropped, output is likely corrupt",
			len(newContent), section.Size, uint64(len(newContent))-section.Size)
		newContent = newContent[:section.Size]
	}

	// Copy the whole image, overwrite the section range, zero-pad the
	// remainder of its declared size.
	out := make([]byte, len(data))
	copy(out, data)
	copy(out[section.Offset:], newContent)
	for i := uint64(section.Offset) + uint64(len(newContent)); i < uint64(section.Offset)+section.Size; i++ {
		out[i] = 0
	}
	return out, result, nil
}

// Repack writes a repacked copy of origPath to outPath. The input file is
// never touched; the output appears atomically with executable
// permissions or not at all.
func Repack(origPath, outPath string, rebuilt *payload.RebuildResult, opts Options) (*common.OperationResult, error) {
	data, err := common.ReadFile(origPath)
	if err != nil {
		return nil, err
	}
	out, result, err := RepackData(data, rebuilt, opts)
	if err != nil {
		return nil, err
	}
	if err := common.WriteFileAtomic(outPath, out); err != nil {
		return nil, err
	}
	return result, nil
}
