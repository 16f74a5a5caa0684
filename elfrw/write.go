package elfrw

import (
	"encoding/binary"
	"fmt"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

// RepackData splices a rebuilt payload into an in-memory ELF image: every
// byte before the old payload is copied verbatim, then the new payload and
// a recomputed trailing u64 are appended. Nothing but the file-size
// arithmetic locates the payload, so growth and shrinkage both work.
// The trailer already ends the rebuilt payload; only the u64 is appended
// after it.
func RepackData(data []byte, rebuilt *payload.RebuildResult) ([]byte, error) {
	if err := validateELF(data); err != nil {
		return nil, err
	}
	bunDataStart, _, err := LocateTail(data)
	if err != nil {
		return nil, err
	}

	embedSize := rebuilt.Header.ByteCount + uint64(len(payload.Trailer)) + payload.ELFTailSize

	out := make([]byte, 0, bunDataStart+int64(len(rebuilt.Payload))+payload.ELFTailSize)
	out = append(out, data[:bunDataStart]...)
	out = append(out, rebuilt.Payload...)
	out = binary.LittleEndian.AppendUint64(out, embedSize)

	// The copied prefix must still be a well-formed container.
	if err := validateELF(out); err != nil {
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
	return common.NewApplied("elf-repack",
		fmt.Sprintf("%d -> %d bytes", len(data), len(out)), rebuilt.Replaced), nil
}
