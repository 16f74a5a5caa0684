package machorw

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
)

const sectionFileOffset = 0x200

// buildMachO assembles a minimal 64-bit Mach-O executable with a single
// payload segment whose section holds capacity bytes at a fixed offset.
func buildMachO(t *testing.T, segName, sectName string, raw []byte, capacity uint64) []byte {
	t.Helper()

	content := make([]byte, 4+len(raw))
	binary.LittleEndian.PutUint32(content[:4], uint32(len(raw)))
	copy(content[4:], raw)
	require.LessOrEqual(t, uint64(len(content)), capacity, "fixture payload must fit its section")

	img := make([]byte, sectionFileOffset+int(capacity))

	hdr := img[:32]
	binary.LittleEndian.PutUint32(hdr[0:], 0xFEEDFACF)  // MH_MAGIC_64
	binary.LittleEndian.PutUint32(hdr[4:], 0x01000007)  // x86_64
	binary.LittleEndian.PutUint32(hdr[12:], 2)          // MH_EXECUTE
	binary.LittleEndian.PutUint32(hdr[16:], 1)          // ncmds
	binary.LittleEndian.PutUint32(hdr[20:], 72+80)      // sizeofcmds
	binary.LittleEndian.PutUint32(hdr[24:], 0x00200085) // flags

	seg := img[32:]
	binary.LittleEndian.PutUint32(seg[0:], 0x19) // LC_SEGMENT_64
	binary.LittleEndian.PutUint32(seg[4:], 72+80)
	copy(seg[8:24], segName)
	binary.LittleEndian.PutUint64(seg[24:], 0x100004000) // vmaddr
	binary.LittleEndian.PutUint64(seg[32:], capacity)    // vmsize
	binary.LittleEndian.PutUint64(seg[40:], sectionFileOffset)
	binary.LittleEndian.PutUint64(seg[48:], capacity)
	binary.LittleEndian.PutUint32(seg[56:], 3) // maxprot rw
	binary.LittleEndian.PutUint32(seg[60:], 3)
	binary.LittleEndian.PutUint32(seg[64:], 1) // nsects

	sect := seg[72:]
	copy(sect[0:16], sectName)
	copy(sect[16:32], segName)
	binary.LittleEndian.PutUint64(sect[32:], 0x100004000)
	binary.LittleEndian.PutUint64(sect[40:], capacity)
	binary.LittleEndian.PutUint32(sect[48:], sectionFileOffset)

	copy(img[sectionFileOffset:], content)
	return img
}

func buildTestPayload(t *testing.T) *payload.RebuildResult {
	t.Helper()
	built, err := payload.Build([]payload.ModuleInput{
		{Name: []byte("/$bunfs/root/cli.js"), Contents: []byte("console.log(1)"), Loader: payload.LoaderJS},
		{Name: []byte("/$bunfs/root/util.js"), Contents: []byte("export{}"), Loader: payload.LoaderJS},
	}, 0, nil, false)
	require.NoError(t, err)
	return built
}

func TestExtractData(t *testing.T) {
	built := buildTestPayload(t)
	img := buildMachO(t, SegmentName, SectionName, built.Payload, 4096)

	ext, err := ExtractData(img)
	require.NoError(t, err)
	assert.Equal(t, common.FormatMachO, ext.Format)
	require.Len(t, ext.Modules, 2)
	assert.Equal(t, "/$bunfs/root/", ext.BasePrefix)
	assert.Equal(t, built.Header.ByteCount, ext.Header.ByteCount)
}

func TestExtractDataNoSection(t *testing.T) {
	built := buildTestPayload(t)
	img := buildMachO(t, "__TEXT", "__text", built.Payload, 4096)

	_, err := ExtractData(img)
	assert.ErrorIs(t, err, common.ErrSectionNotFound)
}

func TestExtractDataRejectsNonMachO(t *testing.T) {
	_, err := ExtractData(bytes.Repeat([]byte{0x7F}, 256))
	assert.ErrorIs(t, err, common.ErrFormatMismatch)
}

func TestRejectsWrappingSectionSize(t *testing.T) {
	built := buildTestPayload(t)
	img := buildMachO(t, SegmentName, SectionName, built.Payload, 4096)

	// A section size near 2^64 makes offset+size wrap below the file
	// length; the bound check must not rely on that sum.
	sectionSizeOff := 32 + 72 + 40
	binary.LittleEndian.PutUint64(img[sectionSizeOff:],
		^uint64(0)-sectionFileOffset+0x10)

	_, err := ExtractData(img)
	assert.ErrorIs(t, err, common.ErrHeaderParse)

	_, _, err = RepackData(img, built, Options{})
	assert.ErrorIs(t, err, common.ErrHeaderParse)
}

func TestRepackInPlace(t *testing.T) {
	built := buildTestPayload(t)
	img := buildMachO(t, SegmentName, SectionName, built.Payload, 4096)

	ext, err := ExtractData(img)
	require.NoError(t, err)
	rebuilt, err := payload.Rebuild(ext, map[string][]byte{"util.js": []byte("export default 0")})
	require.NoError(t, err)

	out, result, err := RepackData(img, rebuilt, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(img), len(out), "image size never changes")
	assert.True(t, result.Applied)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 1, result.Count)

	again, err := ExtractData(out)
	require.NoError(t, err)
	contents, err := payload.ReadStringPointer(again.Payload, again.Modules[1].Contents)
	require.NoError(t, err)
	assert.Equal(t, []byte("export default 0"), contents)

	// The section's slack past the new content is zeroed.
	end := sectionFileOffset + 4 + len(rebuilt.Payload)
	assert.Equal(t, make([]byte, len(out)-end), out[end:])
}

func TestRepackCapacityExceeded(t *testing.T) {
	built := buildTestPayload(t)
	capacity := uint64(4 + len(built.Payload))
	img := buildMachO(t, SegmentName, SectionName, built.Payload, capacity)

	ext, err := ExtractData(img)
	require.NoError(t, err)
	rebuilt, err := payload.Rebuild(ext, map[string][]byte{"cli.js": bytes.Repeat([]byte("z"), 500)})
	require.NoError(t, err)

	_, _, err = RepackData(img, rebuilt, Options{})
	assert.ErrorIs(t, err, common.ErrCapacityExceeded)
}

func TestRepackTruncation(t *testing.T) {
	built := buildTestPayload(t)
	capacity := uint64(4 + len(built.Payload))
	img := buildMachO(t, SegmentName, SectionName, built.Payload, capacity)

	ext, err := ExtractData(img)
	require.NoError(t, err)
	rebuilt, err := payload.Rebuild(ext, map[string][]byte{"cli.js": bytes.Repeat([]byte("z"), 500)})
	require.NoError(t, err)

	out, result, err := RepackData(img, rebuilt, Options{AllowTruncation: true})
	require.NoError(t, err)
	assert.Equal(t, len(img), len(out))
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "exceeds section capacity")

	// The truncated image no longer round-trips.
	_, err = ExtractData(out)
	assert.Error(t, err)
}
