package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Piebald-AI/tweakcc-sub001/common"
)

func TestOffsetsRoundTrip(t *testing.T) {
	tests := []OffsetsHeader{
		{},
		{
			ByteCount:          0x1122334455667788,
			ModulesPtr:         StringPointer{Offset: 0xDEADBEEF, Length: 0x01020304},
			EntryPointID:       7,
			CompileExecArgvPtr: StringPointer{Offset: 42, Length: 13},
		},
		{ByteCount: 1, EntryPointID: 0xFFFFFFFF},
	}

	for _, header := range tests {
		encoded := EncodeOffsets(header)
		require.Len(t, encoded, OffsetsHeaderSize)

		decoded, err := DecodeOffsets(encoded)
		require.NoError(t, err)
		assert.Equal(t, header, decoded)
	}
}

func TestModuleRecordRoundTrip(t *testing.T) {
	tests := []ModuleRecord{
		{},
		{
			Name:         StringPointer{Offset: 0, Length: 9},
			Contents:     StringPointer{Offset: 10, Length: 100},
			Sourcemap:    StringPointer{Offset: 111, Length: 0},
			Bytecode:     StringPointer{Offset: 0xFFFF0000, Length: 0xFFFF},
			Encoding:     1,
			Loader:       LoaderTSX,
			ModuleFormat: 2,
			Side:         1,
		},
	}

	for _, record := range tests {
		encoded := EncodeModuleRecord(record)
		require.Len(t, encoded, ModuleRecordSize)

		decoded, err := DecodeModuleRecord(encoded)
		require.NoError(t, err)
		assert.Equal(t, record, decoded)
	}
}

func TestDecodeShortBuffers(t *testing.T) {
	_, err := DecodeOffsets(make([]byte, OffsetsHeaderSize-1))
	assert.ErrorIs(t, err, common.ErrHeaderParse)

	_, err = DecodeModuleRecord(make([]byte, ModuleRecordSize-1))
	assert.ErrorIs(t, err, common.ErrHeaderParse)
}

func TestReadStringPointerLengthIsAuthoritative(t *testing.T) {
	// A null byte inside the range must not end the read early, and a
	// null byte after the range must not extend it.
	data := []byte("ab\x00cd\x00ef")

	got, err := ReadStringPointer(data, StringPointer{Offset: 0, Length: 5})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab\x00cd"), got)

	got, err = ReadStringPointer(data, StringPointer{Offset: 3, Length: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte("cd"), got)
}

func TestReadStringPointerOutOfRange(t *testing.T) {
	data := []byte("short")
	_, err := ReadStringPointer(data, StringPointer{Offset: 3, Length: 10})
	assert.ErrorIs(t, err, common.ErrHeaderParse)

	// Offset+Length overflowing u32 arithmetic must not wrap.
	_, err = ReadStringPointer(data, StringPointer{Offset: 0xFFFFFFFF, Length: 0xFFFFFFFF})
	assert.ErrorIs(t, err, common.ErrHeaderParse)
}

func TestDecodePayloadRejectsMissingTrailer(t *testing.T) {
	built, err := Build([]ModuleInput{{Name: []byte("/root/a.js"), Contents: []byte("x")}}, 0, nil, false)
	require.NoError(t, err)

	truncated := built.Payload[:len(built.Payload)-1]
	_, _, err = DecodePayload(truncated)
	assert.ErrorIs(t, err, common.ErrHeaderParse)
}

func TestDecodePayloadRejectsByteCountDrift(t *testing.T) {
	built, err := Build([]ModuleInput{{Name: []byte("/root/a.js"), Contents: []byte("x")}}, 0, nil, false)
	require.NoError(t, err)

	// Corrupt the stored byte count in place.
	headerStart := len(built.Payload) - len(Trailer) - OffsetsHeaderSize
	corrupted := append([]byte(nil), built.Payload...)
	corrupted[headerStart]++

	_, _, err = DecodePayload(corrupted)
	assert.ErrorIs(t, err, common.ErrSizeMismatch)
}
