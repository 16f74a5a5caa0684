package common

import (
	"encoding/binary"
	"fmt"
	"os"
)

// BinaryFormat identifies the container carrying the embedded payload.
// Determined once per file and immutable afterwards.
type BinaryFormat int

const (
	FormatUnknown BinaryFormat = iota
	FormatMachO
	FormatPE
	FormatELF
)

func (f BinaryFormat) String() string {
	switch f {
	case FormatMachO:
		return "Mach-O"
	case FormatPE:
		return "PE"
	case FormatELF:
		return "ELF"
	default:
		return "unknown"
	}
}

// Mach-O magic numbers, 32/64-bit, both byte orders.
const (
	machoMagic32  = 0xFEEDFACE
	machoMagic64  = 0xFEEDFACF
	machoCigam32  = 0xCEFAEDFE
	machoCigam64  = 0xCFFAEDFE
	machoFatMagic = 0xCAFEBABE
)

// detectPrefixSize is enough bytes to chase the DOS stub's e_lfanew and
// verify the PE signature without a second read for any sane executable.
const detectPrefixSize = 4096

// DetectFormat classifies a byte prefix. PE detection follows the e_lfanew
// pointer at offset 0x3C and requires the "PE\0\0" signature, so a plain MZ
// stub with no PE header is not misclassified.
func DetectFormat(prefix []byte) (BinaryFormat, error) {
	if len(prefix) >= 4 {
		if prefix[0] == 0x7F && prefix[1] == 'E' && prefix[2] == 'L' && prefix[3] == 'F' {
			return FormatELF, nil
		}
		switch binary.LittleEndian.Uint32(prefix[:4]) {
		case machoMagic32, machoMagic64, machoCigam32, machoCigam64:
			return FormatMachO, nil
		}
		if binary.BigEndian.Uint32(prefix[:4]) == machoFatMagic {
			return FormatMachO, nil
		}
	}
	if len(prefix) >= 0x40 && prefix[0] == 'M' && prefix[1] == 'Z' {
		peOff := int64(binary.LittleEndian.Uint32(prefix[0x3C:0x40]))
		if peOff > 0 && peOff+4 <= int64(len(prefix)) {
			sig := prefix[peOff : peOff+4]
			if sig[0] == 'P' && sig[1] == 'E' && sig[2] == 0 && sig[3] == 0 {
				return FormatPE, nil
			}
		}
	}
	return FormatUnknown, ErrUnknownFormat
}

// DetectBinaryFormat reads a small prefix of the file and classifies it.
// Read-only; the file is never modified.
func DetectBinaryFormat(path string) (BinaryFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	prefix := make([]byte, detectPrefixSize)
	n, err := file.Read(prefix)
	if n == 0 && err != nil {
		return FormatUnknown, fmt.Errorf("failed to read file prefix: %w", err)
	}
	format, err := DetectFormat(prefix[:n])
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: %s", err, path)
	}
	return format, nil
}
