package payload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Piebald-AI/tweakcc-sub001/common"
)

// Module names inside the payload carry a virtual filesystem prefix ending
// in "root/"; the on-disk representation of a module is keyed by the name
// with that prefix stripped.
const basePrefixMarker = "root/"

// Loader tag values, as the target runtime assigns them. Only the subset
// that affects on-disk extensions is interpreted; everything else is
// carried through opaque.
const (
	LoaderJSX  = 1
	LoaderJS   = 2
	LoaderTS   = 3
	LoaderTSX  = 4
	LoaderCSS  = 5
	LoaderFile = 6
	LoaderJSON = 7
	LoaderText = 13
)

// LoaderExt maps a module's loader tag to the file extension used when
// the module is written out for editing.
func LoaderExt(loader byte) string {
	switch loader {
	case LoaderJSX:
		return ".jsx"
	case LoaderTS:
		return ".ts"
	case LoaderTSX:
		return ".tsx"
	case LoaderCSS:
		return ".css"
	case LoaderJSON:
		return ".json"
	case LoaderText:
		return ".txt"
	default:
		return ".js"
	}
}

// DeriveBasePrefix takes the entry module's full name and returns the
// prefix up to and including the root marker, or "" when the name does
// not carry one.
func DeriveBasePrefix(entryName string) string {
	if idx := strings.Index(entryName, basePrefixMarker); idx >= 0 {
		return entryName[:idx+len(basePrefixMarker)]
	}
	return ""
}

// StripBasePrefix returns the module's logical (on-disk) name.
func StripBasePrefix(name, basePrefix string) string {
	if basePrefix != "" && strings.HasPrefix(name, basePrefix) {
		return name[len(basePrefix):]
	}
	return strings.TrimPrefix(name, "/")
}

// ModuleName reads the full stored name of a module record.
func (e *Extraction) ModuleName(record ModuleRecord) (string, error) {
	name, err := ReadStringPointer(e.Payload, record.Name)
	if err != nil {
		return "", err
	}
	return string(name), nil
}

// FileName returns the record's prefix-stripped on-disk name.
func (e *Extraction) FileName(record ModuleRecord) (string, error) {
	name, err := e.ModuleName(record)
	if err != nil {
		return "", err
	}
	return StripBasePrefix(name, e.BasePrefix), nil
}

// UnpackModules writes every module's contents under dir, keyed by the
// prefix-stripped name. Returns the number of files written.
func UnpackModules(ext *Extraction, dir string) (int, error) {
	written := 0
	for i, mod := range ext.Modules {
		name, err := ext.FileName(mod)
		if err != nil {
			return written, fmt.Errorf("module %d: %w", i, err)
		}
		if name == "" {
			name = fmt.Sprintf("module-%d%s", i, LoaderExt(mod.Loader))
		}
		contents, err := ReadStringPointer(ext.Payload, mod.Contents)
		if err != nil {
			return written, fmt.Errorf("module %d contents: %w", i, err)
		}

		outPath := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return written, fmt.Errorf("failed to create module directory: %w", err)
		}
		if err := os.WriteFile(outPath, contents, 0o644); err != nil {
			return written, fmt.Errorf("failed to write module %q: %w", name, err)
		}
		written++
	}
	return written, nil
}

// LoadReplacements walks dir and builds the replacement map consumed by
// Rebuild. Only files present in the directory become replacements;
// modules without a matching file are left verbatim.
func LoadReplacements(dir string) (map[string][]byte, error) {
	replacements := make(map[string][]byte)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read replacement %q: %w", rel, err)
		}
		replacements[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(replacements) == 0 {
		return nil, fmt.Errorf("no module files found under %s", dir)
	}
	return replacements, nil
}

// NewExtraction decodes a raw payload into a full extraction, deriving the
// base prefix from the entry module.
func NewExtraction(format common.BinaryFormat, raw []byte) (*Extraction, error) {
	header, modules, err := DecodePayload(raw)
	if err != nil {
		return nil, err
	}
	ext := &Extraction{
		Format:  format,
		Payload: raw,
		Header:  header,
		Modules: modules,
	}
	if int(header.EntryPointID) < len(modules) {
		entryName, err := ext.ModuleName(modules[header.EntryPointID])
		if err != nil {
			return nil, err
		}
		ext.BasePrefix = DeriveBasePrefix(entryName)
	}
	return ext, nil
}
