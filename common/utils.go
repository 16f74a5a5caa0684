package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// OutputFileMode is applied to every repacked executable: owner rwx,
// group/other rx.
const OutputFileMode = 0o755

// ReadFileData reads the whole file through ReadAt so the caller's seek
// position is left alone.
func ReadFileData(file *os.File) ([]byte, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, err
	}

	data := make([]byte, fileInfo.Size())
	if _, err := file.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

// ReadFile opens and fully reads path.
func ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)
	return ReadFileData(file)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place only on success, so a failed repack never leaves a partial
// output behind. The final file carries OutputFileMode.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp output: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Chmod(OutputFileMode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to finalize output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// CopyFile copies src to dst preserving nothing but the bytes; dst ends up
// with OutputFileMode like every other produced binary.
func CopyFile(src, dst string) error {
	data, err := ReadFile(src)
	if err != nil {
		return err
	}
	return WriteFileAtomic(dst, data)
}
