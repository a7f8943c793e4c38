package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const maxLineBytes = 64 * 1024

// OpenAppend opens the first of paths that can be opened for append,
// creating parent directories as needed. It returns the file and the path
// that was used. The error lists every path that failed.
func OpenAppend(paths ...string) (*os.File, string, error) {
	var errs []error
	for _, path := range paths {
		if path == "" {
			continue
		}
		f, err := openAppend(path)
		if err == nil {
			return f, path, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, "", errors.New("no log path configured")
	}
	return nil, "", errors.Join(errs...)
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// ScanLines calls fn for every line of the file at path. A missing file is
// treated as empty. Lines longer than maxLineBytes are skipped.
func ScanLines(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 4096)
	var (
		line     []byte
		oversize bool
	)
	for {
		chunk, more, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}
		if !oversize {
			line = append(line, chunk...)
			oversize = len(line) > maxLineBytes
		}
		if more {
			continue
		}
		if !oversize {
			fn(string(line))
		}
		line = line[:0]
		oversize = false
	}
}
