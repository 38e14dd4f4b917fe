// Package fileval reads project manifests (package.json, pyproject.toml,
// *.csproj, ...) with guards that fail fast on files that cannot be text
// manifests: oversized files and binary content.
package fileval

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileTooLargeError is returned when a manifest exceeds the configured maximum size.
type FileTooLargeError struct {
	Path    string
	Size    int64
	MaxSize int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf(
		"%s: manifest too large (%d > %d bytes); raise [detection] max-manifest-size to override",
		e.Path, e.Size, e.MaxSize,
	)
}

// NotUTF8Error is returned when a manifest is not valid UTF-8 text.
type NotUTF8Error struct {
	Path string
}

func (e *NotUTF8Error) Error() string {
	return e.Path + ": manifest does not appear to be valid UTF-8 text"
}

// ReadManifest reads a manifest file after checking its size (when maxSize > 0)
// and returns its content with any UTF-8 byte order mark removed.
func ReadManifest(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, &FileTooLargeError{Path: path, Size: info.Size(), MaxSize: maxSize}
	}

	var r io.Reader = f
	if maxSize > 0 {
		// the file may grow between Stat and Read
		r = io.LimitReader(f, maxSize)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &NotUTF8Error{Path: path}
	}
	return data, nil
}
