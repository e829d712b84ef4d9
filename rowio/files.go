package rowio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IsStd reports whether path means stdin or stdout.
func IsStd(path string) bool {
	return path == "" || path == "-"
}

// IsSnappy reports whether path names a snappy framed file.
func IsSnappy(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sz")
}

type stdin struct{ io.Reader }

func (stdin) Close() error { return nil }

type stdout struct{ io.Writer }

func (stdout) Close() error { return nil }

// Open returns path for reading, or stdin for "" and "-". Closing stdin is a no-op.
func Open(path string) (io.ReadCloser, error) {
	if IsStd(path) {
		return stdin{os.Stdin}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// Create truncates path for writing, or returns stdout for "" and "-". Closing stdout is a no-op.
func Create(path string) (io.WriteCloser, error) {
	if IsStd(path) {
		return stdout{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
