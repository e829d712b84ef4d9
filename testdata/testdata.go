package testdata

import (
	"embed"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"testing"
)

// dir of this go module, so tests can load files beneath it
var Dir string

//go:embed files
var Files embed.FS

func GetFile(name string) string {
	return string(GetFileBytes(name))
}

func GetFileBytes(name string) []byte {
	ret, err := Files.ReadFile(path.Join("files", name))
	if err != nil {
		log.Fatalf("could not load test file %v: %v", name, err)
	}
	return ret
}

// CopyToTemp writes the named fixture into a fresh temp dir and returns its path.
func CopyToTemp(t testing.TB, name string) string {
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, GetFileBytes(name), 0644); err != nil {
		t.Fatalf("could not write test file %v: %v", p, err)
	}
	return p
}

// ReadPath returns the content of a file written by a test.
func ReadPath(t testing.TB, p string) string {
	raw, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("could not read %v: %v", p, err)
	}
	return string(raw)
}

func init() {
	_, filename, _, _ := runtime.Caller(0)
	Dir = path.Dir(filename)
}
