//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package disktable

import (
	"errors"
	"fmt"
	"os"
)

// fileStorage keeps slots in a plain file accessed with positioned reads and writes.
type fileStorage struct {
	file     *os.File
	slotSize int64
}

func openStorage(dir string, slots uint64, slotSize int) (storage, error) {
	file, err := os.CreateTemp(dir, "extdedup-*.tbl")
	if err != nil {
		return nil, err
	}
	if err := file.Truncate(int64(slots) * int64(slotSize)); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("truncate %s: %w", file.Name(), err)
	}
	return &fileStorage{file: file, slotSize: int64(slotSize)}, nil
}

func (s *fileStorage) readSlot(index uint64, buf []byte) error {
	_, err := s.file.ReadAt(buf, int64(index)*s.slotSize)
	return err
}

func (s *fileStorage) writeSlot(index uint64, buf []byte) error {
	_, err := s.file.WriteAt(buf, int64(index)*s.slotSize)
	return err
}

func (s *fileStorage) path() string {
	return s.file.Name()
}

func (s *fileStorage) close() error {
	errClose := s.file.Close()
	errRemove := os.Remove(s.file.Name())
	return errors.Join(errClose, errRemove)
}
