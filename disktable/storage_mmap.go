//go:build linux || darwin || freebsd || netbsd || openbsd

package disktable

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapStorage maps the whole table file into memory, the kernel pages it to and from disk.
type mmapStorage struct {
	file     *os.File
	data     []byte
	slotSize uint64
}

func openStorage(dir string, slots uint64, slotSize int) (storage, error) {
	file, err := os.CreateTemp(dir, "extdedup-*.tbl")
	if err != nil {
		return nil, err
	}
	size := int64(slots) * int64(slotSize)
	// sparse, reads as zeroes i.e. empty slots
	if err := file.Truncate(size); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("truncate %s: %w", file.Name(), err)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("mmap %s: %w", file.Name(), err)
	}
	return &mmapStorage{file: file, data: data, slotSize: uint64(slotSize)}, nil
}

func (s *mmapStorage) readSlot(index uint64, buf []byte) error {
	offset := index * s.slotSize
	copy(buf, s.data[offset:offset+s.slotSize])
	return nil
}

func (s *mmapStorage) writeSlot(index uint64, buf []byte) error {
	offset := index * s.slotSize
	copy(s.data[offset:offset+s.slotSize], buf)
	return nil
}

func (s *mmapStorage) path() string {
	return s.file.Name()
}

func (s *mmapStorage) close() error {
	// the file is thrown away so there is no msync
	errUnmap := unix.Munmap(s.data)
	s.data = nil
	errClose := s.file.Close()
	errRemove := os.Remove(s.file.Name())
	return errors.Join(errUnmap, errClose, errRemove)
}
