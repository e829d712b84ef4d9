package disktable

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

var ErrKeyWidth = errors.New("key length does not match table key width")
var ErrClosed = errors.New("table is closed")

const (
	slotEmpty    byte = 0
	slotOccupied byte = 1
)

// smallest table that will be created
const minSlots = 8

type Options struct {
	// number of keys the table is sized for up front
	InitialCapacity int
	// percentage of used slots that triggers a resize, 1-99
	MaxLoadPercent int
	// called after every resize with the new slot count
	OnGrow func(slots uint64)
}

func DefaultOptions() Options {
	return Options{InitialCapacity: 1_000_000, MaxLoadPercent: 95}
}

// storage is the slot array backing a table.
type storage interface {
	readSlot(index uint64, buf []byte) error
	writeSlot(index uint64, buf []byte) error
	path() string
	// release and delete the backing file
	close() error
}

type Table struct {
	dir      string
	keyWidth int
	slots    uint64
	mask     uint64
	count    uint64
	maxLoad  uint64
	onGrow   func(slots uint64)
	store    storage
	buf      []byte
}

// slotsFor returns the power of two slot count that holds capacity keys under maxLoad.
func slotsFor(capacity int, maxLoad uint64) uint64 {
	need := uint64(capacity)*100/maxLoad + 1
	slots := uint64(minSlots)
	for slots < need {
		slots <<= 1
	}
	return slots
}

// New creates an empty table in dir (os default temp dir if empty) for keys of exactly keyWidth bytes.
func New(dir string, keyWidth int, opts Options) (*Table, error) {
	if keyWidth <= 0 {
		return nil, fmt.Errorf("invalid key width %d", keyWidth)
	}
	if opts.MaxLoadPercent <= 0 || opts.MaxLoadPercent > 99 {
		opts.MaxLoadPercent = DefaultOptions().MaxLoadPercent
	}
	if opts.InitialCapacity <= 0 {
		opts.InitialCapacity = minSlots
	}
	maxLoad := uint64(opts.MaxLoadPercent)
	slots := slotsFor(opts.InitialCapacity, maxLoad)
	store, err := openStorage(dir, slots, 1+keyWidth)
	if err != nil {
		return nil, fmt.Errorf("could not create disk table in '%s': %w", dir, err)
	}
	return &Table{
		dir:      dir,
		keyWidth: keyWidth,
		slots:    slots,
		mask:     slots - 1,
		maxLoad:  maxLoad,
		onGrow:   opts.OnGrow,
		store:    store,
		buf:      make([]byte, 1+keyWidth),
	}, nil
}

// find probes for key, returning the slot that holds it or the empty slot where it belongs.
func (t *Table) find(store storage, mask uint64, key []byte) (uint64, bool, error) {
	index := xxhash.Sum64(key) & mask
	for {
		if err := store.readSlot(index, t.buf); err != nil {
			return 0, false, err
		}
		if t.buf[0] == slotEmpty {
			return index, false, nil
		}
		if bytes.Equal(t.buf[1:], key) {
			return index, true, nil
		}
		index = (index + 1) & mask
	}
}

func (t *Table) check(key []byte) error {
	if t.store == nil {
		return ErrClosed
	}
	if len(key) != t.keyWidth {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrKeyWidth, len(key), t.keyWidth)
	}
	return nil
}

// Contains reports whether key was previously inserted.
func (t *Table) Contains(key []byte) (bool, error) {
	if err := t.check(key); err != nil {
		return false, err
	}
	_, found, err := t.find(t.store, t.mask, key)
	return found, err
}

// Insert adds key, returning true if it was not already present.
func (t *Table) Insert(key []byte) (bool, error) {
	if err := t.check(key); err != nil {
		return false, err
	}
	index, found, err := t.find(t.store, t.mask, key)
	if err != nil || found {
		return false, err
	}
	if (t.count+1)*100 > t.slots*t.maxLoad {
		if err := t.grow(); err != nil {
			return false, err
		}
		if index, _, err = t.find(t.store, t.mask, key); err != nil {
			return false, err
		}
	}
	t.buf[0] = slotOccupied
	copy(t.buf[1:], key)
	if err := t.store.writeSlot(index, t.buf); err != nil {
		return false, err
	}
	t.count++
	return true, nil
}

// grow rehashes every key into a table file twice the size and removes the old file.
func (t *Table) grow() error {
	slots := t.slots << 1
	mask := slots - 1
	bigger, err := openStorage(t.dir, slots, 1+t.keyWidth)
	if err != nil {
		return fmt.Errorf("could not grow disk table to %d slots: %w", slots, err)
	}
	slot := make([]byte, 1+t.keyWidth)
	for i := uint64(0); i < t.slots; i++ {
		if err := t.store.readSlot(i, slot); err != nil {
			bigger.close()
			return err
		}
		if slot[0] != slotOccupied {
			continue
		}
		index, _, err := t.find(bigger, mask, slot[1:])
		if err != nil {
			bigger.close()
			return err
		}
		if err := bigger.writeSlot(index, slot); err != nil {
			bigger.close()
			return err
		}
	}
	if err := t.store.close(); err != nil {
		bigger.close()
		return err
	}
	t.store = bigger
	t.slots = slots
	t.mask = mask
	if t.onGrow != nil {
		t.onGrow(slots)
	}
	return nil
}

// Len returns the number of keys in the table.
func (t *Table) Len() uint64 {
	return t.count
}

func (t *Table) Slots() uint64 {
	return t.slots
}

func (t *Table) KeyWidth() int {
	return t.keyWidth
}

// Path of the current backing file, empty once closed.
func (t *Table) Path() string {
	if t.store == nil {
		return ""
	}
	return t.store.path()
}

// Close releases the table and deletes its file. It is safe to call more than once.
func (t *Table) Close() error {
	if t.store == nil {
		return nil
	}
	err := t.store.close()
	t.store = nil
	return err
}
