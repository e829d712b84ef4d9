package dedupe

import (
	"fmt"
	"math"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/disktable"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-extdedup.git/settings"
)

// Table is a set of fixed width keys held outside of memory.
type Table interface {
	// Insert adds key, returning false if it was already present
	Insert(key []byte) (bool, error)
	Contains(key []byte) (bool, error)
	// Len is the number of keys stored
	Len() uint64
	// Close releases the table and removes any backing files
	Close() error
}

// TableFactory creates the spill table on first flush.
type TableFactory func(keyWidth int) (Table, error)

// DiskTableFactory creates tables backed by a temporary file in dir.
func DiskTableFactory(dir string, opts disktable.Options) TableFactory {
	onGrow := opts.OnGrow
	opts.OnGrow = func(slots uint64) {
		prom.DedupeDiskGrowths.Inc()
		st.Logger.Debug().Uint64("slots", slots).Msg("spill table resized")
		if onGrow != nil {
			onGrow(slots)
		}
	}
	return func(keyWidth int) (Table, error) {
		tbl, err := disktable.New(dir, keyWidth, opts)
		if err != nil {
			return nil, err
		}
		return tbl, nil
	}
}

type Config struct {
	// bytes of keys held in memory before spilling, 0 for no limit
	Budget uint64
	// nil uses DigestEncoder
	Encoder KeyEncoder
	// nil creates disk tables in the os temp directory
	NewTable TableFactory
}

type Stats struct {
	// keys currently in the in-memory set and their total length
	MemoKeys  int
	MemoBytes uint64
	// times the in-memory set was spilled
	Flushes uint64
	// encoded keys in the spill table, 0 if it was never created
	DiskKeys uint64
}

// Cache is a set of byte keys that spills to a disk table when over its memory budget.
// Not safe for concurrent use.
type Cache struct {
	memo     map[string]struct{}
	memoSize uint64
	limit    uint64
	encoder  KeyEncoder
	newTable TableFactory
	disk     Table
	flushes  uint64
}

func New(cfg Config) *Cache {
	c := &Cache{
		memo:     make(map[string]struct{}),
		limit:    cfg.Budget,
		encoder:  cfg.Encoder,
		newTable: cfg.NewTable,
	}
	if c.limit == 0 {
		c.limit = math.MaxUint64
	}
	if c.encoder == nil {
		c.encoder = DigestEncoder{}
	}
	if c.newTable == nil {
		c.newTable = DiskTableFactory("", disktable.DefaultOptions())
	}
	return c
}

// Contains reports whether key was inserted before.
func (c *Cache) Contains(key []byte) (bool, error) {
	prom.DedupeCacheLookups.Inc()
	if _, ok := c.memo[string(key)]; ok {
		prom.DedupeCacheHits.Inc()
		return true, nil
	}
	if c.disk == nil {
		return false, nil
	}
	if c.tooLong(key) {
		// could never have been inserted
		return false, nil
	}
	encoded, err := c.encoder.Encode(key)
	if err != nil {
		return false, err
	}
	for _, k := range encoded {
		found, err := c.disk.Contains(k)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
	}
	prom.DedupeCacheHits.Inc()
	prom.DedupeCacheDiskHits.Inc()
	return true, nil
}

// Insert adds key to the set, spilling first if the memory budget is used up.
// Returns true if key was not already in the in-memory set.
func (c *Cache) Insert(key []byte) (bool, error) {
	if c.tooLong(key) {
		return false, fmt.Errorf("%w: %d bytes, max %d", ErrKeyTooLong, len(key), c.encoder.MaxKeyLen())
	}
	if c.memoSize >= c.limit {
		if err := c.flush(); err != nil {
			return false, err
		}
	}
	if _, ok := c.memo[string(key)]; ok {
		return false, nil
	}
	c.memo[string(key)] = struct{}{}
	c.memoSize += uint64(len(key))
	prom.DedupeCacheInserts.Inc()
	prom.DedupeMemoBytes.Set(float64(c.memoSize))
	if c.disk != nil {
		// keep the disk table complete so the next flush has nothing to lose
		if err := c.writeDisk(key); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (c *Cache) tooLong(key []byte) bool {
	limit := c.encoder.MaxKeyLen()
	return limit > 0 && len(key) > limit
}

func (c *Cache) writeDisk(key []byte) error {
	encoded, err := c.encoder.Encode(key)
	if err != nil {
		return err
	}
	for _, k := range encoded {
		if _, err := c.disk.Insert(k); err != nil {
			return fmt.Errorf("spill table insert: %w", err)
		}
		prom.DedupeDiskWrites.Inc()
	}
	return nil
}

// flush moves every in-memory key to the disk table, creating it if needed.
func (c *Cache) flush() error {
	if c.disk == nil {
		disk, err := c.newTable(c.encoder.Width())
		if err != nil {
			return fmt.Errorf("create spill table: %w", err)
		}
		c.disk = disk
		st.Logger.Debug().Str("encoding", c.encoder.Name()).Uint64("budget", c.limit).Msg("memory budget reached, spilling to disk")
	}
	for k := range c.memo {
		if err := c.writeDisk([]byte(k)); err != nil {
			return err
		}
	}
	st.Logger.Trace().Int("keys", len(c.memo)).Uint64("bytes", c.memoSize).Msg("flushed in-memory keys")
	c.memo = make(map[string]struct{})
	c.memoSize = 0
	c.flushes++
	prom.DedupeCacheFlushes.Inc()
	prom.DedupeMemoBytes.Set(0)
	return nil
}

func (c *Cache) Stats() Stats {
	s := Stats{MemoKeys: len(c.memo), MemoBytes: c.memoSize, Flushes: c.flushes}
	if c.disk != nil {
		s.DiskKeys = c.disk.Len()
	}
	return s
}

// Close removes the spill table. The cache must not be used afterwards.
func (c *Cache) Close() error {
	c.memo = nil
	if c.disk == nil {
		return nil
	}
	err := c.disk.Close()
	c.disk = nil
	return err
}
