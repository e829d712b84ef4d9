package extdedup

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/prom"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/rowio"
)

// DupeRowHeader is the extra first column of the duplicates report.
const DupeRowHeader = "dupe_rowno"

// keyBuilder joins selected fields into a key, replacing invalid UTF-8 with U+FFFD.
type keyBuilder struct {
	cols    []int
	decoder *encoding.Decoder
	buf     []byte
}

func newKeyBuilder(cols []int) *keyBuilder {
	return &keyBuilder{cols: cols, decoder: unicode.UTF8.NewDecoder()}
}

func (k *keyBuilder) key(record []string) ([]byte, error) {
	k.buf = k.buf[:0]
	for _, c := range k.cols {
		if c >= len(record) {
			return nil, fmt.Errorf("selected column %d but record has %d fields", c+1, len(record))
		}
		field := record[c]
		if !utf8.ValidString(field) {
			fixed, err := k.decoder.String(field)
			if err != nil {
				return nil, err
			}
			field = fixed
		}
		k.buf = append(k.buf, field...)
	}
	return k.buf, nil
}

// DedupRows copies each record of r to out the first time its selected fields are seen.
// Later occurrences are counted and, if dupes is not nil, written with their 1-based data row
// number prepended. Unless noHeaders is set the first record is the header row, which is
// copied to out and, after a dupe_rowno column, to dupes. It is never keyed or counted.
// A nil out suppresses the primary output.
func DedupRows(ctx context.Context, cache *dedupe.Cache, r *csv.Reader, sel *rowio.Selection, noHeaders bool, out, dupes *csv.Writer) (uint64, error) {
	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read first record: %w", err)
	}
	cols, err := sel.Resolve(first, noHeaders)
	if err != nil {
		return 0, configError(err)
	}
	if !noHeaders {
		if out != nil {
			if err := out.Write(first); err != nil {
				return 0, fmt.Errorf("write headers: %w", err)
			}
		}
		if dupes != nil {
			if err := dupes.Write(append([]string{DupeRowHeader}, first...)); err != nil {
				return 0, fmt.Errorf("write duplicate headers: %w", err)
			}
		}
		first = nil
	}

	processed := prom.RecordsProcessed.WithLabelValues(ModeRows)
	duplicates := prom.DuplicatesFound.WithLabelValues(ModeRows)
	keys := newKeyBuilder(cols)
	var count uint64
	var dupeRecord []string

	process := func(idx uint64, record []string) error {
		processed.Inc()
		key, err := keys.key(record)
		if err != nil {
			return err
		}
		found, err := cache.Contains(key)
		if err != nil {
			return err
		}
		if found {
			count++
			duplicates.Inc()
			if dupes == nil {
				return nil
			}
			dupeRecord = append(dupeRecord[:0], strconv.FormatUint(idx+1, 10))
			dupeRecord = append(dupeRecord, record...)
			return dupes.Write(dupeRecord)
		}
		if _, err := cache.Insert(key); err != nil {
			return err
		}
		if out != nil {
			return out.Write(record)
		}
		return nil
	}

	var idx uint64
	if first != nil {
		if err := process(idx, first); err != nil {
			return count, fmt.Errorf("row %d: %w", idx+1, err)
		}
		idx++
	}
	// written records are copied into the writers' buffers immediately
	r.ReuseRecord = true
	for ; ; idx++ {
		if idx%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read row %d: %w", idx+1, err)
		}
		if err := process(idx, record); err != nil {
			return count, fmt.Errorf("row %d: %w", idx+1, err)
		}
	}
	return count, nil
}
