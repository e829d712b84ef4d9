package extdedup

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/prom"
)

const (
	ModeLines = "lines"
	ModeRows  = "rows"
)

// records between checks for cancellation
const cancelCheckInterval = 1024

// start of a snappy or s2 framed stream
var framedStreamMagic = [][]byte{
	[]byte("\xff\x06\x00\x00sNaPpY"),
	[]byte("\xff\x06\x00\x00S2sTwO"),
}

// IsFramedStream reports whether the next bytes of r start a snappy framed stream.
func IsFramedStream(r *bufio.Reader) bool {
	head, _ := r.Peek(len(framedStreamMagic[0]))
	for _, magic := range framedStreamMagic {
		if bytes.Equal(head, magic) {
			return true
		}
	}
	return false
}

// DedupLines copies each line of in to out the first time it is seen. Every later
// occurrence is counted and, if dupes is not nil, reported as "<ordinal>\t<line>" where
// ordinal is the 0-based line number. A nil out suppresses the primary output.
// Lines may end in \n or \r\n and the last line need not be terminated. Output lines always
// end in \n.
func DedupLines(ctx context.Context, cache *dedupe.Cache, in io.Reader, out, dupes io.Writer) (uint64, error) {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(in, 64*1024)
	}
	if IsFramedStream(br) {
		return 0, ErrCompressedInput
	}
	processed := prom.RecordsProcessed.WithLabelValues(ModeLines)
	duplicates := prom.DuplicatesFound.WithLabelValues(ModeLines)

	var count uint64
	var prefix []byte
	for ordinal := uint64(0); ; ordinal++ {
		if ordinal%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return count, fmt.Errorf("read line %d: %w", ordinal, readErr)
		}
		if len(line) == 0 && readErr == io.EOF {
			break
		}
		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		processed.Inc()

		found, err := cache.Contains(line)
		if err != nil {
			return count, fmt.Errorf("line %d: %w", ordinal, err)
		}
		if found {
			count++
			duplicates.Inc()
			if dupes != nil {
				prefix = strconv.AppendUint(prefix[:0], ordinal, 10)
				prefix = append(prefix, '\t')
				if err := writeLine(dupes, prefix, line); err != nil {
					return count, fmt.Errorf("write duplicate: %w", err)
				}
			}
		} else {
			if _, err := cache.Insert(line); err != nil {
				return count, fmt.Errorf("line %d: %w", ordinal, err)
			}
			if out != nil {
				if err := writeLine(out, nil, line); err != nil {
					return count, fmt.Errorf("write output: %w", err)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	return count, nil
}

func writeLine(w io.Writer, prefix, line []byte) error {
	if len(prefix) > 0 {
		if _, err := w.Write(prefix); err != nil {
			return err
		}
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}
