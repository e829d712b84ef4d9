package rowio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/s2"

	st "github.com/AustralianCyberSecurityCentre/azul-extdedup.git/settings"
)

// DecodeDelimiter accepts a single ASCII character or the two character escape `\t`.
func DecodeDelimiter(s string) (byte, error) {
	if s == `\t` {
		return '\t', nil
	}
	if len(s) != 1 {
		return 0, fmt.Errorf("could not convert '%s' to a single ASCII character", s)
	}
	c := s[0]
	if c >= 0x80 {
		return 0, fmt.Errorf("could not convert '%s' to ASCII delimiter", s)
	}
	if c == '"' || c == '\r' || c == '\n' {
		return 0, fmt.Errorf("'%s' cannot be used as a delimiter", strings.TrimSpace(s))
	}
	return c, nil
}

// Config describes how one delimited file is read or written.
type Config struct {
	// "" or "-" for stdin/stdout
	Path      string
	Delimiter byte
	// first record is data rather than column names
	NoHeaders bool
	// lines starting with this byte are skipped when reading, 0 for none
	Comment     byte
	ReadBuffer  int
	WriteBuffer int
}

// NewConfig builds the config for path from settings. A .tsv or .tab file (before any .sz)
// is tab delimited and a .csv file comma delimited, otherwise the configured default applies.
func NewConfig(path string) (*Config, error) {
	delim, err := DecodeDelimiter(st.CSV.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("csv.delimiter setting: %w", err)
	}
	var comment byte
	if st.CSV.Comment != "" {
		if comment, err = DecodeDelimiter(st.CSV.Comment); err != nil {
			return nil, fmt.Errorf("csv.comment setting: %w", err)
		}
	}
	if !IsStd(path) {
		name := path
		if IsSnappy(name) {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".tsv", ".tab":
			delim = '\t'
		case ".csv":
			delim = ','
		}
	}
	return &Config{
		Path:        path,
		Delimiter:   delim,
		NoHeaders:   st.CSV.NoHeaders,
		Comment:     comment,
		ReadBuffer:  int(st.CSV.ReadBufferBytes),
		WriteBuffer: int(st.CSV.WriteBufferBytes),
	}, nil
}

// Reader opens the file for reading, decompressing .sz files.
// Records must all have the same number of fields.
func (c *Config) Reader() (*csv.Reader, io.Closer, error) {
	f, err := Open(c.Path)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader = f
	if IsSnappy(c.Path) {
		r = s2.NewReader(r)
	}
	if c.ReadBuffer > 0 {
		r = bufio.NewReaderSize(r, c.ReadBuffer)
	}
	cr := csv.NewReader(r)
	cr.Comma = rune(c.Delimiter)
	if c.Comment != 0 {
		cr.Comment = rune(c.Comment)
	}
	// checked against the first record
	cr.FieldsPerRecord = 0
	return cr, f, nil
}

type output struct {
	buf  *bufio.Writer
	comp *s2.Writer
	f    io.WriteCloser
}

// Close flushes anything the csv.Writer has handed over and closes the file.
func (o *output) Close() error {
	err := o.buf.Flush()
	if o.comp != nil {
		err = errors.Join(err, o.comp.Close())
	}
	return errors.Join(err, o.f.Close())
}

// Writer creates the file for writing, compressing .sz files in the snappy framing format.
// The csv.Writer must be flushed before the closer is closed.
func (c *Config) Writer() (*csv.Writer, io.Closer, error) {
	f, err := Create(c.Path)
	if err != nil {
		return nil, nil, err
	}
	o := &output{f: f}
	var w io.Writer = f
	if IsSnappy(c.Path) {
		o.comp = s2.NewWriter(w, s2.WriterSnappyCompat())
		w = o.comp
	}
	size := c.WriteBuffer
	if size <= 0 {
		size = 4096
	}
	o.buf = bufio.NewWriterSize(w, size)
	cw := csv.NewWriter(o.buf)
	cw.Comma = rune(c.Delimiter)
	return cw, o, nil
}
