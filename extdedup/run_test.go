package extdedup

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/require"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/rowio"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/testdata"
)

func TestFormatCount(t *testing.T) {
	require.Equal(t, "12,345", FormatCount(12345, true))
	require.Equal(t, "12345", FormatCount(12345, false))
	require.Equal(t, "0", FormatCount(0, true))
	require.Equal(t, "999", FormatCount(999, true))
	require.Equal(t, "1,000,000", FormatCount(1_000_000, true))
}

func TestRunLines(t *testing.T) {
	in := testdata.CopyToTemp(t, "lines.txt")
	dir := t.TempDir()
	opts := Options{
		Input:       in,
		Output:      filepath.Join(dir, "out.txt"),
		DupesOutput: filepath.Join(dir, "dupes.txt"),
		TempDir:     t.TempDir(),
	}
	res, err := Run(context.Background(), opts)
	require.Nil(t, err)
	require.Equal(t, ModeLines, res.Mode)
	require.Equal(t, uint64(2), res.Duplicates)
	require.Equal(t, dedupe.DefaultMemoryBudget, res.Budget)
	require.Equal(t, "a\nb\nc\n", testdata.ReadPath(t, opts.Output))
	require.Equal(t, "2\ta\n4\tb\n", testdata.ReadPath(t, opts.DupesOutput))

	// count only
	opts.Output = filepath.Join(dir, "never.txt")
	opts.DupesOutput = ""
	opts.NoOutput = true
	res, err = Run(context.Background(), opts)
	require.Nil(t, err)
	require.Equal(t, uint64(2), res.Duplicates)
	_, err = os.Stat(opts.Output)
	require.True(t, os.IsNotExist(err))
}

func TestRunLinesUnbounded(t *testing.T) {
	in := testdata.CopyToTemp(t, "crlf.txt")
	limit := uint64(0)
	res, err := Run(context.Background(), Options{
		Input:       in,
		Output:      filepath.Join(t.TempDir(), "out.txt"),
		MemoryLimit: &limit,
		KeyEncoding: dedupe.EncodingChunk,
		TempDir:     t.TempDir(),
	})
	require.Nil(t, err)
	require.Equal(t, uint64(0), res.Budget)
	require.Equal(t, uint64(3), res.Duplicates)
	require.Equal(t, uint64(0), res.Cache.Flushes)
}

func TestRunLinesRejectsSnappy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt.SZ")
	require.Nil(t, os.WriteFile(path, []byte("a\na\n"), 0644))
	_, err := Run(context.Background(), Options{Input: path, NoOutput: true, TempDir: t.TempDir()})
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, ErrCompressedInput)

	// detected from content as well
	var packed bytes.Buffer
	w := s2.NewWriter(&packed, s2.WriterSnappyCompat())
	_, err = w.Write([]byte("a\na\n"))
	require.Nil(t, err)
	require.Nil(t, w.Close())
	path = filepath.Join(t.TempDir(), "lines.txt")
	require.Nil(t, os.WriteFile(path, packed.Bytes(), 0644))
	_, err = Run(context.Background(), Options{Input: path, NoOutput: true, TempDir: t.TempDir()})
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, ErrCompressedInput)
}

func TestRunRowsDelimiters(t *testing.T) {
	in := testdata.CopyToTemp(t, "cities.tsv")
	dir := t.TempDir()
	opts := Options{
		Input:       in,
		Output:      filepath.Join(dir, "out.tsv"),
		DupesOutput: filepath.Join(dir, "dupes.csv"),
		Select:      "city,country",
		TempDir:     t.TempDir(),
	}
	res, err := Run(context.Background(), opts)
	require.Nil(t, err)
	require.Equal(t, ModeRows, res.Mode)
	require.Equal(t, uint64(2), res.Duplicates)
	require.Equal(t, "id\tcity\tcountry\n1\tPerth\tAU\n2\tParis\tFR\n4\tPerth\tUK\n", testdata.ReadPath(t, opts.Output))
	require.Equal(t, "dupe_rowno,id,city,country\n3,3,Perth,AU\n5,5,Paris,FR\n", testdata.ReadPath(t, opts.DupesOutput))

	// an explicit delimiter applies to every file
	opts.Delimiter = `\t`
	opts.Output = filepath.Join(dir, "out.txt")
	opts.DupesOutput = filepath.Join(dir, "dupes.txt")
	_, err = Run(context.Background(), opts)
	require.Nil(t, err)
	require.Equal(t, "dupe_rowno\tid\tcity\tcountry\n3\t3\tPerth\tAU\n5\t5\tParis\tFR\n", testdata.ReadPath(t, opts.DupesOutput))
}

func TestRunRowsSnappy(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "names.csv.sz")
	f, err := os.Create(in)
	require.Nil(t, err)
	w := s2.NewWriter(f, s2.WriterSnappyCompat())
	_, err = w.Write(testdata.GetFileBytes("names.csv"))
	require.Nil(t, err)
	require.Nil(t, w.Close())
	require.Nil(t, f.Close())

	out := filepath.Join(dir, "out.csv.sz")
	res, err := Run(context.Background(), Options{Input: in, Output: out, Select: "2", TempDir: t.TempDir()})
	require.Nil(t, err)
	require.Equal(t, uint64(1), res.Duplicates)

	cfg, err := rowio.NewConfig(out)
	require.Nil(t, err)
	r, closer, err := cfg.Reader()
	require.Nil(t, err)
	defer closer.Close()
	rows, err := r.ReadAll()
	require.Nil(t, err)
	require.Equal(t, [][]string{{"id", "name"}, {"1", "x"}, {"2", "y"}}, rows)

	raw, err := os.Open(out)
	require.Nil(t, err)
	defer raw.Close()
	plain, err := io.ReadAll(s2.NewReader(raw))
	require.Nil(t, err)
	require.Equal(t, "id,name\n1,x\n2,y\n", string(plain))
}

func TestRunConfigErrors(t *testing.T) {
	in := testdata.CopyToTemp(t, "names.csv")
	out := filepath.Join(t.TempDir(), "out.csv")
	tables := []struct {
		test string
		opts Options
	}{
		{"bad selection", Options{Input: in, Output: out, Select: "1,,"}},
		{"unknown column", Options{Input: in, Output: out, Select: "missing"}},
		{"bad delimiter", Options{Input: in, Output: out, Select: "1", Delimiter: "::"}},
		{"bad encoding", Options{Input: in, Output: out, KeyEncoding: "sha1"}},
	}
	for _, table := range tables {
		table.opts.TempDir = t.TempDir()
		_, err := Run(context.Background(), table.opts)
		require.ErrorIs(t, err, ErrConfig, table.test)
	}

	_, err := Run(context.Background(), Options{Input: filepath.Join(t.TempDir(), "missing.txt"), NoOutput: true})
	require.NotNil(t, err)
	require.NotErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCancelled(t *testing.T) {
	in := testdata.CopyToTemp(t, "lines.txt")
	tmp := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limit := uint64(60)
	_, err := Run(ctx, Options{Input: in, NoOutput: true, MemoryLimit: &limit, TempDir: tmp})
	require.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(tmp)
	require.Nil(t, err)
	require.Empty(t, entries)
}
