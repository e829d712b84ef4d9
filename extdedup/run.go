package extdedup

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/disktable"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/prom"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/rowio"
	st "github.com/AustralianCyberSecurityCentre/azul-extdedup.git/settings"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/sysmem"
)

type Options struct {
	// "" or "-" for stdin and stdout
	Input  string
	Output string
	// duplicates report, empty for none
	DupesOutput string
	// column selection, switches to CSV mode when set
	Select string
	// do not write the primary output, lines mode only
	NoOutput bool
	// first CSV record is data
	NoHeaders bool
	// CSV delimiter, empty to infer from file names and settings
	Delimiter string
	// --memory-limit, nil if not given
	MemoryLimit *uint64
	// digest or chunk, empty for the configured default
	KeyEncoding string
	// spill table directory, empty for the configured default
	TempDir string
}

type Result struct {
	Mode       string
	Duplicates uint64
	Budget     uint64
	Cache      dedupe.Stats
	Elapsed    time.Duration
}

// FormatCount renders a duplicate count, comma grouped when human is set.
func FormatCount(n uint64, human bool) string {
	if human {
		return humanize.Comma(int64(n))
	}
	return fmt.Sprintf("%d", n)
}

// Budget resolves the memory budget for limit against this host.
func Budget(limit *uint64) uint64 {
	total, ok := sysmem.Total()
	if !ok {
		st.Logger.Debug().Msg("total memory unknown, using default memory budget")
	}
	return dedupe.MemoryBudget(limit, total, ok)
}

func newCache(opts *Options, budget uint64) (*dedupe.Cache, error) {
	name := opts.KeyEncoding
	if name == "" {
		name = st.Dedup.KeyEncoding
	}
	enc, err := dedupe.EncoderByName(name)
	if err != nil {
		return nil, configError(err)
	}
	dir := opts.TempDir
	if dir == "" {
		dir = st.Settings.TempDir
	}
	return dedupe.New(dedupe.Config{
		Budget:  budget,
		Encoder: enc,
		NewTable: dedupe.DiskTableFactory(dir, disktable.Options{
			InitialCapacity: st.Dedup.DiskInitialCapacity,
			MaxLoadPercent:  st.Dedup.DiskMaxLoadPercent,
		}),
	}), nil
}

// Run deduplicates opts.Input into opts.Output. The duplicate count is only valid when
// err is nil. Outputs may be partially written on error.
func Run(ctx context.Context, opts Options) (res Result, err error) {
	start := time.Now()
	res.Mode = ModeLines
	if opts.Select != "" {
		res.Mode = ModeRows
	}
	res.Budget = Budget(opts.MemoryLimit)
	cache, err := newCache(&opts, res.Budget)
	if err != nil {
		return res, err
	}
	defer func() {
		res.Cache = cache.Stats()
		err = errors.Join(err, cache.Close())
	}()
	st.Logger.Debug().Str("mode", res.Mode).Str("input", opts.Input).Uint64("budget", res.Budget).Msg("starting dedup")

	if res.Mode == ModeRows {
		res.Duplicates, err = runRows(ctx, cache, &opts)
	} else {
		res.Duplicates, err = runLines(ctx, cache, &opts)
	}
	if err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)
	prom.RunTimes.WithLabelValues(res.Mode).Observe(res.Elapsed.Seconds())
	st.Logger.Info().Str("mode", res.Mode).Uint64("duplicates", res.Duplicates).
		Dur("elapsed", res.Elapsed).Msg("dedup finished")
	return res, nil
}

func runLines(ctx context.Context, cache *dedupe.Cache, opts *Options) (count uint64, err error) {
	if rowio.IsSnappy(opts.Input) {
		return 0, configError(ErrCompressedInput)
	}
	in, err := rowio.Open(opts.Input)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	bufSize := int(st.CSV.WriteBufferBytes)
	var out, dupes *bufio.Writer
	if !opts.NoOutput {
		f, cerr := rowio.Create(opts.Output)
		if cerr != nil {
			return 0, cerr
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		out = bufio.NewWriterSize(f, bufSize)
	}
	if opts.DupesOutput != "" {
		f, cerr := rowio.Create(opts.DupesOutput)
		if cerr != nil {
			return 0, cerr
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		dupes = bufio.NewWriterSize(f, bufSize)
	}

	count, err = DedupLines(ctx, cache, bufio.NewReaderSize(in, int(st.CSV.ReadBufferBytes)), nilIfEmpty(out), nilIfEmpty(dupes))
	if errors.Is(err, ErrCompressedInput) {
		err = configError(err)
	}
	for _, w := range []*bufio.Writer{out, dupes} {
		if w != nil {
			err = errors.Join(err, w.Flush())
		}
	}
	return count, err
}

// avoids a non nil interface holding a nil pointer
func nilIfEmpty(w *bufio.Writer) io.Writer {
	if w == nil {
		return nil
	}
	return w
}

func csvConfig(path string, opts *Options) (*rowio.Config, error) {
	cfg, err := rowio.NewConfig(path)
	if err != nil {
		return nil, configError(err)
	}
	if opts.Delimiter != "" {
		if cfg.Delimiter, err = rowio.DecodeDelimiter(opts.Delimiter); err != nil {
			return nil, configError(err)
		}
	}
	cfg.NoHeaders = cfg.NoHeaders || opts.NoHeaders
	return cfg, nil
}

func runRows(ctx context.Context, cache *dedupe.Cache, opts *Options) (count uint64, err error) {
	sel, err := rowio.ParseSelection(opts.Select)
	if err != nil {
		return 0, configError(err)
	}
	if opts.NoOutput {
		st.Logger.Debug().Msg("--no-output only applies without --select, ignoring")
	}
	inCfg, err := csvConfig(opts.Input, opts)
	if err != nil {
		return 0, err
	}
	outCfg, err := csvConfig(opts.Output, opts)
	if err != nil {
		return 0, err
	}

	r, in, err := inCfg.Reader()
	if err != nil {
		return 0, err
	}
	defer in.Close()

	writers := []*csv.Writer{}
	closers := []io.Closer{}
	defer func() {
		for i := range writers {
			writers[i].Flush()
			err = errors.Join(err, writers[i].Error(), closers[i].Close())
		}
	}()

	out, closer, err := outCfg.Writer()
	if err != nil {
		return 0, err
	}
	writers, closers = append(writers, out), append(closers, closer)

	var dupes *csv.Writer
	if opts.DupesOutput != "" {
		dupesCfg, err := csvConfig(opts.DupesOutput, opts)
		if err != nil {
			return 0, err
		}
		dupes, closer, err = dupesCfg.Writer()
		if err != nil {
			return 0, err
		}
		writers, closers = append(writers, dupes), append(closers, closer)
	}
	return DedupRows(ctx, cache, r, sel, inCfg.NoHeaders, out, dupes)
}
