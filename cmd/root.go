package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/extdedup"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-extdedup.git/settings"
)

var (
	selectCols    string
	noOutput      bool
	dupesOutput   string
	humanReadable bool
	memoryLimit   uint64
	noHeaders     bool
	delimiter     string
	quiet         bool
	keyEncoding   string
	tempDir       string
	metricsFile   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "azul-extdedup [flags] [<input>] [<output>]",
	Short: "Remove duplicate lines or CSV rows from arbitrarily large files",
	Long: `Removes duplicate rows from an arbitrarily large CSV or text file, keeping the first
occurrence of each and the input order.

Seen keys are held in memory up to the memory limit and then spilled to an on-disk hash
table, so memory use stays bounded however large the input is.

Without --select every line is compared as raw bytes. With --select the input is read as
CSV and rows are compared on the selected columns only.

The number of duplicates found is written to stderr.
`,
	Args:          usageArgs(cobra.MaximumNArgs(2)),
	SilenceErrors: true,
	RunE:          runDedup,
}

// usageArgs marks argument validation failures as configuration errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", extdedup.ErrConfig, err)
		}
		return nil
	}
}

// memoryLimitOption returns --memory-limit if given, else the configured default, else nil.
func memoryLimitOption(cmd *cobra.Command) (*uint64, error) {
	if cmd.Flags().Changed("memory-limit") {
		v := memoryLimit
		return &v, nil
	}
	if st.Dedup.MemoryLimit == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(st.Dedup.MemoryLimit, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: dedup.memory_limit setting '%s': %w", extdedup.ErrConfig, st.Dedup.MemoryLimit, err)
	}
	return &v, nil
}

func runDedup(cmd *cobra.Command, args []string) (err error) {
	limit, err := memoryLimitOption(cmd)
	if err != nil {
		return err
	}
	opts := extdedup.Options{
		DupesOutput: dupesOutput,
		Select:      selectCols,
		NoOutput:    noOutput,
		NoHeaders:   noHeaders,
		Delimiter:   delimiter,
		MemoryLimit: limit,
		KeyEncoding: keyEncoding,
		TempDir:     tempDir,
	}
	if len(args) > 0 {
		opts.Input = args[0]
	}
	if len(args) > 1 {
		opts.Output = args[1]
	}
	// arguments are valid, failures from here on are not usage problems
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := metricsFile
	if metrics == "" {
		metrics = st.Settings.MetricsFile
	}
	if metrics != "" {
		defer func() {
			if werr := prom.WriteTextfile(metrics); werr != nil {
				err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
			}
		}()
	}

	res, err := extdedup.Run(ctx, opts)
	if err != nil {
		return err
	}
	st.Logger.Debug().Int("memo_keys", res.Cache.MemoKeys).Uint64("flushes", res.Cache.Flushes).
		Uint64("disk_keys", res.Cache.DiskKeys).Msg("cache stats")
	if !quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), extdedup.FormatCount(res.Duplicates, humanReadable))
	}
	return nil
}

// exitCode is 2 for configuration problems and 1 for anything else.
func exitCode(err error) int {
	if errors.Is(err, extdedup.ErrConfig) {
		return 2
	}
	return 1
}

// ExecuteContext runs the command line and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return 0
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(ExecuteContext(context.Background()))
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", extdedup.ErrConfig, err)
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&selectCols, "select", "s", "", "Columns to compare, reading the input as CSV")
	flags.BoolVar(&noOutput, "no-output", false, "Do not write deduplicated output, only count duplicates (ignored with --select)")
	flags.StringVarP(&dupesOutput, "dupes-output", "D", "", "Write duplicates to this file")
	flags.BoolVarP(&humanReadable, "human-readable", "H", false, "Comma separate the duplicate count")
	flags.BoolVarP(&noHeaders, "no-headers", "n", false, "With --select, the first row is data rather than column names")
	flags.StringVarP(&delimiter, "delimiter", "d", "", `With --select, the field delimiter (default ',' or tab for .tsv/.tab, "\t" accepted)`)
	flags.BoolVarP(&quiet, "quiet", "Q", false, "Do not print the duplicate count to stderr")
	flags.StringVar(&keyEncoding, "key-encoding", "", "How keys are stored on disk: digest or chunk (default from settings)")
	flags.StringVar(&tempDir, "temp-dir", "", "Directory for the on-disk hash table (default from settings or the os)")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this file when finished")

	rootCmd.PersistentFlags().Uint64Var(&memoryLimit, "memory-limit", 0,
		"Memory for seen keys before spilling to disk: 1-50 is a percentage of total memory, larger is megabytes (default 100MB)")
}
