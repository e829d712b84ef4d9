package settings

import (
	"io"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is shared by all packages, configured from Settings by ResetSettings.
var Logger zerolog.Logger

// start a new rotating log file
func makeFileLogger(filename string) io.Writer {
	// lumberjack lets us rotate log files automatically
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28,    //days
		Compress:   false, // disabled by default
	}
}

// stderr is reserved for the duplicate count, so the console only sees warnings and up
// unless the level is lowered explicitly.
func setupLoggers(settings *DESettings) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level '%s': %v", settings.LogLevel, err)
	}
	console := zerolog.ConsoleWriter{
		Out:     colorable.NewColorable(os.Stderr),
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	}
	var out io.Writer = console
	if settings.LogPath != "" {
		out = zerolog.MultiLevelWriter(console, makeFileLogger(settings.LogPath))
	}
	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
