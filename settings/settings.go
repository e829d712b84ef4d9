/*
Package settings controls reading configuration from environment and assigning defaults
*/
package settings

import (
	"errors"
	"log" // cannot use zerolog as log options not initialised
	"os"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// prefix for all environment variables, nesting is '__' or '.'
const envPrefix = "EXTDEDUP"

// environment variable naming an optional yaml settings file
const ConfigFileEnv = envPrefix + "_CONFIG"

var Settings *DESettings
var Dedup *DEDedup
var CSV *DECSV

// ByteSize is a byte count that can be written as a human readable size e.g. "64Ki" or "100MB".
type ByteSize uint64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	n, err := humanize.ParseBytes(value.Value)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// ByteSizeHookFunc converts strings to ByteSize while decoding.
func ByteSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(ByteSize(0)) || f.Kind() != reflect.String {
			return data, nil
		}
		n, err := humanize.ParseBytes(reflect.ValueOf(data).String())
		if err != nil {
			return nil, err
		}
		return ByteSize(n), nil
	}
}

type DEDedup struct {
	// default for --memory-limit, empty means not set
	MemoryLimit string `koanf:"memory_limit" yaml:"memory_limit"`
	// how keys are stored in the spill table: digest or chunk
	KeyEncoding string `koanf:"key_encoding" yaml:"key_encoding"`
	// number of keys the spill table is sized for when first created
	DiskInitialCapacity int `koanf:"disk_initial_capacity" yaml:"disk_initial_capacity"`
	// table grows once this percentage of slots is used
	DiskMaxLoadPercent int `koanf:"disk_max_load_percent" yaml:"disk_max_load_percent"`
}

type DECSV struct {
	// field delimiter used unless the file extension or --delimiter says otherwise
	Delimiter string `koanf:"delimiter" yaml:"delimiter"`
	// treat the first row as data
	NoHeaders bool `koanf:"no_headers" yaml:"no_headers"`
	// lines starting with this character are skipped, empty to disable
	Comment string `koanf:"comment" yaml:"comment"`
	// buffer sizes for csv reading and writing
	ReadBufferBytes  ByteSize `koanf:"read_buffer_bytes" yaml:"read_buffer_bytes"`
	WriteBufferBytes ByteSize `koanf:"write_buffer_bytes" yaml:"write_buffer_bytes"`
}

type DESettings struct {
	// trace, debug, info, warn, error or disabled
	LogLevel string `koanf:"log_level" yaml:"log_level"`
	// rotating log file, empty to only log to stderr
	LogPath string `koanf:"log_path" yaml:"log_path"`
	// directory the spill table is created in, empty for the os default
	TempDir string `koanf:"temp_dir" yaml:"temp_dir"`
	// prometheus textfile written when a run finishes, empty to disable
	MetricsFile string  `koanf:"metrics_file" yaml:"metrics_file"`
	Dedup       DEDedup `koanf:"dedup" yaml:"dedup"`
	CSV         DECSV   `koanf:"csv" yaml:"csv"`
}

var defaults DESettings = DESettings{
	LogLevel:    "warn",
	LogPath:     "",
	TempDir:     "",
	MetricsFile: "",
	Dedup: DEDedup{
		MemoryLimit:         "",
		KeyEncoding:         "digest",
		DiskInitialCapacity: 1_000_000,
		DiskMaxLoadPercent:  95,
	},
	CSV: DECSV{
		Delimiter:        ",",
		NoHeaders:        false,
		Comment:          "",
		ReadBufferBytes:  16 * 1024,
		WriteBufferBytes: 64 * 1024,
	},
}

// readConfigFile loads the yaml file named by EXTDEDUP_CONFIG over the defaults.
func readConfigFile(base DESettings) (DESettings, error) {
	path := os.Getenv(ConfigFileEnv)
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	var fromFile DESettings
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return base, err
	}
	// values not in the file keep their defaults
	if err := mergo.Merge(&fromFile, base); err != nil {
		return base, err
	}
	return fromFile, nil
}

// envKey maps EXTDEDUP__CSV__DELIMITER and EXTDEDUP.CSV.DELIMITER to csv.delimiter
func envKey(s string) string {
	key := strings.TrimPrefix(s, envPrefix)
	if key == s || !(strings.HasPrefix(key, "__") || strings.HasPrefix(key, ".")) {
		return ""
	}
	key = strings.TrimLeft(key, "_.")
	key = strings.ReplaceAll(key, "__", ".")
	return strings.ToLower(key)
}

func parseSettings(base DESettings) (*DESettings, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(base, "koanf"), nil); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	out := DESettings{}
	err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       ByteSizeHookFunc(),
			Result:           &out,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Dedup.DiskMaxLoadPercent <= 0 || out.Dedup.DiskMaxLoadPercent > 99 {
		return nil, errors.New("dedup.disk_max_load_percent must be between 1 and 99")
	}
	return &out, nil
}

func ResetSettings() {
	base, err := readConfigFile(defaults)
	if err != nil {
		log.Fatalf("could not read settings file from %s: %v", ConfigFileEnv, err)
	}
	parsed, err := parseSettings(base)
	if err != nil {
		log.Fatalf("invalid settings: %v", err)
	}
	Settings = parsed
	setupLoggers(Settings)
	Dedup = &Settings.Dedup
	CSV = &Settings.CSV
}

func init() {
	ResetSettings()
}
