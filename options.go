package fieldmask

import (
	"fmt"
	"strings"
	"unicode/utf8"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

const (
	// DefaultPrefixWidth is the number of leading characters used to select rules.
	DefaultPrefixWidth = 2

	// DefaultWorkers is the default size of the transformation pool.
	DefaultWorkers = 8

	// maxWorkers bounds the pool; more goroutines than this only add scheduling overhead.
	maxWorkers = 1024
)

// InputMode selects how a line is split into fields.
type InputMode uint8

const (
	// ModeFixedWidth addresses fields by character offset and length.
	ModeFixedWidth InputMode = iota

	// ModeDelimited addresses fields by column index in a delimited record.
	ModeDelimited
)

// String returns the mode name.
func (m InputMode) String() string {
	switch m {
	case ModeFixedWidth:
		return "fixed"
	case ModeDelimited:
		return "delimited"
	default:
		return "unknown"
	}
}

// ParseInputMode maps "fixed" or "delimited" (also "csv") to an InputMode.
func ParseInputMode(s string) (InputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed", "fixed-width":
		return ModeFixedWidth, nil
	case "delimited", "csv":
		return ModeDelimited, nil
	default:
		return ModeFixedWidth, fmt.Errorf("%w: %q", fmerrors.ErrUnknownMode, s)
	}
}

// Config holds the immutable per-run settings shared by every worker.
// Build it with NewConfig; it is passed by value and never modified afterwards.
type Config struct {
	Salt        string
	Algorithm   HashAlgorithm
	PrefixWidth int
	Mode        InputMode
	Delimiter   rune
	Encoding    Encoding
	DryRun      bool
	Workers     int

	// Strict aborts the run on the first line whose field range is out of
	// bounds instead of passing that line through unchanged.
	Strict bool
}

// Option is a functional option for configuring a run.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Algorithm:   AlgoMD5,
		PrefixWidth: DefaultPrefixWidth,
		Mode:        ModeFixedWidth,
		Delimiter:   ',',
		Encoding:    EncodingUTF8,
		Workers:     DefaultWorkers,
	}
}

// NewConfig applies opts over the defaults and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !c.Algorithm.valid() {
		return fmt.Errorf("%w: algorithm %d", fmerrors.ErrUnknownAlgorithm, c.Algorithm)
	}
	if c.PrefixWidth < 1 {
		return fmt.Errorf("%w: prefix width must be positive, got %d", fmerrors.ErrInvalidConfig, c.PrefixWidth)
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("%w: workers must be in [1, %d], got %d", fmerrors.ErrInvalidConfig, maxWorkers, c.Workers)
	}
	if c.Mode != ModeFixedWidth && c.Mode != ModeDelimited {
		return fmt.Errorf("%w: mode %d", fmerrors.ErrUnknownMode, c.Mode)
	}
	if !c.Encoding.valid() {
		return fmt.Errorf("%w: encoding %d", fmerrors.ErrUnknownEncoding, c.Encoding)
	}
	if c.Mode == ModeDelimited {
		// Same constraints encoding/csv places on Reader.Comma.
		if c.Delimiter == 0 || c.Delimiter == '"' || c.Delimiter == '\r' || c.Delimiter == '\n' ||
			c.Delimiter == utf8.RuneError || !utf8.ValidRune(c.Delimiter) {
			return fmt.Errorf("%w: invalid delimiter %q", fmerrors.ErrInvalidConfig, c.Delimiter)
		}
	}
	return nil
}

// WithSalt sets the string appended to every raw value before hashing.
func WithSalt(salt string) Option {
	return func(c *Config) {
		c.Salt = salt
	}
}

// WithAlgorithm sets the digest algorithm. Default is AlgoMD5.
func WithAlgorithm(algo HashAlgorithm) Option {
	return func(c *Config) {
		c.Algorithm = algo
	}
}

// WithPrefixWidth sets how many leading characters select a rule list.
func WithPrefixWidth(n int) Option {
	return func(c *Config) {
		c.PrefixWidth = n
	}
}

// WithMode sets fixed-width or delimited input.
func WithMode(m InputMode) Option {
	return func(c *Config) {
		c.Mode = m
	}
}

// WithDelimiter sets the column separator used in delimited mode.
func WithDelimiter(r rune) Option {
	return func(c *Config) {
		c.Delimiter = r
	}
}

// WithEncoding sets the text encoding of both input and output.
func WithEncoding(e Encoding) Option {
	return func(c *Config) {
		c.Encoding = e
	}
}

// WithDryRun performs every transformation but suppresses output.
func WithDryRun(dryRun bool) Option {
	return func(c *Config) {
		c.DryRun = dryRun
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithStrict makes an out-of-range field abort the whole run.
func WithStrict(strict bool) Option {
	return func(c *Config) {
		c.Strict = strict
	}
}
