package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tamirms/fieldmask"
)

const envPrefix = "FIELDMASK"

// newRootCmd builds the fieldmask command. stdout receives the summary,
// stderr receives logs and progress.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "fieldmask",
		Short: "Deterministically mask fields in fixed-width or delimited text files",
		Long: `fieldmask replaces configured fields of each input line with a salted hash,
filtered to a character class, truncated and padded back to the field width.
Lines are selected by their leading prefix; lines without rules pass through.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadSettings(v, cmd.Flags()); err != nil {
				return err
			}
			return run(cmd, v, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringP("input", "i", "", "input file")
	f.StringP("output", "o", "", "output file (not required with --dry-run)")
	f.StringP("rules", "r", "", "rules file (YAML or JSON)")
	f.String("salt", "", "string appended to every field before hashing")
	f.StringP("algorithm", "a", "md5", "hash algorithm: md5, sha1, sha256, sha512, xxh64, xxh3, murmur3")
	f.Int("prefix-width", fieldmask.DefaultPrefixWidth, "number of leading characters that select the rules")
	f.StringP("encoding", "e", "utf-8", "text encoding of input and output: utf-8 or latin-1")
	f.Bool("csv", false, "treat lines as delimited records; rule Start is a column index")
	f.String("delimiter", ",", `column delimiter in --csv mode ("tab" for a tab)`)
	f.IntP("workers", "w", fieldmask.DefaultWorkers, "number of parallel workers")
	f.Bool("strict", false, "abort on the first line a rule does not fit instead of passing it through")
	f.BoolP("dry-run", "n", false, "transform everything but do not write output")
	f.String("env-file", "", "load environment variables from this .env file")
	f.String("config", "", "read settings from this config file")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.Bool("no-progress", false, "disable progress reporting")

	return cmd
}

// loadSettings wires flags, environment and optional files into v.
func loadSettings(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if envFile := v.GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}
	return nil
}

func run(cmd *cobra.Command, v *viper.Viper, stdout, stderr io.Writer) error {
	logger, err := newLogger(stderr, v.GetString("log-level"))
	if err != nil {
		return err
	}

	input, output, rulesPath := v.GetString("input"), v.GetString("output"), v.GetString("rules")
	if input == "" {
		return errors.New("--input is required")
	}
	if rulesPath == "" {
		return errors.New("--rules is required")
	}

	opts, err := configOptions(v)
	if err != nil {
		return err
	}
	cfg, err := fieldmask.NewConfig(opts...)
	if err != nil {
		return err
	}

	table, err := fieldmask.LoadRules(rulesPath, cfg.PrefixWidth)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	logger.Info("Rules loaded", "path", rulesPath, "prefixes", table.Len())

	pipelineOpts := []fieldmask.PipelineOption{fieldmask.WithLogger(logger)}
	if !v.GetBool("no-progress") && isTerminal(stderr) {
		pipelineOpts = append(pipelineOpts, fieldmask.WithProgress(newProgressPrinter(stderr)))
	}
	p, err := fieldmask.NewPipeline(table, cfg, pipelineOpts...)
	if err != nil {
		return err
	}

	summary, err := p.Run(cmd.Context(), input, output)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(stdout, summary.String())
	return err
}

// configOptions translates resolved settings into fieldmask options.
func configOptions(v *viper.Viper) ([]fieldmask.Option, error) {
	algo, err := fieldmask.ParseHashAlgorithm(v.GetString("algorithm"))
	if err != nil {
		return nil, err
	}
	enc, err := fieldmask.ParseEncoding(v.GetString("encoding"))
	if err != nil {
		return nil, err
	}
	mode := fieldmask.ModeFixedWidth
	if v.GetBool("csv") {
		mode = fieldmask.ModeDelimited
	}
	delim, err := parseDelimiter(v.GetString("delimiter"))
	if err != nil {
		return nil, err
	}
	return []fieldmask.Option{
		fieldmask.WithSalt(v.GetString("salt")),
		fieldmask.WithAlgorithm(algo),
		fieldmask.WithPrefixWidth(v.GetInt("prefix-width")),
		fieldmask.WithEncoding(enc),
		fieldmask.WithMode(mode),
		fieldmask.WithDelimiter(delim),
		fieldmask.WithWorkers(v.GetInt("workers")),
		fieldmask.WithStrict(v.GetBool("strict")),
		fieldmask.WithDryRun(v.GetBool("dry-run")),
	}, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newProgressPrinter returns a progress callback that redraws one status
// line whenever another whole percent of the input is done.
func newProgressPrinter(w io.Writer) func(done, total int) {
	var (
		mu   sync.Mutex
		last = -1
	)
	return func(done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		mu.Lock()
		defer mu.Unlock()
		if pct <= last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rmasking: %3d%% (%d/%d lines)", pct, done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}
