// Package fieldmask deterministically masks sensitive fields in fixed-width
// and delimited text records.
//
// Each line is classified by a short prefix (two characters by default). A
// rule table maps every prefix to an ordered list of field rules; each rule
// names a range of the line, a character filter and a maximum output length.
// A field is masked by hashing its raw value with an appended salt, rendering
// the digest as uppercase hex, keeping only the filtered characters,
// truncating, and right-padding with spaces back to the field width. Line
// lengths never change, so downstream fixed-width consumers keep working.
//
// # Basic Usage
//
//	table, err := fieldmask.LoadRules("rules.yaml", fieldmask.DefaultPrefixWidth)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := fieldmask.NewConfig(
//	    fieldmask.WithSalt("uat-2024"),
//	    fieldmask.WithAlgorithm(fieldmask.AlgoSHA256),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := fieldmask.NewPipeline(table, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := p.Run(ctx, "customers.dat", "customers.masked.dat")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(summary)
//
// A rules document is YAML or JSON:
//
//	"01":
//	  - {Start: 2, Length: 7, Truncate: 5, Filter: alpha}
//	  - {Start: 9, Length: 10, Truncate: 10, Filter: numeric}
//
// # Errors
//
// Problems with the rules, configuration or input abort a run before any line
// is transformed. A rule whose range does not fit a particular line fails only
// that line: it is written unchanged and counted in Summary.Failed. WithStrict
// turns such lines into a fatal error instead. Lines whose prefix has no rules
// are passed through and are not errors.
//
// # Package Structure
//
//   - Masking primitives: filter.go (ApplyFilter), hasher.go (MaskField), algorithm.go (HashAlgorithm)
//   - Rules: rules.go (FieldRule, RuleTable, ParseRules, LoadRules)
//   - Per-line engine: transform.go (Transformer)
//   - Run orchestration: pipeline.go (Pipeline.Run), pipeline_parallel.go (worker pool), summary.go
//   - Configuration: options.go (Config, Option, With* functions), encoding.go
//   - File I/O: document.go (mmap reader), output_writer.go (mmap writer)
//   - Platform: fadvise_*.go, fallocate_*.go, prefault_*.go
package fieldmask
