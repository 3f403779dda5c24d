package fieldmask

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// Phase is a step of a pipeline run.
type Phase uint8

const (
	// PhaseIdle is entered once a pipeline is built and before any run.
	PhaseIdle Phase = iota

	// PhaseLoading reads and decodes the input document.
	PhaseLoading

	// PhaseRunning dispatches line batches to the workers.
	PhaseRunning

	// PhaseCollecting waits for every worker to exit.
	PhaseCollecting

	// PhaseWriting writes the masked lines in input order.
	PhaseWriting

	// PhaseDryRunSkip replaces PhaseWriting when the run is a dry run.
	PhaseDryRunSkip

	// PhaseDone means the run finished without error.
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseRunning:
		return "running"
	case PhaseCollecting:
		return "collecting"
	case PhaseWriting:
		return "writing"
	case PhaseDryRunSkip:
		return "dry-run-skip"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Pipeline masks a whole file with a bounded pool of workers.
//
// Usage:
//
//	table, err := fieldmask.LoadRules("rules.yaml", fieldmask.DefaultPrefixWidth)
//	if err != nil { return err }
//	cfg, err := fieldmask.NewConfig(fieldmask.WithSalt("s3"), fieldmask.WithWorkers(8))
//	if err != nil { return err }
//	p, err := fieldmask.NewPipeline(table, cfg)
//	if err != nil { return err }
//	summary, err := p.Run(ctx, "in.dat", "out.dat")
//
// A Pipeline may be reused for several runs. Concurrent runs share the
// progress callback and phase hook.
type Pipeline struct {
	tr        *Transformer
	cfg       Config
	logger    *slog.Logger
	progress  func(done, total int)
	phaseHook func(Phase)
	batchSize int
}

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the structured logger. Default is slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithProgress installs a callback invoked after each batch with the number of
// lines transformed so far. It is called from worker goroutines and must be
// safe for concurrent use.
func WithProgress(fn func(done, total int)) PipelineOption {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// WithPhaseHook installs a callback invoked on every phase transition.
func WithPhaseHook(fn func(Phase)) PipelineOption {
	return func(p *Pipeline) {
		p.phaseHook = fn
	}
}

// WithBatchSize sets how many consecutive lines a worker takes at a time.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		p.batchSize = n
	}
}

// NewPipeline validates cfg against table and returns a ready pipeline.
func NewPipeline(table *RuleTable, cfg Config, opts ...PipelineOption) (*Pipeline, error) {
	tr, err := NewTransformer(table, cfg)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		tr:        tr,
		cfg:       cfg,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", fmerrors.ErrInvalidConfig, p.batchSize)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.enter(PhaseIdle)
	return p, nil
}

// Run reads inputPath, masks every line and, unless the configuration is a
// dry run, writes the result to outputPath in input order.
//
// Errors reading the input, writing the output, or (in strict mode) applying
// a rule abort the run; nothing is written in that case. The returned Summary
// is valid even on error and counts the lines handled so far.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputPath string) (Summary, error) {
	start := time.Now()
	log := p.logger.With("input", inputPath)

	p.enter(PhaseLoading)
	if !p.cfg.DryRun && outputPath == "" {
		return Summary{}, fmerrors.ErrMissingOutput
	}
	doc, err := ReadDocument(inputPath, p.cfg.Encoding)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load input: %w", err)
	}
	log.Debug("Input loaded", "lines", len(doc.Lines), "crlf", doc.CRLF)

	out, summary, err := p.Process(ctx, doc.Lines)
	if err != nil {
		summary.Elapsed = time.Since(start)
		return summary, err
	}

	if p.cfg.DryRun {
		p.enter(PhaseDryRunSkip)
	} else {
		p.enter(PhaseWriting)
		res, err := WriteDocument(outputPath, doc.withLines(out), p.cfg.Encoding)
		if err != nil {
			summary.Elapsed = time.Since(start)
			return summary, fmt.Errorf("failed to write output: %w", err)
		}
		summary.Written = true
		summary.OutputBytes = res.Bytes
		summary.Checksum = res.Checksum
	}

	p.enter(PhaseDone)
	summary.Elapsed = time.Since(start)
	log.Info("Masking complete",
		"lines", summary.Lines,
		"masked", summary.Masked,
		"unmatched", summary.Unmatched,
		"short", summary.Short,
		"failed", summary.Failed,
		"dry_run", p.cfg.DryRun,
		"elapsed", summary.Elapsed)
	return summary, nil
}

func (p *Pipeline) enter(phase Phase) {
	p.logger.Debug("Pipeline phase", "phase", phase.String())
	if p.phaseHook != nil {
		p.phaseHook(phase)
	}
}
