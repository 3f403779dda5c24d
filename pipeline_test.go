package fieldmask

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

var pipelineRules = map[string][]FieldRule{
	"01": {{Start: 2, Length: 7, Truncate: 5, Filter: FilterAlpha}},
	"02": {{Start: 2, Length: 5, Truncate: 5, Filter: FilterNumeric}},
}

func newTestPipeline(t *testing.T, rules map[string][]FieldRule, cfgOpts []Option, opts ...PipelineOption) *Pipeline {
	t.Helper()
	cfg, err := NewConfig(append([]Option{WithSalt("x")}, cfgOpts...)...)
	require.NoError(t, err)
	table, err := NewRuleTable(rules, cfg.PrefixWidth)
	require.NoError(t, err)
	opts = append([]PipelineOption{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	p, err := NewPipeline(table, cfg, opts...)
	require.NoError(t, err)
	return p
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.dat")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPipelineRun(t *testing.T) {
	in := writeInput(t, "01JohnDoe\n99JohnDoe\n0\n0212345\n")
	out := filepath.Join(t.TempDir(), "out.dat")

	p := newTestPipeline(t, pipelineRules, nil)
	summary, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "01AEBCC  \n99JohnDoe\n0\n0214354\n", string(got))

	assert.Equal(t, 4, summary.Lines)
	assert.Equal(t, 2, summary.Masked)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 1, summary.Short)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.FieldsMasked)
	assert.True(t, summary.Written)
	assert.Equal(t, int64(len(got)), summary.OutputBytes)
	assert.Equal(t, xxhash.Sum64(got), summary.Checksum)
}

func TestPipelinePreservesOrder(t *testing.T) {
	const n = 10_000
	var b strings.Builder
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("0%d%07d", i%3, i)
		b.WriteString(lines[i])
		b.WriteByte('\n')
	}
	in := writeInput(t, b.String())

	for _, workers := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.dat")
			p := newTestPipeline(t, pipelineRules, []Option{WithWorkers(workers)}, WithBatchSize(7))
			summary, err := p.Run(context.Background(), in, out)
			require.NoError(t, err)
			assert.Equal(t, n, summary.Lines)

			tr := p.tr
			var want strings.Builder
			for _, line := range lines {
				masked, _, err := tr.Transform(line)
				require.NoError(t, err)
				want.WriteString(masked)
				want.WriteByte('\n')
			}
			got, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, want.String(), string(got))
		})
	}
}

func TestPipelineDryRun(t *testing.T) {
	in := writeInput(t, "01JohnDoe\n99JohnDoe\n0\n0212345\n01Jo\n")
	out := filepath.Join(t.TempDir(), "out.dat")

	var phases []Phase
	p := newTestPipeline(t, pipelineRules, []Option{WithDryRun(true)},
		WithPhaseHook(func(ph Phase) { phases = append(phases, ph) }))

	summary, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Lines)
	assert.Equal(t, 2, summary.Masked)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 1, summary.Short)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Written)
	assert.Zero(t, summary.Checksum)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create output")
	assert.Equal(t, []Phase{PhaseIdle, PhaseLoading, PhaseRunning, PhaseCollecting, PhaseDryRunSkip, PhaseDone}, phases)

	// No output path is needed either.
	_, err = p.Run(context.Background(), in, "")
	require.NoError(t, err)
}

func TestPipelinePhases(t *testing.T) {
	in := writeInput(t, "01JohnDoe\n")
	out := filepath.Join(t.TempDir(), "out.dat")

	var phases []Phase
	p := newTestPipeline(t, pipelineRules, nil, WithPhaseHook(func(ph Phase) { phases = append(phases, ph) }))
	_, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseIdle, PhaseLoading, PhaseRunning, PhaseCollecting, PhaseWriting, PhaseDone}, phases)
}

func TestPipelineFailSoft(t *testing.T) {
	rules := map[string][]FieldRule{"01": {{Start: 2, Length: 7, Truncate: 5, Filter: FilterAlpha}}}
	in := writeInput(t, "01JohnDoe\n01Jo\n01JohnDoe\n01\n")
	out := filepath.Join(t.TempDir(), "out.dat")

	p := newTestPipeline(t, rules, []Option{WithWorkers(2)}, WithBatchSize(1))
	summary, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "01AEBCC  \n01Jo\n01AEBCC  \n01\n", string(got))
	assert.Equal(t, 2, summary.Masked)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, []int{2, 4}, summary.FailedLines)
	assert.Contains(t, summary.String(), "failed lines: 2, 4\n")
}

func TestPipelineFailedLinesCapped(t *testing.T) {
	rules := map[string][]FieldRule{"01": {{Start: 2, Length: 7}}}
	in := writeInput(t, strings.Repeat("01short\n01\n", 150))

	p := newTestPipeline(t, rules, []Option{WithDryRun(true), WithWorkers(4)}, WithBatchSize(10))
	summary, err := p.Run(context.Background(), in, "")
	require.NoError(t, err)

	assert.Equal(t, 300, summary.Lines)
	assert.Equal(t, 300, summary.Failed)
	require.Len(t, summary.FailedLines, maxRecordedFailures)
	for i, n := range summary.FailedLines {
		assert.Equal(t, i+1, n)
	}
	assert.Contains(t, summary.String(), ", ...\n")
}

func TestPipelineStrict(t *testing.T) {
	rules := map[string][]FieldRule{"01": {{Start: 2, Length: 7, Truncate: 5, Filter: FilterAlpha}}}
	in := writeInput(t, "01JohnDoe\n01Jo\n01JohnDoe\n")
	out := filepath.Join(t.TempDir(), "out.dat")

	p := newTestPipeline(t, rules, []Option{WithStrict(true)})
	_, err := p.Run(context.Background(), in, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fmerrors.ErrFieldOutOfRange))
	assert.Contains(t, err.Error(), "line 2")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "strict failure must not write output")
}

func TestPipelineStartupErrors(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, pipelineRules, nil)

	_, err := p.Run(context.Background(), filepath.Join(dir, "missing.dat"), filepath.Join(dir, "out.dat"))
	assert.True(t, errors.Is(err, fmerrors.ErrInputNotFound))

	in := writeInput(t, "01JohnDoe\n")
	_, err = p.Run(context.Background(), in, "")
	assert.True(t, errors.Is(err, fmerrors.ErrMissingOutput))

	_, err = p.Run(context.Background(), in, filepath.Join(dir, "no", "such", "dir", "out.dat"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write output")

	cfg, err := NewConfig()
	require.NoError(t, err)
	table, err := NewRuleTable(pipelineRules, 2)
	require.NoError(t, err)
	_, err = NewPipeline(table, cfg, WithBatchSize(0))
	assert.True(t, errors.Is(err, fmerrors.ErrInvalidConfig))
}

func TestPipelineCancelled(t *testing.T) {
	in := writeInput(t, strings.Repeat("01JohnDoe\n", 5000))
	out := filepath.Join(t.TempDir(), "out.dat")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, pipelineRules, []Option{WithWorkers(4)}, WithBatchSize(16))
	_, err := p.Run(ctx, in, out)
	assert.True(t, errors.Is(err, context.Canceled))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineEmptyInput(t *testing.T) {
	in := writeInput(t, "")
	out := filepath.Join(t.TempDir(), "out.dat")

	p := newTestPipeline(t, pipelineRules, nil)
	summary, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, summary.Lines)
	assert.True(t, summary.Written)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestPipelineCRLFAndLatin1(t *testing.T) {
	in := writeInput(t, "01\xc4\xd6\xdc|\r\n99M\xfcller\r\n")
	out := filepath.Join(t.TempDir(), "out.dat")

	rules := map[string][]FieldRule{"01": {{Start: 2, Length: 3, Truncate: 3, Filter: FilterAlpha}}}
	p := newTestPipeline(t, rules, []Option{WithEncoding(EncodingLatin1)})
	_, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "01EDD|\r\n99M\xfcller\r\n", string(got))
}

func TestPipelineProgress(t *testing.T) {
	in := writeInput(t, strings.Repeat("01JohnDoe\n02A1234\n", 500))

	var (
		mu    sync.Mutex
		calls int
		last  int
		total int
	)
	p := newTestPipeline(t, pipelineRules, []Option{WithDryRun(true)},
		WithBatchSize(50),
		WithProgress(func(done, tot int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			last = max(last, done)
			total = tot
		}))

	_, err := p.Run(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, 20, calls)
	assert.Equal(t, 1000, last)
	assert.Equal(t, 1000, total)
}

func TestPipelineLogsSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	in := writeInput(t, "01JohnDoe\n")
	p := newTestPipeline(t, pipelineRules, []Option{WithDryRun(true)}, WithLogger(logger))
	_, err := p.Run(context.Background(), in, "")
	require.NoError(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "Masking complete")
	assert.Contains(t, logs, "masked=1")
	assert.Contains(t, logs, "phase=dry-run-skip")
}

func TestProcess(t *testing.T) {
	p := newTestPipeline(t, pipelineRules, nil)
	out, summary, err := p.Process(context.Background(), []string{"01JohnDoe", "0", "03abc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"01AEBCC  ", "0", "03abc"}, out)
	assert.Equal(t, 3, summary.Lines)
	assert.Equal(t, 1, summary.Masked)

	out, summary, err = p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, summary.Lines)
}

func TestSummaryString(t *testing.T) {
	s := Summary{Lines: 3, Masked: 2, FieldsMasked: 4, Unmatched: 1, Written: true, OutputBytes: 30, Checksum: 0xabc}
	out := s.String()
	assert.Contains(t, out, "lines processed: 3\n")
	assert.Contains(t, out, "masked:    2 (4 fields)")
	assert.Contains(t, out, "output: 30 bytes, xxh64 0000000000000abc\n")
	assert.NotContains(t, out, "failed lines")

	assert.Contains(t, Summary{}.String(), "output: skipped (dry run)")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "dry-run-skip", PhaseDryRunSkip.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
