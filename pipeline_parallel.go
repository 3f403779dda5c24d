package fieldmask

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	// defaultBatchSize is how many consecutive lines make up one unit of work.
	defaultBatchSize = 256

	// workChanBufferMultiplier is the multiplier for work channel buffer size
	workChanBufferMultiplier = 2
)

// lineBatch is a half-open range [start, end) of line indexes.
type lineBatch struct {
	start int
	end   int
}

// workerStats holds one worker's counters. Each worker owns exactly one
// slot, so no synchronization is needed until the barrier.
type workerStats struct {
	masked      int
	unmatched   int
	short       int
	failed      int
	fields      int
	failedLines []int
}

// Process masks lines in memory and returns the results in input order.
// Nothing is written; Run uses Process for its running and collecting phases.
//
// Workers write each result into the slot of its original index, so the
// output order never depends on which worker finishes first. Process returns
// only after every worker has exited.
func (p *Pipeline) Process(ctx context.Context, lines []string) ([]string, Summary, error) {
	p.enter(PhaseRunning)

	workers := min(p.cfg.Workers, max(1, (len(lines)+p.batchSize-1)/p.batchSize))
	results := make([]string, len(lines))
	stats := make([]workerStats, workers)
	var done atomic.Int64

	workChan := make(chan lineBatch, workers*workChanBufferMultiplier)
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			return p.runWorker(gctx, workChan, lines, results, &stats[w], &done)
		})
	}

dispatch:
	for start := 0; start < len(lines); start += p.batchSize {
		b := lineBatch{start: start, end: min(start+p.batchSize, len(lines))}
		select {
		case workChan <- b:
		case <-gctx.Done():
			break dispatch
		}
	}
	close(workChan)

	p.enter(PhaseCollecting)
	err := g.Wait()
	if err == nil {
		// Workers may drain the channel before noticing a cancelled parent.
		err = ctx.Err()
	}

	summary := Summary{Lines: int(done.Load())}
	for i := range stats {
		summary.add(&stats[i])
	}
	slices.Sort(summary.FailedLines)
	if len(summary.FailedLines) > maxRecordedFailures {
		summary.FailedLines = summary.FailedLines[:maxRecordedFailures]
	}
	if err != nil {
		return nil, summary, err
	}
	return results, summary, nil
}

// runWorker transforms batches until the work channel is closed.
// In strict mode the first per-line error is returned, which cancels the
// group; otherwise failing lines are passed through and counted.
func (p *Pipeline) runWorker(ctx context.Context, work <-chan lineBatch, lines, results []string, st *workerStats, done *atomic.Int64) error {
	for b := range work {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for i := b.start; i < b.end; i++ {
			out, outcome, fields, err := p.tr.transform(lines[i])
			if err != nil {
				if p.cfg.Strict {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
				p.logger.Debug("Line passed through unmasked", "line", i+1, "error", err)
			}
			results[i] = out

			switch outcome {
			case OutcomeMasked:
				st.masked++
				st.fields += fields
			case OutcomeUnmatched:
				st.unmatched++
			case OutcomeShort:
				st.short++
			case OutcomeFailed:
				st.failed++
				// Batches reach a worker in ascending order, so these are the
				// worker's lowest failing line numbers.
				if len(st.failedLines) < maxRecordedFailures {
					st.failedLines = append(st.failedLines, i+1)
				}
			}
		}

		n := done.Add(int64(b.end - b.start))
		if p.progress != nil {
			p.progress(int(n), len(lines))
		}
	}
	return nil
}
