package fieldmask

import (
	"fmt"
	"strings"
	"time"
)

// maxRecordedFailures caps Summary.FailedLines.
const maxRecordedFailures = 100

// Summary is the end-of-run report.
type Summary struct {
	Lines        int // Lines processed
	Masked       int // Lines with every rule applied
	Unmatched    int // Lines whose prefix has no rules
	Short        int // Lines shorter than the prefix width
	Failed       int // Lines passed through because a rule did not fit
	FieldsMasked int

	// FailedLines holds the 1-based numbers of the first failed lines, ascending.
	FailedLines []int

	Written     bool // False in dry-run mode
	OutputBytes int64
	Checksum    uint64 // xxHash64 of the written output
	Elapsed     time.Duration
}

// String renders the summary as a short human-readable report.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "lines processed: %d\n", s.Lines)
	fmt.Fprintf(&b, "  masked:    %d (%d fields)\n", s.Masked, s.FieldsMasked)
	fmt.Fprintf(&b, "  unmatched: %d\n", s.Unmatched)
	fmt.Fprintf(&b, "  short:     %d\n", s.Short)
	fmt.Fprintf(&b, "  failed:    %d\n", s.Failed)
	if len(s.FailedLines) > 0 {
		nums := make([]string, len(s.FailedLines))
		for i, n := range s.FailedLines {
			nums[i] = fmt.Sprint(n)
		}
		more := ""
		if s.Failed > len(s.FailedLines) {
			more = ", ..."
		}
		fmt.Fprintf(&b, "  failed lines: %s%s\n", strings.Join(nums, ", "), more)
	}
	if s.Written {
		fmt.Fprintf(&b, "output: %d bytes, xxh64 %016x\n", s.OutputBytes, s.Checksum)
	} else {
		b.WriteString("output: skipped (dry run)\n")
	}
	fmt.Fprintf(&b, "elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	return b.String()
}

// add merges one worker's counters into s.
func (s *Summary) add(w *workerStats) {
	s.Masked += w.masked
	s.Unmatched += w.unmatched
	s.Short += w.short
	s.Failed += w.failed
	s.FieldsMasked += w.fields
	s.FailedLines = append(s.FailedLines, w.failedLines...)
}
