// Bench is a benchmarking tool for measuring fieldmask throughput and memory
// usage on synthetic fixed-width data.
//
// Usage:
//
//	go run ./cmd/bench -lines 5000000 -workers 8 -algo sha256
//
// Flags:
//
//	-lines     Number of input lines (default: 2,000,000)
//	-width     Characters per line (default: 120)
//	-workers   Number of parallel workers (default: 8)
//	-algo      Hash algorithm (default: md5)
//	-write     Write the output file as well as transforming (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tamirms/fieldmask"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// benchRules masks a name, an account number and an e-mail-ish block on
// record type 01, a single field on 02, and nothing on 03.
var benchRules = map[string][]fieldmask.FieldRule{
	"01": {
		{Start: 2, Length: 20, Truncate: 12, Filter: fieldmask.FilterAlpha},
		{Start: 22, Length: 16, Truncate: 16, Filter: fieldmask.FilterNumeric},
		{Start: 60, Length: 40, Truncate: 40, Filter: fieldmask.FilterNone},
	},
	"02": {
		{Start: 10, Length: 30, Truncate: 30, Filter: fieldmask.FilterAlphanumeric},
	},
}

func main() {
	linesFlag := flag.Int("lines", 2_000_000, "number of lines")
	widthFlag := flag.Int("width", 120, "characters per line")
	workersFlag := flag.Int("workers", fieldmask.DefaultWorkers, "number of parallel workers")
	algoFlag := flag.String("algo", "md5", "hash algorithm")
	writeFlag := flag.Bool("write", true, "write the output file")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (run phase only)")
	flag.Parse()

	if *widthFlag < 100 {
		fmt.Printf("width must be at least 100 to fit the benchmark rules\n")
		return
	}
	algo, err := fieldmask.ParseHashAlgorithm(*algoFlag)
	if err != nil {
		fmt.Printf("%v\n", err)
		return
	}

	tmpDir, err := os.MkdirTemp("", "fieldmask-bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	inPath := filepath.Join(tmpDir, "in.dat")
	outPath := filepath.Join(tmpDir, "out.dat")

	fmt.Println("Generating input...")
	if err := generateInput(inPath, *linesFlag, *widthFlag); err != nil {
		fmt.Printf("Failed to generate input: %v\n", err)
		return
	}

	table, err := fieldmask.NewRuleTable(benchRules, fieldmask.DefaultPrefixWidth)
	if err != nil {
		fmt.Printf("NewRuleTable failed: %v\n", err)
		return
	}
	cfg, err := fieldmask.NewConfig(
		fieldmask.WithSalt("bench"),
		fieldmask.WithAlgorithm(algo),
		fieldmask.WithWorkers(*workersFlag),
		fieldmask.WithDryRun(!*writeFlag),
	)
	if err != nil {
		fmt.Printf("NewConfig failed: %v\n", err)
		return
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := fieldmask.NewPipeline(table, cfg, fieldmask.WithLogger(logger))
	if err != nil {
		fmt.Printf("NewPipeline failed: %v\n", err)
		return
	}

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak heap. runtime/metrics avoids the stop-the-world
	// pauses of ReadMemStats.
	var peakAlloc atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Masking...")
	start := time.Now()
	summary, err := p.Run(context.Background(), inPath, outPath)
	elapsed := time.Since(start)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	close(done)

	if err != nil {
		fmt.Printf("Run failed: %v\n", err)
		return
	}

	peakHeap := peakAlloc.Load() - baseline.Alloc
	peakRSS := getMaxRSS() - baselineRSS

	fmt.Printf("\n")
	fmt.Printf("Algorithm:        %s\n", algo)
	fmt.Printf("Workers:          %d\n", *workersFlag)
	fmt.Printf("Lines:            %d (masked %d, unmatched %d)\n", summary.Lines, summary.Masked, summary.Unmatched)
	fmt.Printf("Fields masked:    %d\n", summary.FieldsMasked)
	fmt.Printf("Elapsed:          %.2f sec\n", elapsed.Seconds())
	fmt.Printf("Throughput:       %.2f M lines/sec\n", float64(summary.Lines)/elapsed.Seconds()/1_000_000)
	fmt.Printf("Peak heap memory: %.1f MB\n", float64(peakHeap)/1_000_000)
	fmt.Printf("Peak RSS memory:  %.1f MB\n", float64(peakRSS)/1_000_000)
}

// generateInput writes n random lines of width characters, spread evenly
// over record types 01, 02 and 03.
func generateInput(path string, n, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 "
	prefixes := []string{"01", "02", "03"}
	rng := mrand.New(mrand.NewPCG(1, 2))

	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(prefixes[i%len(prefixes)])
		for j := 2; j < width; j++ {
			b.WriteByte(alphabet[rng.IntN(len(alphabet))])
		}
		b.WriteByte('\n')
		if b.Len() >= 1<<20 {
			if _, err := f.WriteString(b.String()); err != nil {
				_ = f.Close()
				return err
			}
			b.Reset()
		}
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
