// Command sshed-bench measures edit sessions between an in-process agent and
// concurrent guests, with scripted editors instead of a user.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	"github.com/pior/sshed"
)

type Scenario string

const (
	Unchanged Scenario = "unchanged"
	SmallEdit Scenario = "small-edit"
	Rewrite   Scenario = "rewrite"
	NewFile   Scenario = "new-file"
	All       Scenario = "all"
)

// edits maps each scenario to what its editor saves, given what it read.
var edits = map[Scenario]func([]byte) []byte{
	Unchanged: func(b []byte) []byte { return b },
	SmallEdit: func(b []byte) []byte {
		return bytes.Replace(b, []byte("line 00042 "), []byte("LINE 00042 "), 1)
	},
	Rewrite: func(b []byte) []byte { return bytes.ToUpper(b) },
	NewFile: func([]byte) []byte { return []byte("created by the editor\n") },
}

type BenchmarkResult struct {
	Scenario     Scenario
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correctness  bool
	ErrorMessage string
	Agent        sshed.AgentStats
}

type options struct {
	scenario    string
	duration    time.Duration
	concurrency int
	lines       int
	maxSessions int32
	fullContent bool
}

func main() {
	var opts options
	pflag.StringVar(&opts.scenario, "scenario", "all", "Scenario: unchanged, small-edit, rewrite, new-file, or all")
	pflag.DurationVar(&opts.duration, "duration", 5*time.Second, "Duration of each scenario")
	pflag.IntVar(&opts.concurrency, "concurrency", 4, "Number of concurrent guests")
	pflag.IntVar(&opts.lines, "lines", 1000, "Lines in the edited file")
	pflag.Int32Var(&opts.maxSessions, "max-sessions", sshed.DefaultMaxSessions, "Agent session ceiling")
	pflag.BoolVar(&opts.fullContent, "full-content", false, "Ask for the full content instead of diffs")
	pflag.Parse()

	fmt.Printf("sshed Benchmark Tool\n")
	fmt.Printf("====================\n")
	fmt.Printf("Scenario: %s\n", opts.scenario)
	fmt.Printf("Duration: %v\n", opts.duration)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("File: %d lines\n", opts.lines)
	fmt.Println()

	scenarios := []Scenario{Scenario(opts.scenario)}
	if scenarios[0] == All {
		scenarios = []Scenario{Unchanged, SmallEdit, Rewrite, NewFile}
	}

	for _, s := range scenarios {
		if _, ok := edits[s]; !ok {
			log.Fatalf("unknown scenario: %s", s)
		}
		fmt.Printf("--- Running %s benchmark ---\n", s)
		result, err := run(s, opts)
		if err != nil {
			log.Fatalf("%s: %v", s, err)
		}
		printResult(result)
	}
}

func run(scenario Scenario, opts options) (*BenchmarkResult, error) {
	edit := edits[scenario]

	agent, err := sshed.NewAgent(sshed.AgentConfig{
		MaxSessions: opts.maxSessions,
		Editor:      sshed.EditorFunc(func(ctx context.Context, path string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(path, edit(data), 0o600)
		}),
	})
	if err != nil {
		return nil, err
	}
	defer agent.Close()

	l, err := agent.Listen("")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- agent.Serve(ctx, l) }()
	defer func() {
		cancel()
		<-serveDone
	}()

	dir, err := os.MkdirTemp("", "sshed-bench-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	original := content(opts.lines)
	if scenario == NewFile {
		original = nil
	}
	want := edit(original)

	guest := sshed.NewGuest(sshed.GuestConfig{
		Socket:      l.Addr().String(),
		FullContent: opts.fullContent,
		NoFallback:  true,
	})

	result := &BenchmarkResult{Scenario: scenario}
	var totalOps, successes, failures, totalLatency int64
	var correct atomic.Bool
	var firstError sync.Once
	correct.Store(true)
	report := func(msg string) {
		firstError.Do(func() { result.ErrorMessage = msg })
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := range opts.concurrency {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			path := filepath.Join(dir, fmt.Sprintf("worker-%d.txt", worker))

			for time.Since(start) < opts.duration {
				if err := reset(path, original); err != nil {
					correct.Store(false)
					report(err.Error())
					return
				}

				opStart := time.Now()
				err := guest.Edit(ctx, path)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))
				atomic.AddInt64(&totalOps, 1)

				if err != nil {
					atomic.AddInt64(&failures, 1)
					report(err.Error())
					continue
				}
				atomic.AddInt64(&successes, 1)

				if got, err := os.ReadFile(path); err != nil || !bytes.Equal(got, want) {
					correct.Store(false)
					report("content mismatch")
				}
			}
		}(i)
	}
	wg.Wait()

	result.Duration = time.Since(start)
	result.Correctness = correct.Load()
	result.TotalOps = totalOps
	result.Successes = successes
	result.Failures = failures
	if totalOps > 0 {
		result.AvgLatency = time.Duration(totalLatency / totalOps)
		result.OpsPerSecond = float64(totalOps) / result.Duration.Seconds()
	}
	result.Agent = agent.Stats()
	return result, nil
}

// reset puts the file back to its original state, or removes it when the
// scenario starts without a file.
func reset(path string, original []byte) error {
	if original == nil {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.WriteFile(path, original, 0o600)
}

func content(lines int) []byte {
	var b strings.Builder
	for i := range lines {
		fmt.Fprintf(&b, "line %05d of the benchmark file, with some padding text\n", i)
	}
	return []byte(b.String())
}

func printResult(result *BenchmarkResult) {
	fmt.Printf("Scenario: %s\n", result.Scenario)
	fmt.Printf("Duration: %v\n", result.Duration)
	fmt.Printf("Total Sessions: %d\n", result.TotalOps)
	fmt.Printf("Successes: %d\n", result.Successes)
	fmt.Printf("Failures: %d\n", result.Failures)
	if result.TotalOps > 0 {
		fmt.Printf("Success Rate: %.2f%%\n", float64(result.Successes)/float64(result.TotalOps)*100)
		fmt.Printf("Sessions/sec: %.2f\n", result.OpsPerSecond)
		fmt.Printf("Avg Latency: %v\n", result.AvgLatency)
	}

	a := result.Agent
	fmt.Printf("Replies: %d unchanged, %d diff, %d full\n", a.Unchanged, a.DiffReplies, a.FullReplies)
	fmt.Printf("Bytes: %d received, %d sent\n", a.BytesReceived, a.BytesSent)

	fmt.Printf("Correctness: %t\n", result.Correctness)
	if result.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", result.ErrorMessage)
	}
	fmt.Println()
}
