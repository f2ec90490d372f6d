// Package main provides a performance benchmarking tool for the trae CLI.
// It measures analyze and repair times across source trees of different sizes,
// running each test multiple times, treating the first successful cached run as cold
// and averaging the rest as warm, and writes CSV output for performance analysis.
//
// Prerequisites:
// - trae binary installed and available in PATH
// - Test trees cloned to the specified base directory
// - Trees: csv-parser, fd, git, kubernetes
//
// Usage: go run benchmark/main.go [tree-base-dir]
//
//	tree-base-dir: Directory containing test trees
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Tree        string
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	TreeBase    string
	Timeout     time.Duration
	Parallelism int
	NoCacheRuns int
	CacheRuns   int
	TestTrees   []string
}

// benchCommand is one trae invocation measured per tree.
type benchCommand struct {
	name       string
	args       []string
	completion string
}

var benchCommands = []benchCommand{
	{name: "analyze", args: []string{"analyze"}, completion: "Analysis completed in"},
	{name: "deep", args: []string{"analyze", "--profile", "deep"}, completion: "Analysis completed in"},
	{name: "repair", args: []string{"repair", "--dry-run", "--level", "balanced"}, completion: "Repair finished in"},
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [tree-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		TreeBase:    os.Args[1],
		Timeout:     5 * time.Minute,
		Parallelism: 14,
		NoCacheRuns: 3,
		CacheRuns:   4,
		TestTrees:   []string{"csv-parser", "fd", "git", "kubernetes"},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the trae binary and test trees exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("trae"); err != nil {
		return fmt.Errorf("trae binary not found in PATH")
	}

	for _, tree := range config.TestTrees {
		treePath := filepath.Join(config.TreeBase, tree)
		if _, err := os.Stat(treePath); os.IsNotExist(err) {
			return fmt.Errorf("tree %s not found at %s", tree, treePath)
		}
	}

	return nil
}

// runBenchmarks executes all benchmark tests across configured trees
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d trees, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.TestTrees), config.Timeout, config.Parallelism, config.NoCacheRuns, config.CacheRuns)

	for _, tree := range config.TestTrees {
		fmt.Printf("Benchmarking %s\n", tree)
		treePath := filepath.Join(config.TreeBase, tree)
		for _, bc := range benchCommands {
			results = append(results, runBenchmarkSuite(config, tree, treePath, bc))
		}
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, tree, treePath string, bc benchCommand) BenchmarkResult {
	fmt.Printf("Running %s on %s\n", bc.name, tree)

	// Start every suite from an empty file cache
	clearCmd := exec.Command("trae", "cache", "clear")
	clearCmd.Dir = treePath
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	}

	// Helper to run a benchmark phase
	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, treePath, bc, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs
	coldTime, warmAvg := runPhase("file", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Tree:        tree,
		Command:     bc.name,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes a trae command multiple times with specified cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, treePath string, bc benchCommand, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := append([]string{}, bc.args...)
	args = append(args,
		"--cache-backend", cacheBackend,
		"--parallelism", fmt.Sprint(config.Parallelism),
		"--metrics", "no",
		"--color", "no",
	)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("trae", args...)
		cmd.Dir = treePath

		done := make(chan bool, 1)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && strings.Contains(string(output), bc.completion) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/trae_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"tree", "cmd", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Tree, result.Command, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, bc := range benchCommands {
		fmt.Printf("%s:\n", bc.name)
		for _, result := range results {
			if result.Command == bc.name {
				fmt.Printf("  %-12s: No-cache: %s, Cold: %s, Warm: %s\n", result.Tree, result.NoCacheTime, result.ColdTime, result.WarmTime)
			}
		}
	}
}
