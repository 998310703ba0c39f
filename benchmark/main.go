// Package main provides a performance benchmarking tool for the Heatshield CLI.
// It measures execution times across synthetic batch sizes and command types,
// running each command with the audit trail off and on, treating the first audited
// run as cold (schema setup) and averaging the rest as warm,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - heatshield binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for generated fixtures and the benchmark audit database
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-audit average, cold run and average of warm runs).
type BenchmarkResult struct {
	BatchSize   int
	Command     string
	NoAuditTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir        string
	AuditDBPath    string
	Timeout        time.Duration
	Workers        int
	NoAuditRuns    int
	AuditRuns      int
	BatchSizes     []int
	SignalsPerUnit int
}

// benchSignal and benchUnit mirror the wire format the CLI decodes.
type benchSignal struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Category string `json:"category"`
	ZIP      string `json:"zip"`
	Date     string `json:"date"`
}

type benchUnit struct {
	ID                 string            `json:"id"`
	ZIP                string            `json:"zip"`
	Window             map[string]string `json:"window"`
	RepresentativeText string            `json:"representative_text"`
	Signals            []benchSignal     `json:"signals"`
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}
	workDir := os.Args[1]

	config := BenchmarkConfig{
		WorkDir:        workDir,
		AuditDBPath:    filepath.Join(workDir, "bench_audit.db"),
		Timeout:        5 * time.Minute,
		Workers:        8,
		NoAuditRuns:    3,
		AuditRuns:      4,
		BatchSizes:     []int{100, 1000, 5000},
		SignalsPerUnit: 8,
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

// checkPrerequisites verifies that the heatshield binary and the work directory exist
func checkPrerequisites(config BenchmarkConfig) error {
	// Check if heatshield is available
	if _, err := exec.LookPath("heatshield"); err != nil {
		return fmt.Errorf("heatshield binary not found in PATH")
	}

	if _, err := os.Stat(config.WorkDir); os.IsNotExist(err) {
		return fmt.Errorf("work directory not found at %s", config.WorkDir)
	}

	return nil
}

// runBenchmarks executes all benchmark tests across configured batch sizes
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: sizes %v, %v timeout, %d workers, no-audit: %d runs, audit: %d runs\n",
		config.BatchSizes, config.Timeout, config.Workers, config.NoAuditRuns, config.AuditRuns)

	for _, size := range config.BatchSizes {
		fmt.Printf("Benchmarking batch size %d\n", size)

		unitsPath, signalsPath, err := generateFixtures(config, size)
		if err != nil {
			fmt.Printf("Failed to generate fixtures for size %d: %v\n", size, err)
			continue
		}

		// Standalone scrub over the flat signal batch
		result := runBenchmarkSuite(config, size, "scrub", "scrub pass", signalsPath, nil)
		results = append(results, result)

		// Gate evaluation over the unit batch
		result = runBenchmarkSuite(config, size, "gate", "gate evaluation", unitsPath, nil)
		results = append(results, result)

		// Watermarked export over the unit batch
		extraArgs := []string{"--tier", "1", "--batch-id", "bench"}
		result = runBenchmarkSuite(config, size, "export", "watermarked export", unitsPath, extraArgs)
		results = append(results, result)
	}

	return results
}

// generateFixtures writes a unit batch and a flat signal batch of the given
// size into the work directory. Roughly one text in ten carries a phone
// number so the scrubber always has real matches to find.
func generateFixtures(config BenchmarkConfig, size int) (unitsPath, signalsPath string, err error) {
	sources := [][2]string{
		{"daily-ledger", "news"},
		{"neighborhood-forum", "community"},
		{"metro-wire", "news"},
		{"advocacy-desk", "advocacy"},
	}

	units := make([]benchUnit, size)
	var flat []benchSignal
	for i := range size {
		zip := fmt.Sprintf("60%03d", i%600)
		signals := make([]benchSignal, config.SignalsPerUnit)
		for j := range config.SignalsPerUnit {
			source := sources[(i+j)%len(sources)]
			text := fmt.Sprintf("report %d-%d of sustained activity near the plaza", i, j)
			if (i*config.SignalsPerUnit+j)%10 == 0 {
				text += ", call 312-555-0188 for details"
			}
			signals[j] = benchSignal{
				Text:     text,
				Source:   source[0],
				Category: source[1],
				ZIP:      zip,
				Date:     fmt.Sprintf("2025-06-%02d", j%14+1),
			}
		}
		units[i] = benchUnit{
			ID:                 fmt.Sprintf("unit-%d", i),
			ZIP:                zip,
			Window:             map[string]string{"start": "2025-06-01", "end": "2025-06-14"},
			RepresentativeText: fmt.Sprintf("batch %d reports of increased activity", i),
			Signals:            signals,
		}
		flat = append(flat, signals...)
	}

	unitsPath = filepath.Join(config.WorkDir, fmt.Sprintf("units_%d.json", size))
	if err = writeJSONFile(unitsPath, units); err != nil {
		return "", "", err
	}
	signalsPath = filepath.Join(config.WorkDir, fmt.Sprintf("signals_%d.json", size))
	if err = writeJSONFile(signalsPath, flat); err != nil {
		return "", "", err
	}
	return unitsPath, signalsPath, nil
}

func writeJSONFile(path string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// runBenchmarkSuite runs both no-audit and audit benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, size int, command, description, inputPath string, extraArgs []string) BenchmarkResult {
	fmt.Printf("Running %s at size %d\n", description, size)

	// Helper to run a benchmark phase
	runPhase := func(auditBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, command, inputPath, extraArgs, auditBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avg := sum / float64(len(times))
			avgTime = fmt.Sprintf("%.3fs", avg)
		}
		return cold, avgTime
	}

	// Phase 1: No-audit runs
	_, noAuditAvg := runPhase("none", config.NoAuditRuns, "No-audit")

	// Phase 2: Audit runs against a fresh database, first run pays for the schema
	_ = os.Remove(config.AuditDBPath)
	coldTime, warmAvg := runPhase("sqlite", config.AuditRuns, "Audit")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-audit average: %s, Cold time: %s, Warm average: %s\n", noAuditAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		BatchSize:   size,
		Command:     command,
		NoAuditTime: noAuditAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes a heatshield command multiple times with the specified audit backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, command, inputPath string, extraArgs []string, auditBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	// Prepare command arguments
	args := []string{command, inputPath,
		"--workers", strconv.Itoa(config.Workers),
		"--audit-backend", auditBackend,
	}
	if auditBackend == "sqlite" {
		args = append(args, "--audit-db-connect", config.AuditDBPath)
	}
	args = append(args, extraArgs...)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("heatshield", args...)
		cmd.Dir = config.WorkDir

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output, command) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			// Timeout - don't add to times
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte, command string) bool {
	outputStr := string(output)

	var completionPhrase string
	switch command {
	case "scrub":
		completionPhrase = "Scrubbing completed in"
	case "gate":
		completionPhrase = "Gating completed in"
	case "export":
		completionPhrase = "Export completed in"
	default:
		completionPhrase = "completed in"
	}

	return strings.Contains(outputStr, completionPhrase) &&
		strings.Contains(outputStr, "workers")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/heatshield_benchmark_%s.csv", timestamp)

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

	// Write header
	if err := writer.Write([]string{"batch_size", "cmd", "no_audit_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		record := []string{strconv.Itoa(result.BatchSize), result.Command, result.NoAuditTime, result.ColdTime, result.WarmTime}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")

	printCommandSummary(results, "scrub", "Scrub Pass:")
	printCommandSummary(results, "gate", "Gate Evaluation:")
	printCommandSummary(results, "export", "Watermarked Export:")

	fmt.Printf("Benchmark script completed successfully\n")
}

// printCommandSummary displays results for a specific command type
func printCommandSummary(results []BenchmarkResult, command, title string) {
	fmt.Printf("%s\n", title)
	for _, result := range results {
		if result.Command == command {
			fmt.Printf("  %-6d: No-audit: %s, Cold: %s, Warm: %s\n", result.BatchSize, result.NoAuditTime, result.ColdTime, result.WarmTime)
		}
	}
}
