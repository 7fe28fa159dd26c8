package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Reporter writes build reports and tracks their history.
type Reporter struct {
	outputDir   string
	historyFile string
}

// NewReporter creates a reporter writing under outputDir/metrics.
func NewReporter(outputDir string) (*Reporter, error) {
	metricsDir := filepath.Join(outputDir, "metrics")
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metrics directory: %w", err)
	}

	return &Reporter{
		outputDir:   metricsDir,
		historyFile: filepath.Join(metricsDir, "history.jsonl"),
	}, nil
}

// Write writes latest.json, a per-run file and a history line.
func (r *Reporter) Write(report *BuildReport) error {
	latestPath := filepath.Join(r.outputDir, "latest.json")
	if err := r.writeJSON(latestPath, report); err != nil {
		return fmt.Errorf("failed to write latest.json: %w", err)
	}

	runPath := filepath.Join(r.outputDir, fmt.Sprintf("run_%s.json", report.RunID))
	if err := r.writeJSON(runPath, report); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}

	if err := r.appendHistory(report); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

func (r *Reporter) writeJSON(path string, report *BuildReport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (r *Reporter) appendHistory(report *BuildReport) error {
	file, err := os.OpenFile(r.historyFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	line, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = file.Write(append(line, '\n'))
	return err
}

// ReadHistory reads the last limit reports from history. A limit of zero
// or less returns all of them.
func (r *Reporter) ReadHistory(limit int) ([]*BuildReport, error) {
	file, err := os.Open(r.historyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var reports []*BuildReport
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		var report BuildReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue // Skip malformed lines
		}
		reports = append(reports, &report)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(reports) > limit {
		reports = reports[len(reports)-limit:]
	}

	return reports, nil
}

// GetLastRun returns the most recent report from history.
func (r *Reporter) GetLastRun() (*BuildReport, error) {
	reports, err := r.ReadHistory(1)
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return reports[0], nil
}

// Comparison is the difference between two builds.
type Comparison struct {
	CurrentRunID   string  `json:"current_run_id"`
	PreviousRunID  string  `json:"previous_run_id"`
	SpeedupFactor  float64 `json:"speedup_factor"`
	TimeSavedMs    int64   `json:"time_saved_ms"`
	LocationsDiff  int64   `json:"locations_diff"`
	ThroughputDiff float64 `json:"throughput_diff"`
}

// CompareRuns compares two builds. It returns nil if either is missing.
func CompareRuns(current, previous *BuildReport) *Comparison {
	if current == nil || previous == nil || current.Totals == nil || previous.Totals == nil {
		return nil
	}

	speedup := float64(1)
	if current.Totals.DurationMs > 0 {
		speedup = float64(previous.Totals.DurationMs) / float64(current.Totals.DurationMs)
	}

	return &Comparison{
		CurrentRunID:   current.RunID,
		PreviousRunID:  previous.RunID,
		SpeedupFactor:  speedup,
		TimeSavedMs:    previous.Totals.DurationMs - current.Totals.DurationMs,
		LocationsDiff:  current.Totals.LocationsIndexed - previous.Totals.LocationsIndexed,
		ThroughputDiff: current.Totals.Throughput - previous.Totals.Throughput,
	}
}

// FormatComparison returns a human-readable comparison string.
func FormatComparison(c *Comparison) string {
	if c == nil {
		return "No previous build to compare"
	}

	direction := "faster"
	if c.SpeedupFactor < 1 {
		direction = "slower"
	}

	return fmt.Sprintf(
		"%.2fx %s than previous build (%+dms, %+d locations, %+.0f locations/sec)",
		c.SpeedupFactor,
		direction,
		-c.TimeSavedMs,
		c.LocationsDiff,
		c.ThroughputDiff,
	)
}
