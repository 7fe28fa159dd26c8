package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCollector(t *testing.T) {
	c := NewCollector()

	if c.GetRunID() == "" {
		t.Error("Expected non-empty run ID")
	}

	c.SetConfig("workers", 4)

	c.StartStage(StageRegions)
	time.Sleep(10 * time.Millisecond)
	c.IncrementCounter("regions", 7)
	c.SetGauge("regions_per_sec", 700.5)
	c.EndStage(StageRegions)

	c.StartStage(StageIndex)
	c.SetCounter("locations", 221)
	c.EndStage(StageIndex)

	report := c.Finalize(221, 49)

	if report.RunID == "" {
		t.Error("Expected non-empty run ID in report")
	}
	if report.Totals.LocationsIndexed != 221 {
		t.Errorf("Expected 221 locations, got %d", report.Totals.LocationsIndexed)
	}
	if report.Totals.ShardsLoaded != 49 {
		t.Errorf("Expected 49 shards, got %d", report.Totals.ShardsLoaded)
	}

	regions, ok := report.Stages[StageRegions]
	if !ok {
		t.Fatal("Expected regions stage in report")
	}
	if regions.Counters["regions"] != 7 {
		t.Errorf("Expected regions counter = 7, got %d", regions.Counters["regions"])
	}
	if c.GetStageDuration(StageRegions) < 10*time.Millisecond {
		t.Errorf("regions stage duration = %v, want at least 10ms", c.GetStageDuration(StageRegions))
	}

	if report.Stages[StageIndex].Counters["locations"] != 221 {
		t.Errorf("Expected locations = 221, got %d", report.Stages[StageIndex].Counters["locations"])
	}
}

func TestCollectorCountersWithoutStage(t *testing.T) {
	c := NewCollector()
	c.IncrementCounter("orphan", 1)
	c.StartStage(StageShards)
	c.EndStage(StageShards)
	c.IncrementCounter("late", 1)

	if n := c.Finalize(0, 0).Stages[StageShards].Counters["late"]; n != 0 {
		t.Errorf("counter recorded after stage ended: %d", n)
	}
}

func TestCollectorConcurrentCounters(t *testing.T) {
	c := NewCollector()
	c.StartStage(StageShards)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncrementCounter("shards", 1)
			}
		}()
	}
	wg.Wait()
	c.EndStage(StageShards)

	if n := c.Finalize(0, 0).Stages[StageShards].Counters["shards"]; n != 1600 {
		t.Errorf("shards counter = %d, want 1600", n)
	}
}

func TestReporter(t *testing.T) {
	tmpDir := t.TempDir()

	reporter, err := NewReporter(tmpDir)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}

	c := NewCollector()
	c.StartStage(StageIndex)
	c.SetCounter("locations", 100)
	c.EndStage(StageIndex)
	report := c.Finalize(100, 5)

	if err := reporter.Write(report); err != nil {
		t.Fatalf("Failed to write report: %v", err)
	}

	for _, name := range []string{"latest.json", "history.jsonl", "run_" + report.RunID + ".json"} {
		if _, err := os.Stat(filepath.Join(tmpDir, "metrics", name)); os.IsNotExist(err) {
			t.Errorf("Expected %s to exist", name)
		}
	}

	runs, err := reporter.ReadHistory(10)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("Expected 1 run in history, got %d", len(runs))
	}

	lastRun, err := reporter.GetLastRun()
	if err != nil {
		t.Fatalf("Failed to get last run: %v", err)
	}
	if lastRun.RunID != report.RunID {
		t.Errorf("Expected run ID %s, got %s", report.RunID, lastRun.RunID)
	}
	if lastRun.Totals.LocationsIndexed != 100 {
		t.Errorf("Expected 100 locations in history, got %d", lastRun.Totals.LocationsIndexed)
	}
}

func TestReadHistoryMissing(t *testing.T) {
	reporter, err := NewReporter(t.TempDir())
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}
	runs, err := reporter.ReadHistory(5)
	if err != nil || runs != nil {
		t.Errorf("ReadHistory on empty dir = %v, %v; want nil, nil", runs, err)
	}
}

func TestComparison(t *testing.T) {
	r1 := NewCollector().Finalize(1000, 10)
	r1.Totals.DurationMs = 1000
	r1.Totals.Throughput = 1000

	r2 := NewCollector().Finalize(1010, 10)
	r2.Totals.DurationMs = 500
	r2.Totals.Throughput = 2000

	comparison := CompareRuns(r2, r1)
	if comparison == nil {
		t.Fatal("Expected non-nil comparison")
	}
	if comparison.SpeedupFactor != 2.0 {
		t.Errorf("Expected 2x speedup, got %.2f", comparison.SpeedupFactor)
	}
	if comparison.TimeSavedMs != 500 {
		t.Errorf("Expected 500ms saved, got %d", comparison.TimeSavedMs)
	}
	if comparison.LocationsDiff != 10 {
		t.Errorf("Expected 10 more locations, got %d", comparison.LocationsDiff)
	}

	if formatted := FormatComparison(comparison); !strings.Contains(formatted, "faster") {
		t.Errorf("FormatComparison = %q, want it to mention faster", formatted)
	}
	if got := FormatComparison(CompareRuns(r2, nil)); got != "No previous build to compare" {
		t.Errorf("FormatComparison(nil) = %q", got)
	}
}
