// Package ui provides terminal UI components using pterm.
package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"

	"locsearch/internal/index"
	"locsearch/internal/metrics"
	"locsearch/internal/schema"
)

// Theme colors for consistent styling
var (
	ColorPrimary   = pterm.FgCyan
	ColorSecondary = pterm.FgLightBlue
	ColorSuccess   = pterm.FgGreen
	ColorWarning   = pterm.FgYellow
	ColorError     = pterm.FgRed
	ColorMuted     = pterm.FgGray
)

// UI wraps pterm components for locsearch.
type UI struct {
	quiet   bool
	verbose bool
}

// New creates a new UI instance.
func New(quiet, verbose bool) *UI {
	if quiet {
		pterm.DisableOutput()
	}
	return &UI{quiet: quiet, verbose: verbose}
}

// Banner prints the application banner.
func (u *UI) Banner() {
	pterm.DefaultBigText.WithLetters(
		pterm.NewLettersFromStringWithStyle("loc", pterm.NewStyle(ColorPrimary)),
		pterm.NewLettersFromStringWithStyle("search", pterm.NewStyle(ColorSecondary)),
	).Render()

	pterm.DefaultCenter.Println(
		ColorMuted.Sprint("Hierarchical location search"),
	)
	fmt.Println()
}

// Config prints the configuration summary.
func (u *UI) Config(settings [][]string) {
	pterm.DefaultSection.Println("Configuration")
	pterm.DefaultTable.WithData(settings).Render()
	fmt.Println()
}

// SpinnerWrapper stops cleanly even when output is disabled.
type SpinnerWrapper struct {
	spinner *pterm.SpinnerPrinter
}

// Stop removes the spinner.
func (s *SpinnerWrapper) Stop() {
	if s == nil || s.spinner == nil {
		return
	}
	s.spinner.Stop()
}

// Spinner creates a spinner for long operations.
func (u *UI) Spinner(message string) *SpinnerWrapper {
	if u.quiet {
		return &SpinnerWrapper{}
	}
	spinner, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(true).
		Start(message)
	return &SpinnerWrapper{spinner: spinner}
}

// Results prints ranked matches in a table.
func (u *UI) Results(query string, results []schema.MatchResult) {
	if len(results) == 0 {
		pterm.Warning.Printfln("No locations match %q", query)
		return
	}
	pterm.DefaultTable.WithHasHeader().WithData(ResultRows(results)).Render()
	fmt.Println()
}

// ResultRows renders results as table rows with a header.
func ResultRows(results []schema.MatchResult) pterm.TableData {
	data := pterm.TableData{{"#", "Location", "Kind", "Path", "Match", "Score"}}
	for i, r := range results {
		data = append(data, []string{
			fmt.Sprintf("%d", i+1),
			HighlightName(r),
			r.Location.Kind.String(),
			r.FullPath,
			string(r.MatchType),
			fmt.Sprintf("%.1f", r.Score),
		})
	}
	return data
}

// HighlightName colors the matched part of the location name.
func HighlightName(r schema.MatchResult) string {
	h := r.Highlight
	if h == nil {
		return r.Location.Name
	}
	return h.Before + ColorSuccess.Sprint(h.Match) + h.After
}

// Options prints picker options under a title.
func (u *UI) Options(title string, options []schema.Option) {
	pterm.DefaultSection.WithLevel(2).Println(title)
	if len(options) == 0 {
		pterm.Warning.Println("nothing listed")
		return
	}

	data := pterm.TableData{{"ID", "Name"}}
	for _, o := range options {
		data = append(data, []string{o.ID, o.DisplayName})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	fmt.Println()
}

// Stats prints key/value statistics in a table, sorted by key.
func (u *UI) Stats(title string, stats map[string]interface{}) {
	pterm.DefaultSection.WithLevel(2).Println(title)

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data [][]string
	for _, k := range keys {
		data = append(data, []string{k, fmt.Sprintf("%v", stats[k])})
	}

	pterm.DefaultTable.WithData(data).Render()
	fmt.Println()
}

// IndexSizes prints the size of each index.
func (u *UI) IndexSizes(sizes index.Sizes) {
	data := pterm.TableData{
		{"Index", "Entries"},
		{"locations", fmt.Sprintf("%d", sizes.Locations)},
		{"terms", fmt.Sprintf("%d", sizes.Terms)},
		{"phonetic", fmt.Sprintf("%d", sizes.Phonetic)},
		{"keywords", fmt.Sprintf("%d", sizes.Keywords)},
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	fmt.Println()
}

// FinalReport prints the index build summary.
func (u *UI) FinalReport(report *metrics.BuildReport) {
	if report == nil || report.Totals == nil {
		return
	}
	pterm.DefaultSection.Println("Summary")

	totals := report.Totals
	duration := time.Duration(totals.DurationMs) * time.Millisecond
	panel := pterm.DefaultBox.WithTitle("Index build").Sprint(
		fmt.Sprintf(
			"  Locations:   %s\n"+
				"  Shards:      %s\n"+
				"  Duration:    %s\n"+
				"  Throughput:  %s locations/sec",
			ColorSuccess.Sprintf("%d", totals.LocationsIndexed),
			ColorPrimary.Sprintf("%d", totals.ShardsLoaded),
			ColorWarning.Sprint(duration.Round(time.Millisecond)),
			pterm.FgMagenta.Sprintf("%.0f", totals.Throughput),
		),
	)
	fmt.Println(panel)
}

// Error prints an error message.
func (u *UI) Error(message string) {
	pterm.Error.Println(message)
}

// Warning prints a warning message.
func (u *UI) Warning(message string) {
	pterm.Warning.Println(message)
}

// Info prints an info message.
func (u *UI) Info(message string) {
	pterm.Info.Println(message)
}

// Debug prints a debug message (only in verbose mode).
func (u *UI) Debug(message string) {
	if u.verbose {
		pterm.Debug.Println(message)
	}
}
