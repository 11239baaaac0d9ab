package splice

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-analyze/charts"
	"github.com/klauspost/compress/zstd"
	"github.com/pmezard/go-difflib/difflib"
)

// compressedReportSuffix selects zstd compression for report files.
const compressedReportSuffix = ".zst"

// Report summarizes one run over a project.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	RunDuration int64           `json:"run_ms"`
	Module      string          `json:"module"`
	EntryName   string          `json:"entry_name"`
	Packages    []PackageReport `json:"packages"`
}

// PackageReport is the outcome for a single main package.
type PackageReport struct {
	PkgPath      string       `json:"pkg_path"`
	Rewritten    bool         `json:"rewritten"`
	OriginalFile string       `json:"original_file,omitempty"`
	ArtifactFile string       `json:"artifact_file,omitempty"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
	Diff         string       `json:"diff,omitempty"` // unified diff of the rewritten unit
	Error        string       `json:"error,omitempty"`
}

// Counts returns how many packages were rewritten, skipped with a diagnostic, or failed.
func (r Report) Counts() (rewritten, skipped, failed int) {
	for _, p := range r.Packages {
		if p.Error != "" {
			failed++
		} else if p.Rewritten {
			rewritten++
		} else {
			skipped++
		}
	}
	return
}

// BuildReport converts batch results into a report.
func BuildReport(module, entryName string, startTime time.Time, results []*PackageResult) Report {
	report := Report{
		GeneratedAt: time.Now().UTC(),
		RunDuration: time.Since(startTime).Milliseconds(),
		Module:      module,
		EntryName:   entryName,
		Packages:    make([]PackageReport, 0, len(results)),
	}
	for _, r := range results {
		pr := PackageReport{
			PkgPath:      r.PkgPath,
			Rewritten:    r.Rewritten(),
			ArtifactFile: r.ArtifactPath,
			Diagnostics:  r.Diagnostics,
		}
		if pr.Diagnostics == nil {
			pr.Diagnostics = []Diagnostic{}
		}
		if r.Err != nil {
			pr.Error = r.Err.Error()
		}
		diffs := make([]string, 0, len(r.Changed))
		for _, pair := range r.Changed {
			pr.OriginalFile = pair[0].Filename
			diffs = append(diffs, UnitDiff(pair[0], pair[1]))
		}
		pr.Diff = strings.Join(diffs, "\n")
		report.Packages = append(report.Packages, pr)
	}
	return report
}

// UnitDiff returns a unified diff from the source of before to the source of after.
func UnitDiff(before, after *Unit) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before.Src)),
		B:        difflib.SplitLines(string(after.Src)),
		FromFile: before.Filename,
		ToFile:   after.Filename + " (rewritten)",
		Context:  2,
	})
	if err != nil { // only possible from a failing writer
		return ""
	}
	return diff
}

// WriteToFile writes the report as indented JSON. Paths ending in ".zst" are zstd compressed.
func (r Report) WriteToFile(path string) error {
	if path == "" {
		return nil
	}

	encodedReport, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	}
	if strings.HasSuffix(path, compressedReportSuffix) {
		encodedReport = zstdCompress(nil, encodedReport)
	}
	if err := WriteFileAtomic(path, encodedReport); err != nil {
		return fmt.Errorf("write report file failed: %w", err)
	}
	return nil
}

// ReadReportFile reads a report written by Report.WriteToFile.
func ReadReportFile(path string) (Report, error) {
	var report Report
	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if strings.HasSuffix(path, compressedReportSuffix) {
		if data, err = zstdDecompress(nil, data); err != nil {
			return report, fmt.Errorf("decompress report failed: %w", err)
		}
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("unmarshal report failed: %w", err)
	}
	return report, nil
}

func zstdCompress(dst, data []byte) []byte {
	encOpts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	}
	if len(data) > 1024*1024*100 {
		encOpts = append(encOpts, zstd.WithEncoderConcurrency(max(1, runtime.NumCPU()/2)))
	}
	encoder, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		panic(err) // only returned for invalid options
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, dst)
}

func zstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, dst)
}

// RenderReportChart renders a summary gauge of the package outcomes. format is one of the charts output formats.
func RenderReportChart(report Report, format string) ([]byte, error) {
	rewritten, skipped, failed := report.Counts()
	total := rewritten + skipped + failed
	if total == 0 {
		return nil, fmt.Errorf("report of %s has no packages", report.Module)
	}

	p := charts.NewPainter(charts.PainterOptions{
		OutputFormat: format,
		Width:        800,
		Height:       160,
	})
	p.FilledRect(0, 0, p.Width(), p.Height(), charts.ColorWhite, charts.ColorWhite, 0)
	chartPainter := p.Child(charts.PainterPaddingOption(charts.NewBoxEqual(10)))

	opt := charts.NewHorizontalBarChartOptionWithData([][]float64{
		{float64(rewritten)}, {float64(skipped)}, {float64(failed)},
	})
	opt.StackSeries = charts.Ptr(true)
	opt.Theme = charts.GetTheme(charts.ThemeLight).
		WithBackgroundColor(charts.ColorTransparent).
		WithSeriesColors([]charts.Color{
			charts.ColorGreenAlt1,
			{ /* Golden yellow */ R: 220, G: 210, B: 100, A: 255},
			charts.ColorRed,
		})
	opt.Title.Text = "Entry Rewrites: " + report.Module
	opt.YAxis.Show = charts.Ptr(false)
	for i := range opt.SeriesList {
		opt.SeriesList[i].Label.Show = charts.Ptr(true)
		opt.SeriesList[i].Label.ValueFormatter = func(f float64) string {
			return charts.FormatValueHumanize(100.0*f/float64(total), 1, false) + "%"
		}
	}
	if err := chartPainter.HorizontalBarChart(opt); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return p.Bytes()
}

// ChartFormatForPath returns the chart output format matching the extension of path.
func ChartFormatForPath(path string) (string, error) {
	if strings.HasSuffix(path, ".png") {
		return charts.ChartOutputPNG, nil
	} else if strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".jpeg") {
		return charts.ChartOutputJPG, nil
	} else if strings.HasSuffix(path, ".svg") {
		return charts.ChartOutputSVG, nil
	}
	return "", fmt.Errorf("unhandled chart file type: %s", path)
}
