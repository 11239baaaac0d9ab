package splice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultOutDirName  = "_entrysplice"
	overlayFileName    = "overlay.json"
	diffPrintLineLimit = 200
	verifyLogLineLimit = 40
	defaultPkgPattern  = "./..."
)

// RunOptions configures a run of the command line host over a project.
type RunOptions struct {
	ProjectDir  string
	Patterns    []string
	OutDir      string
	EntryName   string
	CallFlag    string // qualified function, for example "log.Println"
	Message     string
	Diff        bool
	OverlayFile string
	Verify      bool
	ReportFile  string
	ChartFile   string
	// Computed fields
	AbsProjDir, ModulePath string
	Call                   SyntheticCall
	// Internal state tracking
	prepared bool
}

// Prepare validates the options and resolves the computed fields. It may only be called once.
func (o *RunOptions) Prepare() error {
	if o.prepared {
		return errors.New("options have already been prepared")
	} else if o.ProjectDir == "" {
		return errors.New("project directory is required")
	}

	absProjDir, err := filepath.Abs(o.ProjectDir)
	if err != nil {
		return fmt.Errorf("error resolving project directory: %w", err)
	} else if info, err := os.Stat(absProjDir); err != nil {
		return fmt.Errorf("project directory is not accessible: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("project path is not a directory: %s", absProjDir)
	}
	o.AbsProjDir = absProjDir
	if o.ModulePath, err = ModulePath(absProjDir); err != nil {
		return err
	}

	if len(o.Patterns) == 0 {
		o.Patterns = []string{defaultPkgPattern}
	}
	if o.OutDir == "" {
		o.OutDir = filepath.Join(absProjDir, defaultOutDirName)
	} else if o.OutDir, err = filepath.Abs(o.OutDir); err != nil {
		return fmt.Errorf("error resolving output directory: %w", err)
	}
	// artifacts inside the project must stay invisible to package patterns, or they would collide with the originals
	if within, err := fileWithinDir(o.OutDir, absProjDir); err != nil {
		return err
	} else if within {
		rel, err := filepath.Rel(absProjDir, o.OutDir)
		if err != nil {
			return err
		} else if rel == "." || !ignoredByGoTool(rel) {
			return fmt.Errorf("output directory %s would be built as part of the project, use a name starting with '_'", o.OutDir)
		}
	}

	if o.CallFlag == "" {
		o.Call = DefaultSyntheticCall()
		if o.Message != "" {
			o.Call.Message = o.Message
		}
	} else {
		message := o.Message
		if message == "" {
			message = DefaultSyntheticCall().Message
		}
		if o.Call, err = ParseSyntheticCall(o.CallFlag, message); err != nil {
			return fmt.Errorf("invalid call: %w", err)
		}
	}
	if o.Verify && o.OverlayFile == "" {
		o.OverlayFile = filepath.Join(o.OutDir, overlayFileName)
	}

	o.prepared = true
	return nil
}

// EngineConfig returns the engine settings selected by the options.
func (o *RunOptions) EngineConfig() Config {
	config := DefaultConfig()
	if o.EntryName != "" {
		config.EntryName = o.EntryName
	}
	config.Call = o.Call
	return config
}

// Run loads the main packages of the project, rewrites their entry points and produces the requested outputs.
// Per package errors do not stop the run, they are returned joined once every output is written.
func Run(ctx context.Context, opts *RunOptions) error {
	if !opts.prepared {
		if err := opts.Prepare(); err != nil {
			return err
		}
	}
	startTime := time.Now()

	comps, err := LoadCompilations(ctx, opts.AbsProjDir, true, opts.Patterns...)
	if err != nil {
		return err
	} else if len(comps) == 0 {
		return fmt.Errorf("no main packages match %s in %s", strings.Join(opts.Patterns, " "), opts.AbsProjDir)
	}
	log.Printf("Loaded %d main packages from %s", len(comps), opts.AbsProjDir)

	config := opts.EngineConfig()
	results, batchErr := RunBatch(ctx, comps, config, opts.OutDir)
	var rewritten int
	for _, r := range results {
		for _, d := range r.Diagnostics {
			log.Printf("%s: %v", r.PkgPath, d)
		}
		if r.Err != nil {
			log.Printf("%sRewrite of %s failed: %v", ErrorLogPrefix, r.PkgPath, r.Err)
		} else if r.Rewritten() {
			rewritten++
			if opts.Diff {
				for _, pair := range r.Changed {
					fmt.Println(limitStringLines(UnitDiff(pair[0], pair[1]), diffPrintLineLimit, true))
				}
			}
		}
	}
	log.Printf("Rewrote %d of %d main packages", rewritten, len(results))

	if opts.OverlayFile != "" {
		if count, err := WriteOverlay(opts.OverlayFile, results); err != nil {
			return errors.Join(batchErr, fmt.Errorf("write overlay failed: %w", err))
		} else {
			log.Printf("Overlay file wrote with %d replacements: %s", count, opts.OverlayFile)
		}
	}
	if opts.Verify {
		if err := verifyRewrites(opts); err != nil {
			batchErr = errors.Join(batchErr, err)
		}
	}

	if opts.ReportFile != "" || opts.ChartFile != "" {
		report := BuildReport(opts.ModulePath, config.EntryName, startTime, results)
		if err := report.WriteToFile(opts.ReportFile); err != nil {
			return errors.Join(batchErr, err)
		} else if opts.ReportFile != "" {
			log.Println("Report file wrote: " + opts.ReportFile)
		}
		if err := writeReportChart(opts.ChartFile, report); err != nil {
			return errors.Join(batchErr, err)
		}
	}
	return batchErr
}

func verifyRewrites(opts *RunOptions) error {
	binDir, err := os.MkdirTemp("", "entrysplice-verify-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(binDir) }()

	log.Printf("Verifying rewritten build of %s", strings.Join(opts.Patterns, " "))
	if output, err := VerifyOverlayBuild(opts.AbsProjDir, opts.OverlayFile, binDir, opts.Patterns...); err != nil {
		return fmt.Errorf("verify build failed: %w\n%s", err, limitStringLines(string(output), verifyLogLineLimit, false))
	}
	log.Println("Verify build succeeded")
	return nil
}

func writeReportChart(path string, report Report) error {
	if path == "" {
		return nil
	}
	format, err := ChartFormatForPath(path)
	if err != nil {
		return err
	}
	chart, err := RenderReportChart(report, format)
	if err != nil {
		return fmt.Errorf("render chart failed: %w", err)
	} else if err = WriteFileAtomic(path, chart); err != nil {
		return fmt.Errorf("write chart file failed: %w", err)
	}
	log.Println("Chart file wrote: " + path)
	return nil
}
