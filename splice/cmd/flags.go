package cmd

import (
	"errors"
	"flag"
	"strings"

	"github.com/PatchLens/go-entry-splice/splice"
)

const usage = "usage: -project ../foo [-pkg ./cmd/...] [-call log.Println -message text] [-out ../foo/_entrysplice]"

// ParseFlags builds RunOptions from the command line. Validation that needs the filesystem is left to Prepare.
func ParseFlags() (*splice.RunOptions, error) {
	projectDir := flag.String("project", "", "Path to the project directory")
	pkgPatterns := flag.String("pkg", "./...", "Comma separated package patterns to rewrite, only main packages are considered")
	outDir := flag.String("out", "", "Directory for rewritten files (default <project>/_entrysplice)")
	entryName := flag.String("entry", splice.DefaultEntryName, "Package level function or func() variable to rewrite")
	callFlag := flag.String("call", "", "Qualified function called with the message (default fmt.Println)")
	message := flag.String("message", "", "String argument of the injected call")
	printDiff := flag.Bool("diff", false, "Print a unified diff of every rewritten file")
	overlayFile := flag.String("overlay", "", "File to output a go build -overlay mapping of rewritten files")
	verify := flag.Bool("verify", false, "Build the rewritten packages with go build -overlay")
	reportJsonFile := flag.String("report", "", "File to output run details, compressed when ending in .zst")
	reportChartsFile := flag.String("charts", "", "File to output a run overview chart image (.png, .jpg or .svg)")

	flag.Parse()

	if *projectDir == "" {
		return nil, errors.New(usage)
	}

	var patterns []string
	for _, p := range strings.Split(*pkgPatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return nil, errors.New("-pkg requires at least one package pattern")
	}

	return &splice.RunOptions{
		ProjectDir:  *projectDir,
		Patterns:    patterns,
		OutDir:      *outDir,
		EntryName:   *entryName,
		CallFlag:    *callFlag,
		Message:     *message,
		Diff:        *printDiff,
		OverlayFile: *overlayFile,
		Verify:      *verify,
		ReportFile:  *reportJsonFile,
		ChartFile:   *reportChartsFile,
	}, nil
}
