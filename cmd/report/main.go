package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/PatchLens/go-entry-splice/splice"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	reportJsonFile := flag.String("json", "entrysplice.json", "Run details written with entrysplice -report")
	reportChartsFile := flag.String("charts", "", "File to output a run overview chart image (.png, .jpg or .svg)")
	showDiff := flag.Bool("diff", false, "Print the recorded diffs")
	flag.Parse()

	report, err := splice.ReadReportFile(*reportJsonFile)
	if err != nil {
		log.Fatalf("%sFailed to read report: %v", splice.ErrorLogPrefix, err)
	}

	rewritten, skipped, failed := report.Counts()
	fmt.Printf("%s (entry %s) generated %s in %dms\n", report.Module, report.EntryName,
		report.GeneratedAt.Format("2006-01-02 15:04:05"), report.RunDuration)
	fmt.Printf("rewritten: %d, skipped: %d, failed: %d\n", rewritten, skipped, failed)
	for _, p := range report.Packages {
		status := "skipped"
		if p.Error != "" {
			status = "failed: " + p.Error
		} else if p.Rewritten {
			status = "rewritten -> " + p.ArtifactFile
		}
		fmt.Printf("  %s: %s\n", p.PkgPath, status)
		for _, d := range p.Diagnostics {
			fmt.Printf("    %v\n", d)
		}
		if *showDiff && p.Diff != "" {
			fmt.Println(p.Diff)
		}
	}

	if *reportChartsFile == "" {
		return
	}
	format, err := splice.ChartFormatForPath(*reportChartsFile)
	if err != nil {
		log.Fatalf("%s%v", splice.ErrorLogPrefix, err)
	}
	chart, err := splice.RenderReportChart(report, format)
	if err != nil {
		log.Fatalf("%sFailed to render charts: %v", splice.ErrorLogPrefix, err)
	}
	if err = os.WriteFile(*reportChartsFile, chart, 0644); err != nil {
		log.Fatalf("%sFailed to write chart file: %v", splice.ErrorLogPrefix, err)
	}
	log.Println("Chart file wrote: " + *reportChartsFile)
}
