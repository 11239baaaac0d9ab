package splice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const pipelineStepName = "entrysplice"

// PackageResult is the outcome of rewriting one compilation.
type PackageResult struct {
	PkgPath string
	// Compilation is the compilation to continue with, the input one when nothing was rewritten.
	Compilation *Compilation
	Diagnostics []Diagnostic
	// ArtifactPath is set when an artifact was written.
	ArtifactPath string
	// Changed pairs the original and rewritten units.
	Changed [][2]*Unit
	Err     error
}

// Rewritten reports whether a unit of the package was replaced.
func (r *PackageResult) Rewritten() bool {
	return len(r.Changed) > 0
}

var artifactNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ".", "_", ":", "_")

// ArtifactFileName returns the artifact file name for the logical artifact name of pkgPath.
func ArtifactFileName(pkgPath, name string) string {
	return artifactNameReplacer.Replace(pkgPath) + "." + name + ".go"
}

// RunBatch rewrites every compilation through its own pipeline run. Compilations share nothing, so they are
// processed concurrently. Failures do not stop other packages, they are joined into the returned error.
func RunBatch(ctx context.Context, comps []*Compilation, config Config, outDir string) ([]*PackageResult, error) {
	engine := NewEngine(config)
	results := make([]*PackageResult, len(comps))
	errGroup := ErrGroupLimitCPU()
	for i, comp := range comps {
		errGroup.Go(func() error {
			results[i] = rewritePackage(ctx, engine, comp, outDir)
			return nil
		})
	}
	_ = errGroup.Wait() // errors are kept per result

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.PkgPath, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func rewritePackage(ctx context.Context, engine *Engine, comp *Compilation, outDir string) *PackageResult {
	var pipeline Pipeline
	pipeline.Register(pipelineStepName, engine)

	result := &PackageResult{PkgPath: comp.PkgPath()}
	var requested string
	next, diags, err := pipeline.Run(ctx, comp, func(name string) string {
		requested = filepath.Join(outDir, ArtifactFileName(comp.PkgPath(), name))
		return requested
	})
	result.Compilation = next
	result.Diagnostics = diags
	result.Err = err
	if next != nil && next != comp {
		result.Changed = ChangedUnits(comp, next)
	}
	if err == nil && result.Rewritten() {
		result.ArtifactPath = requested
	}
	return result
}

type overlayJSON struct {
	Replace map[string]string `json:"Replace"`
}

// WriteOverlay writes a `go build -overlay` file mapping every rewritten unit to its artifact. The artifacts keep
// the original file names in their line directives, so builds report original positions.
func WriteOverlay(path string, results []*PackageResult) (int, error) {
	overlay := overlayJSON{Replace: make(map[string]string)}
	for _, r := range results {
		if r.ArtifactPath == "" {
			continue
		}
		artifact, err := filepath.Abs(r.ArtifactPath)
		if err != nil {
			return 0, err
		}
		for _, pair := range r.Changed {
			overlay.Replace[pair[1].Filename] = artifact
		}
	}
	data, err := json.MarshalIndent(overlay, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal overlay failed: %w", err)
	}
	return len(overlay.Replace), WriteFileAtomic(path, data)
}
