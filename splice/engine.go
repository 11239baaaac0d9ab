package splice

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// DefaultArtifactName is the logical name the rewritten unit is written under.
const DefaultArtifactName = "NewMain"

// ErrArtifactWrite indicates the rewritten unit could not be written, no success is reported.
var ErrArtifactWrite = errors.New("artifact write failed")

// IsRecoverable returns true if the error is reported as a diagnostic rather than failing the invocation.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrEntryBodyMissing)
}

// Config holds the settings of an Engine.
type Config struct {
	// EntryName is the package level function or func() variable to rewrite.
	EntryName string
	// Call is the statement injected at the head of the entry.
	Call SyntheticCall
	// ArtifactName is passed to HostContext.OutputFilePath to locate the artifact.
	ArtifactName string
}

// DefaultConfig rewrites func main with DefaultSyntheticCall.
func DefaultConfig() Config {
	return Config{
		EntryName:    DefaultEntryName,
		Call:         DefaultSyntheticCall(),
		ArtifactName: DefaultArtifactName,
	}
}

// Result is the output of the pure transformation stage.
type Result struct {
	Compilation *Compilation
	Rewrite     *Rewrite
	// Artifact is the full text of the rewritten unit.
	Artifact []byte
}

// Engine splices the configured call into the entry procedure of a compilation. It holds no state between
// invocations and may be shared between goroutines.
type Engine struct {
	config Config
}

// NewEngine creates an Engine, empty config fields take their defaults.
func NewEngine(config Config) *Engine {
	defaults := DefaultConfig()
	if config.EntryName == "" {
		config.EntryName = defaults.EntryName
	}
	if config.Call.Func == "" {
		config.Call = defaults.Call
	}
	if config.ArtifactName == "" {
		config.ArtifactName = defaults.ArtifactName
	}
	return &Engine{config: config}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Transform locates, normalizes, splices and installs without side effects. comp is never modified, on error
// no new compilation is produced.
func (e *Engine) Transform(ctx context.Context, comp *Compilation) (*Result, error) {
	entry, err := FindEntryPoint(ctx, comp, e.config.EntryName)
	if err != nil {
		return nil, err
	}
	body, err := NormalizeBody(comp.Info(), entry.Site())
	if err != nil {
		return nil, err
	}
	mapping := SynthesizeLineMapping(comp.Fset(), body)
	spliced := Splice(body, mapping, e.config.Call)
	next, rewrite, err := UpdateCompilation(comp, spliced)
	if err != nil {
		return nil, err
	}
	return &Result{
		Compilation: next,
		Rewrite:     rewrite,
		Artifact:    rewrite.Text(),
	}, nil
}

// Rewrite runs Transform against the host compilation, writes the artifact and reports the outcome. Missing
// entries are reported as diagnostics and return the original compilation without error. A failed artifact write
// returns ErrArtifactWrite together with the original compilation.
func (e *Engine) Rewrite(ctx context.Context, host *HostContext) (*Compilation, error) {
	comp := host.Compilation
	result, err := e.Transform(ctx, comp)
	if errors.Is(err, ErrEntryNotFound) {
		host.report(newDiagnostic(MsgEntryNotFound))
		return comp, nil
	} else if errors.Is(err, ErrEntryBodyMissing) {
		host.report(newDiagnostic(MsgEntryEmpty))
		return comp, nil
	} else if err != nil {
		return comp, err
	}

	artifactPath := host.outputFilePath(e.config.ArtifactName)
	if artifactPath == "" {
		log.Printf("WARN: no output path for %s, artifact of %s not written", e.config.ArtifactName, comp.PkgPath())
		artifactPath = noArtifactPath
	} else if err := WriteFileAtomic(artifactPath, result.Artifact); err != nil {
		return comp, fmt.Errorf("%w: %s: %w", ErrArtifactWrite, artifactPath, err)
	}
	host.report(newDiagnostic(fmt.Sprintf(msgModifiedFormat, artifactPath)))
	return result.Compilation, nil
}
