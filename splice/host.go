package splice

import (
	"context"
	"fmt"
)

// Diagnostic identity shared by every message of the engine.
const (
	DiagnosticID       = "ES0001"
	DiagnosticCategory = "EntrySplice"
)

// Diagnostic messages.
const (
	MsgEntryNotFound  = "Main entry point not found"
	MsgEntryEmpty     = "Main entry point empty"
	msgModifiedFormat = "Main method successfully modified by the plugin (see modified file at: %s)"
	noArtifactPath    = "<not written>"
)

// Severity of a Diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Diagnostic is a message reported to the host.
type Diagnostic struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.ID, d.Severity, d.Message)
}

func newDiagnostic(msg string) Diagnostic {
	return Diagnostic{
		ID:       DiagnosticID,
		Category: DiagnosticCategory,
		Severity: SeverityWarning,
		Message:  msg,
	}
}

// HostContext is what a host hands to a Rewriter.
type HostContext struct {
	Compilation *Compilation
	// Report receives diagnostics, it may be nil.
	Report func(Diagnostic)
	// OutputFilePath maps a logical artifact name to a file path. Nil or an empty result skips the artifact.
	OutputFilePath func(name string) string
}

func (h *HostContext) report(d Diagnostic) {
	if h.Report != nil {
		h.Report(d)
	}
}

func (h *HostContext) outputFilePath(name string) string {
	if h.OutputFilePath == nil {
		return ""
	}
	return h.OutputFilePath(name)
}

// Rewriter transforms the compilation of a host. It returns the compilation to continue with, which is the
// original one when nothing was rewritten.
type Rewriter interface {
	Rewrite(ctx context.Context, host *HostContext) (*Compilation, error)
}

// RewriterFunc adapts a function to a Rewriter.
type RewriterFunc func(ctx context.Context, host *HostContext) (*Compilation, error)

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(ctx context.Context, host *HostContext) (*Compilation, error) {
	return f(ctx, host)
}

type namedRewriter struct {
	name     string
	rewriter Rewriter
}

// Pipeline runs registered rewriters in registration order.
type Pipeline struct {
	steps []namedRewriter
}

// Register appends a rewriter to the pipeline.
func (p *Pipeline) Register(name string, r Rewriter) {
	p.steps = append(p.steps, namedRewriter{name: name, rewriter: r})
}

// Names lists the registered rewriters in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// Run passes comp through every rewriter, each one seeing the result of the previous. Diagnostics of all steps
// are returned in report order. On error the last good compilation is returned with the diagnostics so far.
func (p *Pipeline) Run(ctx context.Context, comp *Compilation, outputFilePath func(name string) string) (*Compilation, []Diagnostic, error) {
	var diags []Diagnostic
	host := &HostContext{
		Compilation:    comp,
		OutputFilePath: outputFilePath,
		Report: func(d Diagnostic) {
			diags = append(diags, d)
		},
	}
	for _, step := range p.steps {
		next, err := step.rewriter.Rewrite(ctx, host)
		if err != nil {
			return host.Compilation, diags, fmt.Errorf("rewriter %s: %w", step.name, err)
		} else if next != nil {
			host.Compilation = next
		}
	}
	return host.Compilation, diags, nil
}
