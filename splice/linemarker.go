package splice

import (
	"fmt"
	"go/ast"
	"go/token"
	"log"
	"path/filepath"
	"strings"
)

// hiddenFilename is the file name the runtime and debuggers treat as having no source.
const hiddenFilename = "<autogenerated>"

// MarkerKind selects the meaning of a LineMarker.
type MarkerKind int

const (
	// MarkerHidden marks the following physical lines as having no original source.
	MarkerHidden MarkerKind = iota
	// MarkerNumbered attributes the next physical line to Line (and Column) of Filename.
	MarkerNumbered
)

// LineMarker is a line directive decorating a node. Lines and columns are 1-based.
type LineMarker struct {
	Kind MarkerKind
	// Filename is written as is, relative names are resolved against the directory of the marked file.
	Filename string
	Line     int
	Column   int
}

// Directive renders the marker as a //line comment, which must start at the beginning of a line.
// See https://pkg.go.dev/cmd/compile#hdr-Line_Directives
func (m LineMarker) Directive() string {
	if m.Kind == MarkerHidden {
		return "//line " + hiddenFilename + ":1"
	} else if m.Column > 0 {
		return fmt.Sprintf("//line %s:%d:%d", m.Filename, m.Line, m.Column)
	}
	return fmt.Sprintf("//line %s:%d", m.Filename, m.Line)
}

// LineMapping holds the markers surrounding the synthetic statement and where it is inserted.
type LineMapping struct {
	// Hidden precedes the synthetic statement.
	Hidden LineMarker
	// Resume follows the synthetic statement and restores the original position of the text after it.
	Resume LineMarker
	// Insert is the original position the synthetic statement is placed before.
	Insert token.Pos
	// LineStart reports that only Indent precedes Insert on its line, so the statement can take over the
	// line start instead of breaking the line.
	LineStart bool
	Indent    string
	// BestEffort is set when no original position exists, Resume is then zero and not emitted.
	BestEffort bool
}

// Leading returns the markers emitted before the synthetic statement.
func (m LineMapping) Leading() []LineMarker {
	return []LineMarker{m.Hidden}
}

// Trailing returns the markers emitted after the synthetic statement.
func (m LineMapping) Trailing() []LineMarker {
	if m.BestEffort {
		return nil
	}
	return []LineMarker{m.Resume}
}

// SynthesizeLineMapping computes where the synthetic statement goes and the logical position that resumes after
// it. The resume position is the original position of the first byte following the insertion, so the anchor
// statement keeps its line and column. An empty block falls back to its closing brace. Without either position
// the mapping is best-effort: line 0 and no numbered marker.
func SynthesizeLineMapping(fset *token.FileSet, body *Body) LineMapping {
	mapping := LineMapping{
		Hidden: LineMarker{Kind: MarkerHidden, Filename: hiddenFilename, Line: 1},
		Resume: LineMarker{Kind: MarkerNumbered},
	}
	insert := anchorPos(body)
	tokFile := fset.File(insert)
	if !insert.IsValid() || tokFile == nil {
		mapping.BestEffort = true
		log.Printf("WARN: %s has no positioned statement, lines after the injected call are not remapped", entryName(body))
		return mapping
	}

	if body.Form == BlockForm && body.Site.Unit != nil {
		src := body.Site.Unit.Src
		line := tokFile.PositionFor(insert, false).Line
		start := tokFile.LineStart(line)
		startOff, insertOff := tokFile.Offset(start), tokFile.Offset(insert)
		if startOff <= insertOff && insertOff <= len(src) {
			prefix := string(src[startOff:insertOff])
			if strings.TrimLeft(prefix, " \t") == "" {
				insert = start
				mapping.LineStart = true
				mapping.Indent = prefix
			}
		}
	}

	pos := fset.PositionFor(insert, true)
	mapping.Insert = insert
	mapping.Resume = LineMarker{
		Kind:     MarkerNumbered,
		Filename: directiveFilename(tokFile.Name(), pos.Filename),
		Line:     pos.Line,
		Column:   pos.Column,
	}
	return mapping
}

func anchorPos(body *Body) token.Pos {
	if body.Anchor != nil {
		return body.Anchor.Pos()
	} else if body.Block != nil {
		return body.Block.Rbrace
	}
	return token.NoPos
}

func entryName(body *Body) string {
	if body.Site.Ident != nil {
		return body.Site.Ident.Name
	}
	return "entry"
}

// directiveFilename returns the name to write in a line directive of the file physical so that it reads back
// as logical. go/scanner joins relative directive names with the directory of the file being parsed.
func directiveFilename(physical, logical string) string {
	if filepath.Base(logical) == hiddenFilename {
		return hiddenFilename
	}
	dir := filepath.Dir(physical)
	if dir == "." || filepath.IsAbs(logical) {
		return logical
	} else if rel, err := filepath.Rel(dir, logical); err == nil {
		return rel
	}
	return logical
}

// PositionOf returns the logical position of node, honoring line directives. Positions inside hidden lines
// report the plain hidden file name regardless of the directory of their file.
func PositionOf(fset *token.FileSet, node ast.Node) token.Position {
	pos := fset.Position(node.Pos())
	if filepath.Base(pos.Filename) == hiddenFilename {
		pos.Filename = hiddenFilename
	}
	return pos
}

// LineOf returns the logical line of node, honoring line directives.
func LineOf(fset *token.FileSet, node ast.Node) int {
	return PositionOf(fset, node).Line
}
