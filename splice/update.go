package splice

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"log"
	"strconv"
)

// ErrRewriteInvalid indicates the spliced unit did not parse, the compilation is left unchanged.
var ErrRewriteInvalid = errors.New("rewritten unit is not valid Go")

// Rewrite describes one installed splice.
type Rewrite struct {
	Entry   string
	Form    BodyForm
	Old     *Unit
	New     *Unit
	Mapping LineMapping
	// StatementsBefore counts the normalized statements before splicing.
	StatementsBefore int
	StatementsAfter  int
}

// Text returns the full source of the rewritten unit.
func (r *Rewrite) Text() []byte {
	return r.New.Src
}

// UpdateCompilation renders spliced into the source of its unit, parses the result into a new tree and installs
// it into a new Compilation. On error the original compilation remains the only valid one.
func UpdateCompilation(comp *Compilation, spliced *SplicedBody) (*Compilation, *Rewrite, error) {
	body := spliced.Body
	old := body.Site.Unit
	if old == nil || comp.Unit(old.Filename) != old {
		return nil, nil, fmt.Errorf("%w: entry unit", ErrUnitNotFound)
	}
	tokFile := comp.Fset().File(old.File.Pos())
	if tokFile == nil {
		return nil, nil, fmt.Errorf("%s is not part of the compilation file set", old.Filename)
	} else if spliced.Mapping.BestEffort || !spliced.Mapping.Insert.IsValid() {
		return nil, nil, fmt.Errorf("%w: %s: entry %s has no source position to splice at",
			ErrEntryBodyMissing, old.Filename, entryName(body))
	}

	stmtText, err := spliced.Synthetic.Render()
	if err != nil {
		return nil, nil, err
	}
	buf := newEditBuffer(tokFile, old.Src)
	if call := spliced.Call; call.ImportPath != "" && !hasImport(old.File, call.ImportPath, call.Alias) {
		// same line as the package clause, no line shifts
		buf.Insert(old.File.Name.End(), "; import "+call.Alias+" "+strconv.Quote(call.ImportPath))
	}
	switch body.Form {
	case BlockForm:
		buf.Insert(spliced.Mapping.Insert, string(stmtText))
	case ExpressionForm:
		exprText := buf.Slice(body.Expr.Pos(), body.Expr.End())
		buf.Replace(body.Expr.Pos(), body.Expr.End(), "func() {"+string(stmtText)+string(exprText)+"() }")
	default:
		return nil, nil, fmt.Errorf("unsupported body form %v", body.Form)
	}
	text, err := buf.Bytes()
	if err != nil {
		return nil, nil, err
	}

	fileNode, err := parser.ParseFile(comp.Fset(), old.Filename, text, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRewriteInvalid, err)
	}
	repl := &Unit{Filename: old.Filename, Src: text, File: fileNode}
	next, err := comp.ReplaceUnit(old, repl)
	if err != nil {
		return nil, nil, err
	}
	if added := len(next.TypeErrors()) - len(comp.TypeErrors()); added > 0 {
		log.Printf("WARN: rewritten %s reports %d more type errors, first reported: %v", old.Filename, added, next.TypeErrors()[0])
	}
	return next, &Rewrite{
		Entry:            entryName(body),
		Form:             body.Form,
		Old:              old,
		New:              repl,
		Mapping:          spliced.Mapping,
		StatementsBefore: len(body.Stmts),
		StatementsAfter:  len(spliced.Stmts),
	}, nil
}

// hasImport reports whether file already imports importPath under alias.
func hasImport(file *ast.File, importPath, alias string) bool {
	for _, spec := range file.Imports {
		if spec.Name == nil || spec.Name.Name != alias {
			continue
		}
		if p, err := strconv.Unquote(spec.Path.Value); err == nil && p == importPath {
			return true
		}
	}
	return false
}
