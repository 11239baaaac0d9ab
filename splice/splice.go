package splice

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"path"
	"strconv"
	"strings"
)

const aliasPrefix = "_entrysplice_"

// SyntheticCall describes the injected call, `Alias.Func("Message")`, or `Func("Message")` for builtins.
type SyntheticCall struct {
	// ImportPath of the package declaring Func, empty for builtins such as println.
	ImportPath string
	// Alias is the import name used by the injected statement.
	Alias   string
	Func    string
	Message string
}

// DefaultSyntheticCall prints a greeting with fmt.Println.
func DefaultSyntheticCall() SyntheticCall {
	return SyntheticCall{
		ImportPath: "fmt",
		Alias:      aliasPrefix + "fmt",
		Func:       "Println",
		Message:    "Hello World from entrysplice!",
	}
}

// ParseSyntheticCall parses a qualified function such as "fmt.Println", "example.com/log.Info" or "println".
func ParseSyntheticCall(qualified, message string) (SyntheticCall, error) {
	qualified = strings.TrimSpace(qualified)
	if qualified == "" {
		return SyntheticCall{}, errors.New("call must not be empty")
	}
	call := SyntheticCall{Message: message}
	if i := strings.LastIndex(qualified, "."); i < 0 {
		call.Func = qualified
	} else if slash := strings.LastIndex(qualified, "/"); slash > i {
		return SyntheticCall{}, fmt.Errorf("call %q has no function name", qualified)
	} else {
		call.ImportPath, call.Func = qualified[:i], qualified[i+1:]
		call.Alias = aliasPrefix + importAliasSuffix(call.ImportPath)
	}
	if !token.IsIdentifier(call.Func) {
		return SyntheticCall{}, fmt.Errorf("call %q: %q is not a valid function name", qualified, call.Func)
	} else if call.ImportPath != "" && !token.IsExported(call.Func) {
		return SyntheticCall{}, fmt.Errorf("call %q: %s is not exported", qualified, call.Func)
	}
	return call, nil
}

func importAliasSuffix(importPath string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, path.Base(importPath))
}

// BuildSyntheticStmt builds the call statement for call.
func BuildSyntheticStmt(call SyntheticCall) *ast.ExprStmt {
	var fun ast.Expr = ast.NewIdent(call.Func)
	if call.ImportPath != "" {
		fun = &ast.SelectorExpr{X: ast.NewIdent(call.Alias), Sel: ast.NewIdent(call.Func)}
	}
	return &ast.ExprStmt{X: &ast.CallExpr{
		Fun:  fun,
		Args: []ast.Expr{&ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(call.Message)}},
	}}
}

// Decorated attaches line markers to a statement without touching the statement itself.
type Decorated struct {
	Leading  []LineMarker
	Node     ast.Stmt
	Trailing []LineMarker
	// Indent prefixes the rendered statement.
	Indent string
	// BreakBefore starts the rendering on a new line, markers must begin a line.
	BreakBefore bool
}

// Render formats only the decorated node and surrounds it with its markers, one per line. The output ends with
// a newline so the text that follows starts the line the trailing marker describes.
func (d Decorated) Render() ([]byte, error) {
	var buf bytes.Buffer
	if d.BreakBefore {
		buf.WriteByte('\n')
	}
	for _, m := range d.Leading {
		buf.WriteString(m.Directive())
		buf.WriteByte('\n')
	}
	buf.WriteString(d.Indent)
	if err := format.Node(&buf, token.NewFileSet(), d.Node); err != nil {
		return nil, fmt.Errorf("format synthetic statement: %w", err)
	}
	buf.WriteByte('\n')
	for _, m := range d.Trailing {
		buf.WriteString(m.Directive())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// SplicedBody is a Body with the synthetic statement prepended.
type SplicedBody struct {
	Body      *Body
	Mapping   LineMapping
	Call      SyntheticCall
	Synthetic Decorated
	// Stmts is the resulting statement list, the synthetic statement first.
	Stmts []ast.Stmt
}

// Splice builds the decorated synthetic statement and prepends it to the statements of body.
func Splice(body *Body, mapping LineMapping, call SyntheticCall) *SplicedBody {
	stmt := BuildSyntheticStmt(call)
	stmts := make([]ast.Stmt, 0, len(body.Stmts)+1)
	stmts = append(stmts, stmt)
	stmts = append(stmts, body.Stmts...)
	return &SplicedBody{
		Body:    body,
		Mapping: mapping,
		Call:    call,
		Synthetic: Decorated{
			Leading:     mapping.Leading(),
			Node:        stmt,
			Trailing:    mapping.Trailing(),
			Indent:      mapping.Indent,
			BreakBefore: !mapping.LineStart,
		},
		Stmts: stmts,
	}
}
