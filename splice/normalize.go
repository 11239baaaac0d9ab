package splice

import (
	"errors"
	"fmt"
	"go/ast"
	"go/types"
)

// ErrEntryBodyMissing indicates the entry procedure has no body that statements can be spliced into.
var ErrEntryBodyMissing = errors.New("main entry point empty")

// BodyForm describes how the entry body was written.
type BodyForm int

const (
	// BlockForm is a statement list: `func main() { ... }` or `var Main = func() { ... }`.
	BlockForm BodyForm = iota
	// ExpressionForm is a variable bound to a function reference: `var Main = run`.
	ExpressionForm
)

func (f BodyForm) String() string {
	switch f {
	case BlockForm:
		return "block"
	case ExpressionForm:
		return "expression"
	default:
		return fmt.Sprintf("BodyForm(%d)", int(f))
	}
}

// Body is the block-form view of an entry body.
type Body struct {
	Form BodyForm
	Site DeclSite
	// Stmts is the normalized statement list. For ExpressionForm it is the single call wrapping Expr.
	Stmts []ast.Stmt
	// Anchor is the original node the first statement starts at, nil when the block is empty.
	Anchor ast.Node
	// Block is the original block, nil for ExpressionForm.
	Block *ast.BlockStmt
	// Expr is the original bound expression, nil for BlockForm.
	Expr ast.Expr
}

// NormalizeBody converts the declaration at site into a block-form Body. Nothing in the tree is modified.
// info is used to confirm that expression bodies reference declared functions, it may be nil.
func NormalizeBody(info *types.Info, site DeclSite) (*Body, error) {
	switch decl := site.Decl.(type) {
	case *ast.FuncDecl:
		if decl.Body == nil {
			return nil, fmt.Errorf("%w: func %s has no body", ErrEntryBodyMissing, decl.Name.Name)
		}
		return blockBody(site, decl.Body), nil
	case *ast.ValueSpec:
		value := specValue(decl, site.Ident)
		if value == nil {
			return nil, fmt.Errorf("%w: %s is declared without a value", ErrEntryBodyMissing, site.Ident.Name)
		} else if lit, ok := ast.Unparen(value).(*ast.FuncLit); ok {
			return blockBody(site, lit.Body), nil
		} else if !isStaticFuncRef(info, value) {
			return nil, fmt.Errorf("%w: %s is bound to a %T, not a function reference",
				ErrEntryBodyMissing, site.Ident.Name, ast.Unparen(value))
		}
		stmt := &ast.ExprStmt{X: &ast.CallExpr{Fun: value}}
		return &Body{
			Form:   ExpressionForm,
			Site:   site,
			Stmts:  []ast.Stmt{stmt},
			Anchor: value,
			Expr:   value,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported declaration %T", ErrEntryBodyMissing, site.Decl)
	}
}

func blockBody(site DeclSite, block *ast.BlockStmt) *Body {
	body := &Body{
		Form:  BlockForm,
		Site:  site,
		Stmts: block.List,
		Block: block,
	}
	if len(block.List) > 0 {
		body.Anchor = block.List[0]
	}
	return body
}

// specValue returns the value bound to ident, nil when the spec has none or assigns from a multi-value call.
func specValue(spec *ast.ValueSpec, ident *ast.Ident) ast.Expr {
	if len(spec.Values) != len(spec.Names) {
		return nil
	}
	for i, name := range spec.Names {
		if name == ident {
			return spec.Values[i]
		}
	}
	return nil
}

// isStaticFuncRef reports whether e names a declared function without evaluating anything. Wrapping other
// expressions in a literal would move their evaluation from package initialization to each call.
func isStaticFuncRef(info *types.Info, e ast.Expr) bool {
	var ident *ast.Ident
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		ident = e
	case *ast.SelectorExpr:
		pkgIdent, ok := e.X.(*ast.Ident)
		if !ok {
			return false
		} else if info != nil {
			if _, ok := info.Uses[pkgIdent].(*types.PkgName); !ok {
				return false // method value or field, bound at initialization
			}
		}
		ident = e.Sel
	case *ast.IndexExpr:
		return info != nil && isGenericInstance(info, e.X) && isStaticFuncRef(info, e.X)
	case *ast.IndexListExpr:
		return info != nil && isGenericInstance(info, e.X) && isStaticFuncRef(info, e.X)
	default:
		return false
	}
	if info == nil {
		return true
	}
	_, ok := info.Uses[ident].(*types.Func)
	return ok
}

func isGenericInstance(info *types.Info, e ast.Expr) bool {
	var ident *ast.Ident
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		ident = e
	case *ast.SelectorExpr:
		ident = e.Sel
	default:
		return false
	}
	_, ok := info.Instances[ident]
	return ok
}
