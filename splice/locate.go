package splice

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"slices"

	"golang.org/x/tools/go/ast/astutil"
)

// DefaultEntryName is the entry procedure of a Go program. It is only resolved within package main.
const DefaultEntryName = "main"

// ErrEntryNotFound indicates the compilation does not define a usable entry procedure.
var ErrEntryNotFound = errors.New("main entry point not found")

// DeclSite is one declaration of the entry object.
type DeclSite struct {
	Unit  *Unit
	Ident *ast.Ident
	// Decl is the declaring *ast.FuncDecl, or the *ast.ValueSpec of a func valued package variable.
	Decl ast.Node
}

// EntryPoint is the resolved entry procedure.
type EntryPoint struct {
	Name   string
	Object types.Object
	// Sites lists candidate declaration sites ordered by unit then source position.
	Sites []DeclSite
}

// Site returns the authoritative declaration site.
func (e *EntryPoint) Site() DeclSite {
	return e.Sites[0]
}

// FindEntryPoint resolves the package level entry procedure called name (DefaultEntryName when empty).
// The entry must be a function, or a variable of type func(), taking no parameters and returning nothing.
// Cancellation is only observed here, before any rewriting begins.
func FindEntryPoint(ctx context.Context, comp *Compilation, name string) (*EntryPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultEntryName
	}
	pkg := comp.Types()
	if pkg == nil || comp.Info() == nil {
		return nil, fmt.Errorf("%w: %s has no type information", ErrEntryNotFound, comp.PkgPath())
	} else if name == DefaultEntryName && pkg.Name() != "main" {
		return nil, fmt.Errorf("%w: package %s is not a main package", ErrEntryNotFound, pkg.Path())
	}
	obj := pkg.Scope().Lookup(name)
	if obj == nil {
		return nil, fmt.Errorf("%w: %s is not declared in %s", ErrEntryNotFound, name, pkg.Path())
	} else if !isEntrySignature(obj) {
		return nil, fmt.Errorf("%w: %s has type %s, expected func()", ErrEntryNotFound, name, obj.Type())
	}

	sites, err := declarationSites(ctx, comp, obj)
	if err != nil {
		return nil, err
	} else if len(sites) == 0 {
		return nil, fmt.Errorf("%w: no declaration of %s in %s", ErrEntryNotFound, name, pkg.Path())
	}
	return &EntryPoint{
		Name:   name,
		Object: obj,
		Sites:  sites,
	}, nil
}

func isEntrySignature(obj types.Object) bool {
	var sig *types.Signature
	switch obj := obj.(type) {
	case *types.Func:
		sig, _ = obj.Type().(*types.Signature)
	case *types.Var:
		sig, _ = obj.Type().Underlying().(*types.Signature)
	}
	return sig != nil && sig.Recv() == nil && sig.TypeParams().Len() == 0 &&
		sig.Params().Len() == 0 && sig.Results().Len() == 0
}

// declarationSites finds every identifier defining obj. Defs is a map so the result is sorted to keep the
// first site stable across runs.
func declarationSites(ctx context.Context, comp *Compilation, obj types.Object) ([]DeclSite, error) {
	type positioned struct {
		unit int
		site DeclSite
	}
	units := comp.Units()
	var found []positioned
	for ident, def := range comp.Info().Defs {
		if def != obj {
			continue
		}
		idx := comp.unitIndexAt(ident.Pos())
		if idx < 0 {
			continue // identifier from a file outside of this compilation
		}
		decl := enclosingDecl(units[idx].File, ident.Pos())
		if decl == nil {
			continue
		}
		found = append(found, positioned{
			unit: idx,
			site: DeclSite{Unit: units[idx], Ident: ident, Decl: decl},
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(found, func(a, b positioned) int {
		if a.unit != b.unit {
			return a.unit - b.unit
		}
		return int(a.site.Ident.Pos() - b.site.Ident.Pos())
	})
	sites := make([]DeclSite, len(found))
	for i, p := range found {
		sites[i] = p.site
	}
	return sites, nil
}

// enclosingDecl returns the function declaration or value spec the identifier at pos declares.
func enclosingDecl(file *ast.File, pos token.Pos) ast.Node {
	path, _ := astutil.PathEnclosingInterval(file, pos, pos)
	for _, n := range path {
		switch n := n.(type) {
		case *ast.FuncDecl:
			if n.Recv == nil {
				return n
			}
			return nil
		case *ast.ValueSpec:
			return n
		case *ast.FuncLit, *ast.BlockStmt:
			return nil // local declaration
		}
	}
	return nil
}
