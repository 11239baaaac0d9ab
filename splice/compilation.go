package splice

import (
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"slices"
)

// ErrUnitNotFound indicates a unit does not belong to the compilation it was looked up in.
var ErrUnitNotFound = errors.New("unit not part of compilation")

// Unit is one parsed source file of a Compilation.
type Unit struct {
	// Filename is the name the file was parsed under, line directives refer back to it.
	Filename string
	// Src is the exact text File was parsed from.
	Src []byte
	// File is the parsed syntax tree.
	File *ast.File
}

// SourceFile is an unparsed file provided to ParseCompilation.
type SourceFile struct {
	Filename string
	Src      []byte
}

// Compilation is a type-checked package. It is never modified after construction, rewrites produce a new
// Compilation through ReplaceUnit. Units, files and type information must be treated as read-only.
type Compilation struct {
	fset       *token.FileSet
	pkgPath    string
	units      []*Unit
	pkg        *types.Package
	info       *types.Info
	typeErrors []error
	importer   types.Importer
}

// ParseCompilation parses and type-checks the given files as a single package. The importer defaults to
// importer.Default when nil. Type errors are collected rather than returned, see TypeErrors.
func ParseCompilation(fset *token.FileSet, pkgPath string, imp types.Importer, files ...SourceFile) (*Compilation, error) {
	if len(files) == 0 {
		return nil, errors.New("no source files provided")
	}
	units := make([]*Unit, len(files))
	for i, f := range files {
		fileNode, err := parser.ParseFile(fset, f.Filename, f.Src, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("ast parse failure %s: %w", f.Filename, err)
		}
		units[i] = &Unit{Filename: f.Filename, Src: f.Src, File: fileNode}
	}
	return NewCompilation(fset, pkgPath, imp, units)
}

// NewCompilation type-checks already parsed units. All units must have been parsed into fset.
func NewCompilation(fset *token.FileSet, pkgPath string, imp types.Importer, units []*Unit) (*Compilation, error) {
	if len(units) == 0 {
		return nil, errors.New("no units provided")
	}
	if imp == nil {
		imp = importer.Default()
	}
	c := &Compilation{
		fset:     fset,
		pkgPath:  pkgPath,
		units:    slices.Clone(units),
		importer: imp,
	}
	c.check()
	return c, nil
}

// newCheckedCompilation wraps a package that was already type-checked by the loader.
func newCheckedCompilation(fset *token.FileSet, pkgPath string, imp types.Importer, units []*Unit,
	pkg *types.Package, info *types.Info, typeErrors []error) *Compilation {
	return &Compilation{
		fset:       fset,
		pkgPath:    pkgPath,
		units:      units,
		pkg:        pkg,
		info:       info,
		typeErrors: typeErrors,
		importer:   imp,
	}
}

func (c *Compilation) check() {
	files := make([]*ast.File, len(c.units))
	for i, u := range c.units {
		files[i] = u.File
	}
	info := &types.Info{
		Types:     make(map[ast.Expr]types.TypeAndValue),
		Defs:      make(map[*ast.Ident]types.Object),
		Uses:      make(map[*ast.Ident]types.Object),
		Instances: make(map[*ast.Ident]types.Instance),
	}
	var typeErrors []error
	conf := types.Config{
		Importer: c.importer,
		Error: func(err error) {
			typeErrors = append(typeErrors, err)
		},
	}
	pkgPath := c.pkgPath
	if pkgPath == "" {
		pkgPath = files[0].Name.Name
	}
	// an error is also recorded through conf.Error, the partial package is still usable for lookups
	pkg, _ := conf.Check(pkgPath, c.fset, files, info)
	c.pkg = pkg
	c.info = info
	c.typeErrors = typeErrors
}

// Fset returns the file set shared by every unit, including units installed by later rewrites.
func (c *Compilation) Fset() *token.FileSet {
	return c.fset
}

// PkgPath returns the import path of the package.
func (c *Compilation) PkgPath() string {
	if c.pkgPath == "" && c.pkg != nil {
		return c.pkg.Path()
	}
	return c.pkgPath
}

// Units returns the units in compilation order.
func (c *Compilation) Units() []*Unit {
	return slices.Clone(c.units)
}

// Unit returns the unit parsed under filename, or nil.
func (c *Compilation) Unit(filename string) *Unit {
	for _, u := range c.units {
		if u.Filename == filename {
			return u
		}
	}
	return nil
}

// Types returns the package type information.
func (c *Compilation) Types() *types.Package {
	return c.pkg
}

// Info returns the resolved identifiers and expression types.
func (c *Compilation) Info() *types.Info {
	return c.info
}

// TypeErrors returns errors found while type-checking.
func (c *Compilation) TypeErrors() []error {
	return slices.Clone(c.typeErrors)
}

// unitIndexAt returns the index of the unit containing pos, or -1.
func (c *Compilation) unitIndexAt(pos token.Pos) int {
	for i, u := range c.units {
		if u.File.FileStart <= pos && pos <= u.File.FileEnd {
			return i
		}
	}
	return -1
}

// ReplaceUnit returns a new Compilation with old swapped for repl and the package type-checked again.
// The receiver is left unchanged.
func (c *Compilation) ReplaceUnit(old, repl *Unit) (*Compilation, error) {
	i := slices.Index(c.units, old)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, old.Filename)
	} else if repl == nil || repl.File == nil {
		return nil, fmt.Errorf("replacement for %s has no syntax tree", old.Filename)
	}
	next := &Compilation{
		fset:     c.fset,
		pkgPath:  c.PkgPath(),
		units:    slices.Clone(c.units),
		importer: c.importer,
	}
	next.units[i] = repl
	next.check()
	return next, nil
}

// ChangedUnits lists the unit pairs that differ between two compilations of the same package.
func ChangedUnits(before, after *Compilation) [][2]*Unit {
	var changed [][2]*Unit
	for _, u := range after.units {
		prior := before.Unit(u.Filename)
		if prior != u {
			changed = append(changed, [2]*Unit{prior, u})
		}
	}
	return changed
}
