package splice

import (
	"context"
	"errors"
	"fmt"
	"go/importer"
	"go/types"
	"log"
	"os"
	"path/filepath"

	"github.com/go-analyze/bulk"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax |
	packages.NeedImports | packages.NeedDeps | packages.NeedTypes | packages.NeedTypesInfo

// LoadCompilations loads the packages matching patterns within dir. When mainOnly is set only packages named main
// are returned.
func LoadCompilations(ctx context.Context, dir string, mainOnly bool, patterns ...string) ([]*Compilation, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    loadMode,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, err
	} else if packages.PrintErrors(pkgs) > 0 {
		return nil, errors.New("project packages contain errors")
	}
	if mainOnly {
		pkgs = bulk.SliceFilter(func(p *packages.Package) bool {
			return p.Name == "main"
		}, pkgs)
	}

	comps := make([]*Compilation, 0, len(pkgs))
	for _, p := range pkgs {
		comp, err := compilationFromPackage(p)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

func compilationFromPackage(p *packages.Package) (*Compilation, error) {
	if p.Types == nil || p.TypesInfo == nil {
		return nil, fmt.Errorf("package %s has no type information", p.PkgPath)
	}
	units := make([]*Unit, 0, len(p.Syntax))
	for _, f := range p.Syntax {
		filename := p.Fset.File(f.Pos()).Name()
		src, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read failure %s: %w", filename, err)
		}
		units = append(units, &Unit{Filename: filename, Src: src, File: f})
	}
	var typeErrors []error
	for _, te := range p.TypeErrors {
		typeErrors = append(typeErrors, te)
	}
	return newCheckedCompilation(p.Fset, p.PkgPath, packageImporter(p), units, p.Types, p.TypesInfo, typeErrors), nil
}

// packageImporter resolves imports from the already loaded dependencies, falling back to export data for
// packages introduced by a rewrite.
func packageImporter(p *packages.Package) types.Importer {
	fallback := importer.Default()
	return importerFunc(func(path string) (*types.Package, error) {
		if dep, ok := p.Imports[path]; ok && dep.Types != nil {
			return dep.Types, nil
		}
		return fallback.Import(path)
	})
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) {
	return f(path)
}

// ModulePath returns the module path declared in dir/go.mod, or an empty string when dir is not a module root.
func ModulePath(dir string) (string, error) {
	gomodPath := filepath.Join(dir, "go.mod")
	if !FileExists(gomodPath) {
		return "", nil
	}
	data, err := os.ReadFile(gomodPath)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", gomodPath, err)
	}
	modPath := modfile.ModulePath(data)
	if modPath == "" {
		log.Printf("WARN: %s does not declare a module path", gomodPath)
	}
	return modPath, nil
}
