package splice

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestModule creates a module with one main package and one library package.
func writeTestModule(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"go.mod":           "module example.com/tool\n\ngo 1.22\n",
		"cmd/tool/main.go": "package main\n\nimport \"example.com/tool/lib\"\n\nfunc main() {\n\tlib.Run()\n}\n",
		"lib/lib.go":       "package lib\n\nfunc Run() {}\n",
	}
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func TestRunOptionsPrepare(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		dir := writeTestModule(t)
		opts := &RunOptions{ProjectDir: dir}

		require.NoError(t, opts.Prepare())

		assert.Equal(t, dir, opts.AbsProjDir)
		assert.Equal(t, "example.com/tool", opts.ModulePath)
		assert.Equal(t, []string{"./..."}, opts.Patterns)
		assert.Equal(t, filepath.Join(dir, "_entrysplice"), opts.OutDir)
		assert.Equal(t, DefaultSyntheticCall(), opts.Call)
		assert.Empty(t, opts.OverlayFile)
		assert.Equal(t, DefaultConfig(), opts.EngineConfig())

		assert.Error(t, opts.Prepare()) // only once
	})

	t.Run("custom_call", func(t *testing.T) {
		opts := &RunOptions{
			ProjectDir: t.TempDir(),
			EntryName:  "Main",
			CallFlag:   "log.Print",
			Message:    "boot",
			Verify:     true,
		}

		require.NoError(t, opts.Prepare())

		assert.Equal(t, SyntheticCall{ImportPath: "log", Alias: "_entrysplice_log", Func: "Print", Message: "boot"}, opts.Call)
		assert.Equal(t, filepath.Join(opts.OutDir, "overlay.json"), opts.OverlayFile)
		assert.Empty(t, opts.ModulePath)
		config := opts.EngineConfig()
		assert.Equal(t, "Main", config.EntryName)
		assert.Equal(t, opts.Call, config.Call)
	})

	t.Run("default_call_message", func(t *testing.T) {
		opts := &RunOptions{ProjectDir: t.TempDir(), Message: "custom"}

		require.NoError(t, opts.Prepare())
		assert.Equal(t, "fmt", opts.Call.ImportPath)
		assert.Equal(t, "custom", opts.Call.Message)
	})

	t.Run("out_dir_outside_project", func(t *testing.T) {
		out := t.TempDir()
		opts := &RunOptions{ProjectDir: t.TempDir(), OutDir: out}

		require.NoError(t, opts.Prepare())
		assert.Equal(t, out, opts.OutDir)
	})

	errCases := []struct {
		name string
		opts func(t *testing.T) *RunOptions
	}{
		{
			name: "missing_project",
			opts: func(t *testing.T) *RunOptions { return &RunOptions{} },
		},
		{
			name: "project_not_found",
			opts: func(t *testing.T) *RunOptions {
				return &RunOptions{ProjectDir: filepath.Join(t.TempDir(), "missing")}
			},
		},
		{
			name: "project_is_file",
			opts: func(t *testing.T) *RunOptions {
				file := filepath.Join(t.TempDir(), "go.mod")
				require.NoError(t, os.WriteFile(file, nil, 0o644))
				return &RunOptions{ProjectDir: file}
			},
		},
		{
			name: "out_dir_built_by_project",
			opts: func(t *testing.T) *RunOptions {
				dir := t.TempDir()
				return &RunOptions{ProjectDir: dir, OutDir: filepath.Join(dir, "generated")}
			},
		},
		{
			name: "out_dir_is_project",
			opts: func(t *testing.T) *RunOptions {
				dir := t.TempDir()
				return &RunOptions{ProjectDir: dir, OutDir: dir}
			},
		},
		{
			name: "invalid_call",
			opts: func(t *testing.T) *RunOptions {
				return &RunOptions{ProjectDir: t.TempDir(), CallFlag: "fmt.println"}
			},
		},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opts(t).Prepare())
		})
	}
}

func TestModulePath(t *testing.T) {
	t.Parallel()

	modPath, err := ModulePath(writeTestModule(t))
	require.NoError(t, err)
	assert.Equal(t, "example.com/tool", modPath)

	modPath, err = ModulePath(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, modPath)
}

func TestLoadCompilations(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	t.Parallel()
	dir := writeTestModule(t)

	all, err := LoadCompilations(context.Background(), dir, false, "./...")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	comps, err := LoadCompilations(context.Background(), dir, true, "./...")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	comp := comps[0]
	assert.Equal(t, "example.com/tool/cmd/tool", comp.PkgPath())
	require.Len(t, comp.Units(), 1)
	assert.Equal(t, filepath.Join(dir, "cmd", "tool", "main.go"), comp.Units()[0].Filename)

	entry, err := FindEntryPoint(context.Background(), comp, "")
	require.NoError(t, err)
	assert.Equal(t, 5, LineOf(comp.Fset(), entry.Site().Ident))
}

func TestLoadCompilationsErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	t.Parallel()
	dir := writeTestModule(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "broken.go"), []byte("package lib\n\nfunc Broken() { undefined() }\n"), 0o644))

	_, err := LoadCompilations(context.Background(), dir, true, "./...")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("loads and builds packages with the go command")
	}
	t.Parallel()
	dir := writeTestModule(t)
	reportPath := filepath.Join(t.TempDir(), "report.json.zst")
	opts := &RunOptions{
		ProjectDir: dir,
		Verify:     true,
		ReportFile: reportPath,
	}

	require.NoError(t, Run(context.Background(), opts))

	artifact := filepath.Join(dir, "_entrysplice", "example_com_tool_cmd_tool.NewMain.go")
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Contains(t, string(data), "//line "+filepath.Join(dir, "cmd", "tool", "main.go")+":6:1\n\tlib.Run()")

	overlayData, err := os.ReadFile(opts.OverlayFile)
	require.NoError(t, err)
	var overlay overlayJSON
	require.NoError(t, json.Unmarshal(overlayData, &overlay))
	assert.Equal(t, artifact, overlay.Replace[filepath.Join(dir, "cmd", "tool", "main.go")])

	report, err := ReadReportFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "example.com/tool", report.Module)
	require.Len(t, report.Packages, 1)
	assert.True(t, report.Packages[0].Rewritten)

	original, err := os.ReadFile(filepath.Join(dir, "cmd", "tool", "main.go"))
	require.NoError(t, err)
	assert.NotContains(t, string(original), "_entrysplice") // project sources are never modified
}

func TestRunNoMainPackages(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	t.Parallel()
	dir := writeTestModule(t)

	err := Run(context.Background(), &RunOptions{ProjectDir: dir, Patterns: []string{"./lib"}})
	assert.ErrorContains(t, err, "no main packages")
}
