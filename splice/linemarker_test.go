package splice

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineMarkerDirective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		marker LineMarker
		want   string
	}{
		{
			name:   "hidden",
			marker: LineMarker{Kind: MarkerHidden, Filename: hiddenFilename, Line: 1},
			want:   "//line <autogenerated>:1",
		},
		{
			name:   "numbered_column",
			marker: LineMarker{Kind: MarkerNumbered, Filename: "main.go", Line: 5, Column: 2},
			want:   "//line main.go:5:2",
		},
		{
			name:   "numbered_line_only",
			marker: LineMarker{Kind: MarkerNumbered, Filename: "/src/app/main.go", Line: 12},
			want:   "//line /src/app/main.go:12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.marker.Directive())
		})
	}
}

func TestSynthesizeLineMapping(t *testing.T) {
	t.Parallel()

	t.Run("indented_statement", func(t *testing.T) {
		comp := parseTestCompilation(t, "", "main.go", "package main\n\nfunc main() {\n\tprintln(1)\n}\n")
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.False(t, mapping.BestEffort)
		assert.True(t, mapping.LineStart)
		assert.Equal(t, "\t", mapping.Indent)
		assert.Equal(t, LineMarker{Kind: MarkerNumbered, Filename: "main.go", Line: 4, Column: 1}, mapping.Resume)
		assert.Equal(t, MarkerHidden, mapping.Hidden.Kind)
		assert.Equal(t, 4, comp.Fset().Position(mapping.Insert).Line)
		assert.Equal(t, []LineMarker{mapping.Hidden}, mapping.Leading())
		assert.Equal(t, []LineMarker{mapping.Resume}, mapping.Trailing())
	})

	t.Run("same_line_statement", func(t *testing.T) {
		comp := parseTestCompilation(t, "", "main.go", "package main\n\nfunc main() { println(1) }\n")
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.False(t, mapping.LineStart)
		assert.Empty(t, mapping.Indent)
		assert.Equal(t, body.Anchor.Pos(), mapping.Insert)
		assert.Equal(t, LineMarker{Kind: MarkerNumbered, Filename: "main.go", Line: 3, Column: 15}, mapping.Resume)
	})

	t.Run("empty_block", func(t *testing.T) {
		comp := parseTestCompilation(t, "", "main.go", "package main\n\nfunc main() {\n}\n")
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.True(t, mapping.LineStart)
		assert.Equal(t, body.Block.Rbrace, mapping.Insert)
		assert.Equal(t, LineMarker{Kind: MarkerNumbered, Filename: "main.go", Line: 4, Column: 1}, mapping.Resume)
	})

	t.Run("empty_block_same_line", func(t *testing.T) {
		comp := parseTestCompilation(t, "", "main.go", "package main\n\nfunc main() {}\n")
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.False(t, mapping.LineStart)
		assert.Equal(t, LineMarker{Kind: MarkerNumbered, Filename: "main.go", Line: 3, Column: 14}, mapping.Resume)
	})

	t.Run("expression", func(t *testing.T) {
		comp := parseTestCompilation(t, "", "app.go", "package app\n\nfunc run() {}\n\nvar Main = run\n")
		body, err := normalizeTestEntry(t, comp, "Main")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.False(t, mapping.LineStart)
		assert.Equal(t, body.Expr.Pos(), mapping.Insert)
		assert.Equal(t, LineMarker{Kind: MarkerNumbered, Filename: "app.go", Line: 5, Column: 12}, mapping.Resume)
	})

	t.Run("existing_line_directive", func(t *testing.T) {
		src := "package main\n\n//line gen.go:100\nfunc main() {\n\tprintln(1)\n}\n"
		comp := parseTestCompilation(t, "", "main.go", src)
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.Equal(t, "gen.go", mapping.Resume.Filename)
		assert.Equal(t, 101, mapping.Resume.Line)
		assert.Equal(t, "//line gen.go:101", mapping.Resume.Directive())
	})

	t.Run("nested_unit", func(t *testing.T) {
		comp := parseTestCompilation(t, "", "cmd/app/main.go", "package main\n\nfunc main() {\n\tprintln(1)\n}\n")
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.Equal(t, "//line main.go:4:1", mapping.Resume.Directive())
	})

	t.Run("nested_unit_existing_directive", func(t *testing.T) {
		src := "package main\n\n//line ../gen/gen.go:100\nfunc main() {\n\tprintln(1)\n}\n"
		comp := parseTestCompilation(t, "", "cmd/app/main.go", src)
		body, err := normalizeTestEntry(t, comp, "")
		require.NoError(t, err)
		require.Equal(t, "cmd/gen/gen.go", comp.Fset().Position(body.Anchor.Pos()).Filename)

		mapping := SynthesizeLineMapping(comp.Fset(), body)

		assert.Equal(t, "//line ../gen/gen.go:101", mapping.Resume.Directive())
	})

	t.Run("best_effort", func(t *testing.T) {
		mapping := SynthesizeLineMapping(token.NewFileSet(), &Body{Form: BlockForm})

		assert.True(t, mapping.BestEffort)
		assert.Zero(t, mapping.Resume.Line)
		assert.False(t, mapping.Insert.IsValid())
		assert.Equal(t, []LineMarker{mapping.Hidden}, mapping.Leading())
		assert.Nil(t, mapping.Trailing())
	})
}

func TestLineOf(t *testing.T) {
	t.Parallel()
	comp := parseTestCompilation(t, "", "main.go", "package main\n\n//line gen.go:40\nfunc main() {\n\tprintln(1)\n}\n")
	body, err := normalizeTestEntry(t, comp, "")
	require.NoError(t, err)

	assert.Equal(t, 41, LineOf(comp.Fset(), body.Anchor))
	assert.Equal(t, 5, comp.Fset().PositionFor(body.Anchor.Pos(), false).Line)
}

func TestDirectiveFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		physical string
		logical  string
		want     string
	}{
		{"same_dir", "main.go", "main.go", "main.go"},
		{"nested", "cmd/app/main.go", "cmd/app/main.go", "main.go"},
		{"nested_other_file", "cmd/app/main.go", "cmd/gen/gen.go", "../gen/gen.go"},
		{"absolute", "/src/app/main.go", "/src/app/main.go", "/src/app/main.go"},
		{"hidden", "main.go", hiddenFilename, hiddenFilename},
		{"nested_hidden", "cmd/app/main.go", "cmd/app/" + hiddenFilename, hiddenFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, directiveFilename(tt.physical, tt.logical))
		})
	}
}

func TestPositionOf(t *testing.T) {
	t.Parallel()
	src := "package main\n\nfunc main() {\n//line <autogenerated>:1\n\tprintln(0)\n//line main.go:4:1\n\tprintln(1)\n}\n"
	comp := parseTestCompilation(t, "", "cmd/app/main.go", src)
	body, err := normalizeTestEntry(t, comp, "")
	require.NoError(t, err)
	require.Len(t, body.Stmts, 2)
	fset := comp.Fset()

	hidden := PositionOf(fset, body.Stmts[0])
	assert.Equal(t, hiddenFilename, hidden.Filename)
	assert.Equal(t, 1, hidden.Line)

	resumed := PositionOf(fset, body.Stmts[1])
	assert.Equal(t, "cmd/app/main.go", resumed.Filename)
	assert.Equal(t, 4, resumed.Line)
	assert.Equal(t, 2, resumed.Column)
	assert.Equal(t, 4, LineOf(fset, body.Stmts[1]))
}
