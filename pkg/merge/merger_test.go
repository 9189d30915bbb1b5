package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"amalgam/pkg/source"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = "/virtual"

// memReader serves files from memory and counts reads per path.
type memReader struct {
	files map[string]string
	reads map[string]int
}

func newMemReader(files map[string]string) *memReader {
	abs := make(map[string]string, len(files))
	for name, content := range files {
		abs[filepath.Join(root, name)] = content
	}
	return &memReader{files: abs, reads: make(map[string]int)}
}

func (r *memReader) ReadLines(_ context.Context, path string) ([]string, error) {
	r.reads[path]++
	content, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return source.SplitLines(content), nil
}

// header wraps body lines in a CPPCMB guard triple for name.
func header(name string, body ...string) string {
	id := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
	var b strings.Builder
	fmt.Fprintf(&b, "#ifndef CPPCMB_%s_HPP\n", id)
	fmt.Fprintf(&b, "#define CPPCMB_%s_HPP\n", id)
	for _, line := range body {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "#endif /* CPPCMB_%s_HPP */\n", id)
	return b.String()
}

func TestMerger_RoundTrip(t *testing.T) {
	reader := newMemReader(map[string]string{
		"top.h": "#ifndef TOP_HPP\n#define TOP_HPP\n#include <vector>\n#include \"a.h\"\n#endif /* TOP_HPP */\n",
		"a.h":   "#ifndef A_HPP\n#define A_HPP\nint x;\n#endif /* A_HPP */\n",
	})

	result, err := New(reader, "", nil).Merge(context.Background(), root, "top.h")
	require.NoError(t, err)

	assert.Equal(t, []string{"#include <vector>"}, result.SystemIncludes)
	assert.Equal(t, "int x;\n", result.Body)
}

func TestMerger_DepthFirstOrder(t *testing.T) {
	reader := newMemReader(map[string]string{
		"a.hpp": header("a.hpp", "a1", `#include "b.hpp"`, `#include "c.hpp"`, "a2"),
		"b.hpp": header("b.hpp", "b1", `#include "d.hpp"`, "b2"),
		"c.hpp": header("c.hpp", "c"),
		"d.hpp": header("d.hpp", "d"),
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")
	require.NoError(t, err)

	assert.Equal(t, "a1\nb1\nd\nb2\nc\na2\n", result.Body)
	want := []string{
		filepath.Join(root, "a.hpp"),
		filepath.Join(root, "b.hpp"),
		filepath.Join(root, "d.hpp"),
		filepath.Join(root, "c.hpp"),
	}
	if diff := cmp.Diff(want, result.Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
}

func TestMerger_Diamond(t *testing.T) {
	reader := newMemReader(map[string]string{
		"top.hpp": header("top.hpp", `#include "b.hpp"`, `#include "c.hpp"`),
		"b.hpp":   header("b.hpp", "b-before", `#include "d.hpp"`, "b-after"),
		"c.hpp":   header("c.hpp", "c-before", `#include "d.hpp"`, "c-after"),
		"d.hpp":   header("d.hpp", "struct d {};"),
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "top.hpp")
	require.NoError(t, err)

	assert.Equal(t, "b-before\nstruct d {};\nb-after\nc-before\nc-after\n", result.Body)
	assert.Equal(t, 1, strings.Count(result.Body, "struct d {};"))
	assert.Equal(t, 1, reader.reads[filepath.Join(root, "d.hpp")], "re-inclusion must not read the file again")
}

func TestMerger_GuardStripping(t *testing.T) {
	reader := newMemReader(map[string]string{
		"parser.hpp": "#ifndef CPPCMB_DETAIL_PARSER_HPP\n#define CPPCMB_DETAIL_PARSER_HPP\n\n#include \"result.hpp\"\nclass parser;\n\n#endif /* CPPCMB_DETAIL_PARSER_HPP */\n",
		"result.hpp": header("result.hpp", "class result;"),
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "parser.hpp")
	require.NoError(t, err)

	assert.Equal(t, "\nclass result;\nclass parser;\n\n", result.Body)
	for _, marker := range []string{"#ifndef", "#define CPPCMB_", "#endif", "#include"} {
		assert.NotContains(t, result.Body, marker)
	}
}

func TestMerger_IncludeHoisting(t *testing.T) {
	reader := newMemReader(map[string]string{
		"top.hpp": header("top.hpp", "#include <vector>", "#include  <memory>", `#include "a.hpp"`),
		"a.hpp":   header("a.hpp", "#include\t<vector>", "  #include <tuple>", "#include <memory>  "),
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "top.hpp")
	require.NoError(t, err)

	assert.Equal(t, []string{"#include <memory>", "#include <tuple>", "#include <vector>"}, result.SystemIncludes)
	assert.Equal(t, "", result.Body)
}

func TestMerger_LeadingMatterAndStalledDefine(t *testing.T) {
	reader := newMemReader(map[string]string{
		"a.hpp": "/* banner */\n\n#ifndef CPPCMB_A_HPP\n// stray\n#define CPPCMB_A_HPP\nbody\n#endif /* CPPCMB_A_HPP */\ntrailing\n",
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")
	require.NoError(t, err)
	assert.Equal(t, "body\n", result.Body)
}

func TestMerger_StopsAtGuardClose(t *testing.T) {
	reader := newMemReader(map[string]string{
		"a.hpp": header("a.hpp", "body") + "#include \"missing.hpp\"\n",
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")
	require.NoError(t, err)
	assert.Equal(t, "body\n", result.Body)
	assert.Zero(t, reader.reads[filepath.Join(root, "missing.hpp")])
}

func TestMerger_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wantPath  string
		wantState State
	}{
		{
			name:      "no guard at all",
			files:     map[string]string{"a.hpp": "int x;\n"},
			wantPath:  "a.hpp",
			wantState: Initial,
		},
		{
			name:      "guard of another file",
			files:     map[string]string{"a.hpp": header("b.hpp", "int x;")},
			wantPath:  "a.hpp",
			wantState: Initial,
		},
		{
			name:      "define does not match open",
			files:     map[string]string{"a.hpp": "#ifndef CPPCMB_X_A_HPP\n#define CPPCMB_A_HPP\n#endif /* CPPCMB_A_HPP */\n"},
			wantPath:  "a.hpp",
			wantState: Ifndef,
		},
		{
			name:      "missing guard close",
			files:     map[string]string{"a.hpp": "#ifndef CPPCMB_A_HPP\n#define CPPCMB_A_HPP\nint x;\n"},
			wantPath:  "a.hpp",
			wantState: Define,
		},
		{
			name: "malformed nested file aborts the merge",
			files: map[string]string{
				"a.hpp": header("a.hpp", `#include "b.hpp"`),
				"b.hpp": "#ifndef CPPCMB_B_HPP\n#define CPPCMB_B_HPP\nint y;\n#endif\n",
			},
			wantPath:  "b.hpp",
			wantState: Define,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(newMemReader(tt.files), "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")
			require.Error(t, err)

			var malformed *MalformedGuardError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, filepath.Join(root, tt.wantPath), malformed.Path)
			assert.Equal(t, tt.wantState, malformed.State)
			assert.Contains(t, err.Error(), tt.wantState.String())
		})
	}
}

func TestMerger_MissingInclude(t *testing.T) {
	reader := newMemReader(map[string]string{
		"a.hpp": header("a.hpp", `#include "gone.hpp"`),
	})

	_, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")
	require.Error(t, err)

	var missing *MissingIncludeError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, filepath.Join(root, "gone.hpp"), missing.Path)
	assert.Equal(t, filepath.Join(root, "a.hpp"), missing.IncludedFrom)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMerger_MissingRoot(t *testing.T) {
	_, err := New(newMemReader(nil), "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")

	var missing *MissingIncludeError
	require.True(t, errors.As(err, &missing))
	assert.Empty(t, missing.IncludedFrom)
}

func TestMerger_Cycle(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wantChain []string
	}{
		{
			name: "self include",
			files: map[string]string{
				"a.hpp": header("a.hpp", `#include "a.hpp"`),
			},
			wantChain: []string{"a.hpp", "a.hpp"},
		},
		{
			name: "two files",
			files: map[string]string{
				"a.hpp": header("a.hpp", `#include "b.hpp"`),
				"b.hpp": header("b.hpp", `#include "a.hpp"`),
			},
			wantChain: []string{"a.hpp", "b.hpp", "a.hpp"},
		},
		{
			name: "cycle below the root",
			files: map[string]string{
				"a.hpp": header("a.hpp", `#include "b.hpp"`),
				"b.hpp": header("b.hpp", `#include "c.hpp"`),
				"c.hpp": header("c.hpp", `#include "b.hpp"`),
			},
			wantChain: []string{"b.hpp", "c.hpp", "b.hpp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(newMemReader(tt.files), "CPPCMB", nil).Merge(context.Background(), root, "a.hpp")

			var cycle *CycleError
			require.True(t, errors.As(err, &cycle), "got %v", err)
			var want []string
			for _, name := range tt.wantChain {
				want = append(want, filepath.Join(root, name))
			}
			if diff := cmp.Diff(want, cycle.Chain); diff != "" {
				t.Errorf("Chain mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerger_ResolveSharesContext(t *testing.T) {
	reader := newMemReader(map[string]string{
		"a.hpp": header("a.hpp", "#include <utility>", "a"),
	})
	m := New(reader, "CPPCMB", nil)
	mc := NewContext()

	first, err := m.Resolve(context.Background(), mc, root, "a.hpp")
	require.NoError(t, err)
	second, err := m.Resolve(context.Background(), mc, root, "./a.hpp")
	require.NoError(t, err)

	assert.Equal(t, "a\n", first)
	assert.Equal(t, "", second)
	assert.True(t, mc.Processed(filepath.Join(root, "a.hpp")))
	assert.Equal(t, []string{"#include <utility>"}, mc.SystemIncludes())
	assert.Equal(t, 1, reader.reads[filepath.Join(root, "a.hpp")])
}

func TestMerger_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newMemReader(nil), "CPPCMB", nil).Merge(ctx, root, "a.hpp")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMerger_Tree(t *testing.T) {
	reader := newMemReader(map[string]string{
		"top.hpp": header("top.hpp", `#include "b.hpp"`, `#include "c.hpp"`),
		"b.hpp":   header("b.hpp", `#include "d.hpp"`),
		"c.hpp":   header("c.hpp", `#include "d.hpp"`),
		"d.hpp":   header("d.hpp", "d"),
	})

	result, err := New(reader, "CPPCMB", nil).Merge(context.Background(), root, "top.hpp")
	require.NoError(t, err)

	want := strings.Join([]string{
		"top.hpp",
		"├── b.hpp",
		"│   └── d.hpp",
		"└── c.hpp",
		"    └── d.hpp (merged above)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, RenderTree(result.Tree)); diff != "" {
		t.Errorf("RenderTree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "", RenderTree(nil))
}

func TestMerger_Store(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"cppcmb.hpp":        header("cppcmb.hpp", "#include <cstddef>", `#include "detail/reader.hpp"`, "namespace cppcmb {}"),
		"detail/reader.hpp": "#ifndef CPPCMB_DETAIL_READER_HPP\n#define CPPCMB_DETAIL_READER_HPP\n#include <cstddef>\n#include \"cppcmb.hpp\"\nclass reader;\n#endif /* CPPCMB_DETAIL_READER_HPP */\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	_, err := New(source.NewStore(nil), "CPPCMB", nil).Merge(context.Background(), dir, "cppcmb.hpp")
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle), "got %v", err)

	// Break the cycle and merge again.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "detail/reader.hpp"),
		[]byte(strings.Replace(files["detail/reader.hpp"], "#include \"cppcmb.hpp\"\n", "", 1)), 0644))

	result, err := New(source.NewStore(nil), "CPPCMB", nil).Merge(context.Background(), dir, "cppcmb.hpp")
	require.NoError(t, err)
	assert.Equal(t, "class reader;\nnamespace cppcmb {}\n", result.Body)
	assert.Equal(t, []string{"#include <cstddef>"}, result.SystemIncludes)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "INITIAL", Initial.String())
	assert.Equal(t, "G_IFNDEF", Ifndef.String())
	assert.Equal(t, "G_DEFINE", Define.String())
	assert.Equal(t, "G_ENDIF", Endif.String())
	assert.Equal(t, "State(9)", State(9).String())
}
