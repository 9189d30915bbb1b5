// File: pkg/merge/merger.go
package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"amalgam/pkg/classify"
	"amalgam/pkg/source"

	"go.uber.org/zap"
)

// Merger inlines local includes of a header tree, recursively.
type Merger struct {
	reader source.Reader
	prefix string // Include guard prefix, e.g. "CPPCMB".
	logger *zap.Logger
}

// New creates a Merger reading files through reader and expecting guards that
// start with prefix.
func New(reader source.Reader, prefix string, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		reader: reader,
		prefix: prefix,
		logger: logger,
	}
}

// Merge resolves the file name under root with a fresh Context.
func (m *Merger) Merge(ctx context.Context, root, name string) (*Result, error) {
	mc := NewContext()
	body, err := m.Resolve(ctx, mc, root, name)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Merged include graph",
		zap.String("root", name),
		zap.Int("fileCount", len(mc.order)),
		zap.Int("systemIncludeCount", len(mc.includes)))

	return &Result{
		Body:           body,
		SystemIncludes: mc.SystemIncludes(),
		Files:          mc.Files(),
		Tree:           mc.Tree(),
	}, nil
}

// Resolve returns the expanded body of the file name under root. Local includes
// are resolved against root as well. A file already merged in mc yields "" without
// being read again. The file is marked in progress before it is read, so a local
// include of a file still being resolved is reported as a *CycleError.
func (m *Merger) Resolve(ctx context.Context, mc *Context, root, name string) (string, error) {
	path, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path of %q: %w", name, err)
	}

	switch mc.processed[path] {
	case done:
		m.logger.Debug("Skipping already merged file", zap.String("path", path))
		mc.attach(&Node{Path: path, Name: name, Duplicate: true})
		return "", nil
	case inProgress:
		m.logger.Error("Include cycle detected", zap.String("path", path))
		return "", &CycleError{Chain: mc.chain(path)}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	includedFrom := ""
	if parent := mc.current(); parent != nil {
		includedFrom = parent.Path
	}

	mc.processed[path] = inProgress
	mc.order = append(mc.order, path)
	node := &Node{Path: path, Name: name}
	mc.attach(node)
	mc.stack = append(mc.stack, node)
	defer func() { mc.stack = mc.stack[:len(mc.stack)-1] }()

	lines, err := m.reader.ReadLines(ctx, path)
	if err != nil {
		m.logger.Error("Failed to read header",
			zap.String("path", path),
			zap.String("includedFrom", includedFrom),
			zap.Error(err))
		return "", &MissingIncludeError{Path: path, IncludedFrom: includedFrom, Err: err}
	}

	c := classify.New(m.prefix, path)
	var guard *classify.Triple
	var body strings.Builder
	state := Initial

scan:
	for _, line := range lines {
		v := c.Classify(line, guard)

		switch state {
		case Initial:
			if v.Kind == classify.GuardOpen {
				t := c.Triple(v.Middle)
				guard = &t
				state = Ifndef
			}
		case Ifndef:
			if v.Kind == classify.GuardDefine {
				state = Define
			}
		case Define:
			switch v.Kind {
			case classify.SystemInclude:
				mc.AddSystemInclude(v.Text)
			case classify.LocalInclude:
				text, err := m.Resolve(ctx, mc, root, v.Name)
				if err != nil {
					return "", err
				}
				body.WriteString(text)
			case classify.GuardClose:
				state = Endif
				break scan
			default:
				body.WriteString(line)
			}
		}
	}

	if state != Endif {
		m.logger.Error("Malformed include guard", zap.String("path", path), zap.Stringer("state", state))
		return "", &MalformedGuardError{Path: path, State: state}
	}

	mc.processed[path] = done
	m.logger.Debug("Resolved header", zap.String("path", path), zap.Int("bodyBytes", body.Len()))
	return body.String(), nil
}

// current returns the file being resolved, or nil at the top level.
func (c *Context) current() *Node {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// attach adds n under the file being resolved, or makes it the root.
func (c *Context) attach(n *Node) {
	if parent := c.current(); parent != nil {
		parent.Children = append(parent.Children, n)
		return
	}
	if c.root == nil {
		c.root = n
	}
}

// chain returns the paths from the in-progress file path down to the innermost
// file, closed with path again.
func (c *Context) chain(path string) []string {
	var out []string
	for _, n := range c.stack {
		if n.Path == path || len(out) > 0 {
			out = append(out, n.Path)
		}
	}
	return append(out, path)
}
