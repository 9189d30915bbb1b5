package merge

import (
	"fmt"
	"sort"
)

// State is the position of the per-file guard state machine.
type State int

const (
	Initial State = iota // Before the guard-open line.
	Ifndef               // Guard-open seen, waiting for guard-define.
	Define               // Inside the body.
	Endif                // Guard-close seen; terminal.
)

func (s State) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Ifndef:
		return "G_IFNDEF"
	case Define:
		return "G_DEFINE"
	case Endif:
		return "G_ENDIF"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type fileStatus int

const (
	inProgress fileStatus = iota + 1
	done
)

// Context is the state shared by every recursive call of one merge. It is not
// safe for concurrent use.
type Context struct {
	processed map[string]fileStatus // Absolute path -> status. Entries are never removed.
	includes  map[string]struct{}   // Normalized system include directives.
	order     []string              // Absolute paths in first-discovery order.
	stack     []*Node               // Files currently being resolved, innermost last.
	root      *Node
}

// NewContext returns an empty merge context.
func NewContext() *Context {
	return &Context{
		processed: make(map[string]fileStatus),
		includes:  make(map[string]struct{}),
	}
}

// Processed reports whether path has been fully merged.
func (c *Context) Processed(path string) bool {
	return c.processed[path] == done
}

// AddSystemInclude records a normalized system include directive.
func (c *Context) AddSystemInclude(text string) {
	c.includes[text] = struct{}{}
}

// SystemIncludes returns the recorded system includes, sorted.
func (c *Context) SystemIncludes() []string {
	out := make([]string, 0, len(c.includes))
	for inc := range c.includes {
		out = append(out, inc)
	}
	sort.Strings(out)
	return out
}

// Files returns the absolute paths of merged files in first-discovery order.
func (c *Context) Files() []string {
	return append([]string(nil), c.order...)
}

// Tree returns the include graph rooted at the first resolved file.
func (c *Context) Tree() *Node {
	return c.root
}

// Node is a file in the resolved include graph.
type Node struct {
	Path      string  // Absolute path of the file.
	Name      string  // Name as written in the include directive (or the root name).
	Duplicate bool    // Already merged elsewhere; contributed no text here.
	Children  []*Node // Local includes in the order they appear.
}

// Result is the outcome of a successful merge.
type Result struct {
	Body           string   // Guard-free, include-free expanded text.
	SystemIncludes []string // Distinct normalized system includes, sorted.
	Files          []string // Merged files in first-discovery order.
	Tree           *Node    // Include graph.
}
