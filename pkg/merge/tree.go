// File: pkg/merge/tree.go
package merge

import (
	"fmt"
	"strings"
)

// RenderTree draws the include graph rooted at root, one file per line.
// Files merged earlier in the walk are marked rather than expanded again.
func RenderTree(root *Node) string {
	if root == nil {
		return ""
	}
	var treeBuilder strings.Builder
	treeBuilder.WriteString(root.Name + "\n")
	renderChildren(&treeBuilder, root, "")
	return treeBuilder.String()
}

func renderChildren(b *strings.Builder, n *Node, prefix string) {
	for i, child := range n.Children {
		connector := "├── "
		extension := "│   "
		if i == len(n.Children)-1 {
			connector = "└── "
			extension = "    "
		}

		if child.Duplicate {
			b.WriteString(fmt.Sprintf("%s%s%s (merged above)\n", prefix, connector, child.Name))
			continue
		}
		b.WriteString(fmt.Sprintf("%s%s%s\n", prefix, connector, child.Name))
		renderChildren(b, child, prefix+extension)
	}
}
