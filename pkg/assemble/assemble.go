// File: pkg/assemble/assemble.go
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minio/highwayhash"
)

// BlankRunPattern matches two or more consecutive newlines.
var BlankRunPattern = regexp.MustCompile(`\n\n+`)

// digestKey is the fixed HighwayHash key; digests only need to be comparable
// between runs of this tool.
var digestKey = []byte("amalgam-artifact-digest-key-0001")

// Options controls the text around the merged body.
type Options struct {
	Banner      string // License banner placed above the top-level guard.
	GuardPrefix string // Prefix of the top-level guard macro, e.g. "CPPCMB".
}

// GuardMacro returns the name of the top-level include guard macro.
func (o Options) GuardMacro() string {
	if o.GuardPrefix == "" {
		return "AMALGAM_HPP"
	}
	return o.GuardPrefix + "_HPP"
}

// Prefix returns the banner followed by the top-level guard open.
func (o Options) Prefix() string {
	var b strings.Builder
	if banner := strings.TrimSpace(o.Banner); banner != "" {
		b.WriteString(banner + "\n\n")
	}
	fmt.Fprintf(&b, "#ifndef %s\n", o.GuardMacro())
	fmt.Fprintf(&b, "#define %s\n", o.GuardMacro())
	return b.String()
}

// Postfix returns the top-level guard close.
func (o Options) Postfix() string {
	return fmt.Sprintf("#endif /* %s */\n", o.GuardMacro())
}

// CollapseBlankLines reduces every run of blank lines to a single one and trims
// surrounding whitespace. CRLF line endings become LF.
func CollapseBlankLines(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.TrimSpace(BlankRunPattern.ReplaceAllString(body, "\n\n"))
}

// Assemble builds the single-header artifact from the sorted system includes and
// the merged body.
func Assemble(opts Options, includes []string, body string) string {
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s",
		opts.Prefix(),
		strings.Join(includes, "\n"),
		CollapseBlankLines(body),
		opts.Postfix())
}

// Digest returns the HighwayHash-64 checksum of data.
func Digest(data []byte) (uint64, error) {
	hash, err := highwayhash.New64(digestKey)
	if err != nil {
		return 0, err
	}
	_, err = hash.Write(data)
	return hash.Sum64(), err
}
