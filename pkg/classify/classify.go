// File: pkg/classify/classify.go
package classify

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind identifies what a single header line is to the merger.
type Kind int

const (
	Plain         Kind = iota // Ordinary content, emitted verbatim.
	GuardOpen                 // `#ifndef <PREFIX>_<MIDDLE><ID>_HPP`
	GuardDefine               // `#define <PREFIX>_<MIDDLE><ID>_HPP`
	GuardClose                // `#endif /* <PREFIX>_<MIDDLE><ID>_HPP */`
	SystemInclude             // `#include <...>`
	LocalInclude              // `#include "..."`
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case GuardOpen:
		return "guard-open"
	case GuardDefine:
		return "guard-define"
	case GuardClose:
		return "guard-close"
	case SystemInclude:
		return "system-include"
	case LocalInclude:
		return "local-include"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Verdict is the classification of one line. Only the field matching Kind is set.
type Verdict struct {
	Kind   Kind
	Middle string // GuardOpen: token between the prefix and the identifier.
	Text   string // SystemInclude: normalized directive. Plain: the line as read.
	Name   string // LocalInclude: quoted file name.
}

// Precompiled include directive patterns.
var (
	SystemIncludePattern = regexp.MustCompile(`^\s*#include\s*<.+>\s*$`)
	LocalIncludePattern  = regexp.MustCompile(`^\s*#include\s*"(.+)"`)
)

// Triple holds the three guard lines expected in one file once the middle token
// is known.
type Triple struct {
	Middle string
	Open   string
	Define string
	Close  string
}

// Classifier classifies the lines of a single header file.
type Classifier struct {
	prefix     string // Guard prefix including its trailing underscore.
	identifier string
	open       *regexp.Regexp
}

// Identifier returns the uppercased file name stem used in guard macro names.
func Identifier(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// New returns a Classifier for the file at path whose guard macros start with
// prefix followed by an underscore. An empty prefix means guards start directly
// with the middle token.
func New(prefix, path string) *Classifier {
	if prefix != "" {
		prefix += "_"
	}
	id := Identifier(path)
	return &Classifier{
		prefix:     prefix,
		identifier: id,
		open: regexp.MustCompile(
			`^#ifndef ` + regexp.QuoteMeta(prefix) + `(\w*)` + regexp.QuoteMeta(id) + `_HPP\s*$`),
	}
}

// Triple builds the guard lines for the given middle token.
func (c *Classifier) Triple(middle string) Triple {
	macro := c.prefix + middle + c.identifier + "_HPP"
	return Triple{
		Middle: middle,
		Open:   "#ifndef " + macro,
		Define: "#define " + macro,
		Close:  "#endif /* " + macro + " */",
	}
}

// Classify classifies line. guard is nil until the guard-open line has been seen;
// guard-define and guard-close are only recognized once it is set.
func (c *Classifier) Classify(line string, guard *Triple) Verdict {
	bare := strings.TrimRight(line, "\r\n")

	if SystemIncludePattern.MatchString(bare) {
		return Verdict{Kind: SystemInclude, Text: strings.Join(strings.Fields(bare), " ")}
	}
	if m := LocalIncludePattern.FindStringSubmatch(bare); m != nil {
		return Verdict{Kind: LocalInclude, Name: m[1]}
	}

	if guard == nil {
		if m := c.open.FindStringSubmatch(bare); m != nil {
			return Verdict{Kind: GuardOpen, Middle: m[1]}
		}
		return Verdict{Kind: Plain, Text: line}
	}

	trimmed := strings.TrimRight(bare, " \t")
	switch trimmed {
	case guard.Define:
		return Verdict{Kind: GuardDefine}
	case guard.Close:
		return Verdict{Kind: GuardClose}
	}
	return Verdict{Kind: Plain, Text: line}
}
