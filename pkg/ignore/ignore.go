package ignore

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Precompiled regular expressions used in pattern parsing.
var (
	DoubleStarMiddlePattern   = regexp.MustCompile(`/\*\*/`)
	DoubleStarTrailingPattern = regexp.MustCompile(`/\*\*$`)
	DoubleStarLeadingPattern  = regexp.MustCompile(`^\*\*/`)
)

// Pattern encapsulates a compiled ignore pattern and its origin.
type Pattern struct {
	Regexp *regexp.Regexp // Compiled regular expression for the pattern.
	Negate bool           // Pattern started with '!'.
	Line   string         // Original pattern line.
	LineNo int            // 1-based position among all compiled patterns.
}

// Filter matches slash-separated relative paths against gitignore-style
// patterns. Directory paths are expected to end with '/'. The last matching
// pattern decides.
type Filter struct {
	patterns []*Pattern
	logger   *zap.Logger
}

// New creates an empty Filter.
func New(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{logger: logger}
}

// Len returns the number of compiled patterns.
func (f *Filter) Len() int {
	return len(f.patterns)
}

// Compile adds pattern lines. Empty lines and '#' comments are skipped.
func (f *Filter) Compile(lines ...string) {
	for _, line := range lines {
		re, negate, ok := parsePatternLine(line)
		if !ok {
			continue
		}
		p := &Pattern{
			Regexp: re,
			Negate: negate,
			Line:   line,
			LineNo: len(f.patterns) + 1,
		}
		f.patterns = append(f.patterns, p)
		f.logger.Debug("Compiled ignore pattern",
			zap.Int("lineNo", p.LineNo),
			zap.String("pattern", p.Line),
			zap.Bool("negate", p.Negate))
	}
}

// CompileFile adds the patterns of an ignore file. A missing file is not an error.
func (f *Filter) CompileFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Debug("Ignore file does not exist and will be skipped", zap.String("filePath", path))
			return nil
		}
		f.logger.Error("Failed to read ignore file", zap.String("filePath", path), zap.Error(err))
		return err
	}

	before := len(f.patterns)
	f.Compile(strings.Split(string(content), "\n")...)
	f.logger.Debug("Compiled ignore file",
		zap.String("filePath", path),
		zap.Int("patternCount", len(f.patterns)-before))
	return nil
}

// Match reports whether path is ignored.
func (f *Filter) Match(path string) bool {
	matched, _ := f.MatchWithPattern(path)
	return matched
}

// MatchWithPattern reports whether path is ignored and which pattern decided it.
func (f *Filter) MatchWithPattern(path string) (bool, *Pattern) {
	normalized := filepath.ToSlash(path)

	matched := false
	var decided *Pattern
	for _, p := range f.patterns {
		if p.Regexp.MatchString(normalized) {
			matched = !p.Negate
			decided = p
		}
	}
	return matched, decided
}

// parsePatternLine converts one ignore line into a regular expression.
func parsePatternLine(line string) (*regexp.Regexp, bool, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, false, false
	}

	negate := false
	if strings.HasPrefix(trimmed, "!") {
		negate = true
		trimmed = strings.TrimPrefix(trimmed, "!")
	}
	if strings.HasPrefix(trimmed, `\#`) || strings.HasPrefix(trimmed, `\!`) {
		trimmed = trimmed[1:]
	}

	rooted := strings.HasPrefix(trimmed, "/")
	dirOnly := strings.HasSuffix(trimmed, "/")
	body := strings.TrimSuffix(strings.TrimPrefix(trimmed, "/"), "/")

	pattern := escapeSpecialChars(body)
	pattern = handleDoubleStarPatterns(pattern)
	pattern = wildcardToRegex(pattern)

	if dirOnly {
		pattern += "/.*$"
	} else {
		pattern += "(/.*)?$"
	}
	if rooted {
		pattern = "^" + pattern
	} else {
		pattern = "^(|.*/)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false, false
	}
	return re, negate, true
}

// escapeSpecialChars escapes regex special characters except for '*', '?', and '/'.
func escapeSpecialChars(pattern string) string {
	for _, char := range `\.+()|^$[]{}` {
		pattern = strings.ReplaceAll(pattern, string(char), `\`+string(char))
	}
	return pattern
}

// handleDoubleStarPatterns replaces '**' segments; the placeholders survive
// wildcardToRegex untouched.
func handleDoubleStarPatterns(pattern string) string {
	pattern = DoubleStarMiddlePattern.ReplaceAllString(pattern, `(/|/.+/)`)
	pattern = DoubleStarTrailingPattern.ReplaceAllString(pattern, `(/.*)?`)
	pattern = DoubleStarLeadingPattern.ReplaceAllString(pattern, `(.*/)?`)
	return pattern
}

// wildcardToRegex converts '*' and '?' to regex equivalents. Quantifiers that
// belong to the groups produced by handleDoubleStarPatterns are kept.
func wildcardToRegex(pattern string) string {
	unescaped := func(i int, prev byte) bool {
		return i > 0 && pattern[i-1] == prev && (i < 2 || pattern[i-2] != '\\')
	}

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '*' && unescaped(i, '.'):
			b.WriteByte(c)
		case c == '*':
			b.WriteString(`[^/]*`)
		case c == '?' && unescaped(i, ')'):
			b.WriteByte(c)
		case c == '?':
			b.WriteString(`[^/]`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
