package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// metadataNames are root-level entries that are never tracked.
var metadataNames = []string{StoreDir, RefsDir, IndexFile, ConfigFile, ".git"}

// IgnoreChecker decides which paths a directory add skips.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // match against the full relative path, not a component
	regex    *regexp.Regexp
}

// NewIgnoreChecker loads <repoRoot>/.cirrusignore, if present, on top of
// the built-in metadata patterns.
func NewIgnoreChecker(repoRoot string) (*IgnoreChecker, error) {
	ic := &IgnoreChecker{}
	for _, name := range metadataNames {
		ic.patterns = append(ic.patterns, ignorePattern{pattern: name, anchored: true})
	}

	f, err := os.Open(filepath.Join(repoRoot, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ic, nil
		}
		return nil, fmt.Errorf("read %s: %w", IgnoreFile, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseIgnoreLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFile, err)
	}
	return ic, nil
}

// parseIgnoreLine returns nil for blank lines and comments.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		line = strings.TrimLeft(line, "/")
		p.anchored = true
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	if line == "" {
		return nil
	}

	p.pattern = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.regex = re
		}
	}
	return p
}

// IsIgnored reports whether the repository-relative path is ignored. A path
// is ignored when it or any of its parent directories matches; the last
// matching pattern wins so negations can re-include.
func (ic *IgnoreChecker) IsIgnored(path string, isDir bool) bool {
	path = strings.Trim(filepath.ToSlash(path), "/")
	if path == "" || path == "." {
		return false
	}
	parts := strings.Split(path, "/")

	ignored := false
	for _, p := range ic.patterns {
		if p.matchesAny(parts, isDir) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) matchesAny(parts []string, isDir bool) bool {
	for i := 1; i <= len(parts); i++ {
		dir := i < len(parts) || isDir
		if p.dirOnly && !dir {
			continue
		}
		target := parts[i-1]
		if p.anchored {
			target = strings.Join(parts[:i], "/")
		}
		if p.match(target) {
			return true
		}
	}
	return false
}

func (p *ignorePattern) match(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	matched, _ := filepath.Match(p.pattern, target)
	return matched
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		if ch == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// Globstar directory segment: zero or more path segments.
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
			continue
		}
		if ch == '?' {
			b.WriteString("[^/]")
			continue
		}
		if strings.ContainsRune(`.+()|[]{}^$\\`, rune(ch)) {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	b.WriteString("$")
	return b.String()
}
