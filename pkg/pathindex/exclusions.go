package pathindex

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// foldCase is set on hosts whose filesystems ignore case by default.
var foldCase = util.IsHostCaseInsensitiveFS()

type exclusionMatchType int

const (
	literalMatch exclusionMatchType = iota
	prefixMatch
	suffixMatch
	globMatch
)

// exclusionSet holds the categorized exclusion patterns for efficient matching.
type exclusionSet struct {
	// literals are exact relative-path matches, e.g. "docs/config.json".
	literals map[string]struct{}
	// basenameLiterals match a name anywhere in the tree, e.g. "node_modules".
	basenameLiterals map[string]struct{}
	// nonLiterals need prefix, suffix or glob matching.
	nonLiterals []exclusion
}

type exclusion struct {
	pattern       string
	cleanPattern  string
	matchType     exclusionMatchType
	matchBasename bool
}

// makeExclusionSet analyzes and categorizes patterns. Glob patterns use
// doublestar syntax, so "**/build/*.o" matches at any depth.
func makeExclusionSet(patterns []string) (exclusionSet, error) {
	set := exclusionSet{
		literals:         make(map[string]struct{}),
		basenameLiterals: make(map[string]struct{}),
	}

	// Patterns without a separator match the basename, like .gitignore entries.
	shouldMatchBasename := func(p string) bool { return !strings.Contains(p, "/") }

	for _, raw := range patterns {
		p := normalizeExclusionPattern(raw)
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?[]{}") {
			switch {
			case strings.HasSuffix(p, "/"):
				set.nonLiterals = append(set.nonLiterals, exclusion{
					pattern:      p,
					cleanPattern: strings.TrimSuffix(p, "/"),
					matchType:    prefixMatch,
				})
			case shouldMatchBasename(p):
				set.basenameLiterals[p] = struct{}{}
			default:
				set.literals[p] = struct{}{}
			}
			continue
		}

		switch {
		case strings.HasSuffix(p, "/*") && !strings.ContainsAny(p[:len(p)-2], "*?[]{}"):
			// "build/*" excludes everything below build.
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern:      p,
				cleanPattern: strings.TrimSuffix(p, "*"),
				matchType:    prefixMatch,
			})
		case strings.HasPrefix(p, "*") && !strings.ContainsAny(p[1:], "*?[]{}/"):
			// "*.log" or "*~".
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern:       p,
				cleanPattern:  p[1:],
				matchType:     suffixMatch,
				matchBasename: true,
			})
		default:
			if _, err := doublestar.Match(p, "a"); err != nil {
				return exclusionSet{}, fmt.Errorf("invalid exclusion pattern %q: %w", raw, err)
			}
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern:       p,
				cleanPattern:  p,
				matchType:     globMatch,
				matchBasename: shouldMatchBasename(p),
			})
		}
	}
	return set, nil
}

func (es *exclusionSet) empty() bool {
	return len(es.literals) == 0 && len(es.basenameLiterals) == 0 && len(es.nonLiterals) == 0
}

// matches checks a slash-separated path relative to the scan root.
func (es *exclusionSet) matches(relPath, basename string) bool {
	normalizedPath := normalizeExclusionPattern(relPath)
	normalizedBasename := normalizeExclusionPattern(basename)

	if _, ok := es.literals[normalizedPath]; ok {
		return true
	}
	if _, ok := es.basenameLiterals[normalizedBasename]; ok {
		return true
	}

	for _, p := range es.nonLiterals {
		pathToCheck := normalizedPath
		if p.matchBasename {
			pathToCheck = normalizedBasename
		}

		switch p.matchType {
		case prefixMatch:
			// "build/" must not match "build-tools".
			if pathToCheck == strings.TrimSuffix(p.cleanPattern, "/") ||
				strings.HasPrefix(pathToCheck, strings.TrimSuffix(p.cleanPattern, "/")+"/") {
				return true
			}
		case suffixMatch:
			if strings.HasSuffix(pathToCheck, p.cleanPattern) {
				return true
			}
		case globMatch:
			if match, _ := doublestar.Match(p.cleanPattern, pathToCheck); match {
				return true
			}
		}
	}
	return false
}

// normalizeExclusionPattern converts a path or pattern into the key format
// used for matching: forward slashes, lowercased only when foldCase is set.
func normalizeExclusionPattern(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if foldCase {
		return strings.ToLower(p)
	}
	return p
}
