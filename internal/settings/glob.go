package settings

import (
	"regexp"
	"strings"
)

// CompileGlob converts an asset-override URL pattern into an anchored
// regular expression: "**" matches any character sequence including
// path separators, "*" matches any non-separator sequence. Spec §8
// pins the exact cases this must satisfy:
//
//	match("a/b/c", "a/**") = true
//	match("a/b", "a/*")    = true
//	match("a/b/c", "a/*")  = false
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	const globStar = "\x00GLOBSTAR\x00"
	withSentinel := strings.ReplaceAll(pattern, "**", globStar)
	escaped := regexp.QuoteMeta(withSentinel)
	escaped = strings.ReplaceAll(escaped, globStar, ".*")
	escaped = strings.ReplaceAll(escaped, `\*`, "[^/]*")
	return regexp.Compile("^" + escaped + "$")
}

// MatchGlob is a convenience wrapper that compiles and matches in one
// call; callers resolving many URLs against the same pattern should
// compile once and reuse the *regexp.Regexp instead.
func MatchGlob(path, pattern string) bool {
	re, err := CompileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
