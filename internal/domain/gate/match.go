package gate

import (
	"path/filepath"
	"strings"
)

// MatchTool matches a tool name against a glob pattern. Supports the
// standard filepath.Match wildcards (*, ?) plus ** for matching across
// /-separated tool namespace segments (e.g. "mcp/github/**").
func MatchTool(pattern, tool string) bool {
	if strings.Contains(pattern, "**") {
		return matchSegments(strings.Split(pattern, "/"), strings.Split(tool, "/"))
	}
	matched, _ := filepath.Match(pattern, tool)
	return matched
}

// matchSegments recursively matches pattern segments against name segments,
// where "**" consumes zero or more segments.
func matchSegments(pat, val []string) bool {
	for len(pat) > 0 && len(val) > 0 {
		if pat[0] == "**" {
			pat = pat[1:]
			if len(pat) == 0 {
				return true // trailing ** matches everything
			}
			for i := 0; i <= len(val); i++ {
				if matchSegments(pat, val[i:]) {
					return true
				}
			}
			return false
		}
		matched, _ := filepath.Match(pat[0], val[0])
		if !matched {
			return false
		}
		pat = pat[1:]
		val = val[1:]
	}

	// Remaining pattern segments must all be ** (or the pattern is empty).
	for _, p := range pat {
		if p != "**" {
			return false
		}
	}
	return len(val) == 0
}
