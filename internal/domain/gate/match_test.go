package gate

import "testing"

func TestMatchToolExact(t *testing.T) {
	if !MatchTool("delete_repository", "delete_repository") {
		t.Fatal("exact name should match itself")
	}
	if MatchTool("delete_repository", "delete_repo") {
		t.Fatal("different name should not match")
	}
}

func TestMatchToolWildcards(t *testing.T) {
	cases := []struct {
		pattern string
		tool    string
		want    bool
	}{
		{"mcp_*", "mcp_lookup", true},
		{"mcp_*", "http_lookup", false},
		{"*_write", "file_write", true},
		{"?ash", "bash", true},
		{"?ash", "smash", false},
		{"*", "anything", true},
	}
	for _, tc := range cases {
		if got := MatchTool(tc.pattern, tc.tool); got != tc.want {
			t.Errorf("MatchTool(%q, %q) = %v, want %v", tc.pattern, tc.tool, got, tc.want)
		}
	}
}

func TestMatchToolDoubleStar(t *testing.T) {
	cases := []struct {
		pattern string
		tool    string
		want    bool
	}{
		{"mcp/**", "mcp/github/create_issue", true},
		{"mcp/**", "mcp", false},
		{"mcp/**/delete_*", "mcp/github/delete_repo", true},
		{"mcp/**/delete_*", "mcp/delete_repo", true},
		{"mcp/**/delete_*", "mcp/github/create_repo", false},
		{"**/admin", "a/b/c/admin", true},
	}
	for _, tc := range cases {
		if got := MatchTool(tc.pattern, tc.tool); got != tc.want {
			t.Errorf("MatchTool(%q, %q) = %v, want %v", tc.pattern, tc.tool, got, tc.want)
		}
	}
}
