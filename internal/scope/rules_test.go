package scope

import "testing"

// =============================================================================
// Rule Tests
// =============================================================================

func TestScopeRules_Excludes(t *testing.T) {
	rules := ScopeRules{ExcludePatterns: []string{`/private`}}
	if got := rules.Excludes(); len(got) != 1 {
		t.Errorf("Excludes() = %v, want only the configured pattern", got)
	}

	rules.SkipSessionLinks = true
	got := rules.Excludes()
	if len(got) != 1+len(SessionExcludePatterns) {
		t.Errorf("Excludes() len = %d, want %d", len(got), 1+len(SessionExcludePatterns))
	}
	if got[0] != `/private` {
		t.Errorf("Excludes()[0] = %s, configured patterns should come first", got[0])
	}
	if len(rules.ExcludePatterns) != 1 {
		t.Error("Excludes() must not modify ExcludePatterns")
	}
}

func TestClassifier_SessionLinks(t *testing.T) {
	tests := []struct {
		url  string
		skip bool
		want bool
	}{
		{"https://example.com/logout", true, false},
		{"https://example.com/account/sign-out", true, false},
		{"https://example.com/?logout=1", true, false},
		{"https://example.com/newsletter/unsubscribe", true, false},
		{"https://example.com/logout", false, true},
		{"https://example.com/blog/logging", true, true},
		{"https://example.com/about", true, true},
	}

	for _, tt := range tests {
		c, err := NewClassifier("example.com", ScopeRules{SkipSessionLinks: tt.skip})
		if err != nil {
			t.Fatalf("NewClassifier() error = %v", err)
		}
		if got := c.ShouldQueue(tt.url); got != tt.want {
			t.Errorf("ShouldQueue(%s) skip=%v = %v, want %v", tt.url, tt.skip, got, tt.want)
		}
	}
}

func TestRuleBuilder(t *testing.T) {
	rules := NewRuleBuilder().
		WithIncludePatterns(`/docs`).
		WithExcludePatterns(`/docs/old`, `/tmp`).
		Build()

	if !rules.SkipSessionLinks {
		t.Error("builder should skip session links by default")
	}
	if len(rules.IncludePatterns) != 1 || len(rules.ExcludePatterns) != 2 {
		t.Errorf("rules = %+v", rules)
	}

	rules = NewRuleBuilder().WithSessionLinks(true).Build()
	if rules.SkipSessionLinks {
		t.Error("WithSessionLinks(true) should allow session links")
	}
}
