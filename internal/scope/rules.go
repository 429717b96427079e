package scope

// SessionExcludePatterns match links that end a session or change account
// state. Following them while mirroring an authenticated site would log the
// renderer out or worse.
var SessionExcludePatterns = []string{
	`.*[?&]logout.*`,
	`.*[?&]signout.*`,
	`.*\/logout.*`,
	`.*\/log-out.*`,
	`.*\/signout.*`,
	`.*\/sign-out.*`,
	`.*\/delete-account.*`,
	`.*\/unsubscribe.*`,
	`.*\/reset-password.*`,
}

// Excludes returns the exclude patterns in effect, including the session
// patterns when SkipSessionLinks is set.
func (r ScopeRules) Excludes() []string {
	if !r.SkipSessionLinks {
		return r.ExcludePatterns
	}
	excludes := make([]string, 0, len(r.ExcludePatterns)+len(SessionExcludePatterns))
	excludes = append(excludes, r.ExcludePatterns...)
	return append(excludes, SessionExcludePatterns...)
}

// RuleBuilder helps build scope rules.
type RuleBuilder struct {
	rules ScopeRules
}

// NewRuleBuilder creates a rule builder that skips session links.
func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{
		rules: ScopeRules{SkipSessionLinks: true},
	}
}

// WithIncludePatterns adds include patterns.
func (b *RuleBuilder) WithIncludePatterns(patterns ...string) *RuleBuilder {
	b.rules.IncludePatterns = append(b.rules.IncludePatterns, patterns...)
	return b
}

// WithExcludePatterns adds exclude patterns.
func (b *RuleBuilder) WithExcludePatterns(patterns ...string) *RuleBuilder {
	b.rules.ExcludePatterns = append(b.rules.ExcludePatterns, patterns...)
	return b
}

// WithSessionLinks sets whether session-ending links may be queued.
func (b *RuleBuilder) WithSessionLinks(follow bool) *RuleBuilder {
	b.rules.SkipSessionLinks = !follow
	return b
}

// Build returns the configured rules.
func (b *RuleBuilder) Build() ScopeRules {
	return b.rules
}
