package scope

// ScopeRules narrows which same-domain pages are queued. Assets are never
// filtered by these rules.
type ScopeRules struct {
	IncludePatterns []string `json:"include_patterns" yaml:"include_patterns" mapstructure:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns" mapstructure:"exclude_patterns"`

	// Never queue logout, unsubscribe and similar links.
	SkipSessionLinks bool `json:"skip_session_links" yaml:"skip_session_links" mapstructure:"skip_session_links"`
}
