// Package scope classifies and normalizes URLs for the crawler.
package scope

import (
	"net/url"
	"regexp"
	"strings"
)

// Classifier decides domain membership for a single target host and applies
// the optional include/exclude rules used when queueing pages.
type Classifier struct {
	domain         string
	includeRegexps []*regexp.Regexp
	excludeRegexps []*regexp.Regexp
}

// NewClassifier creates a classifier for the exact host domain.
func NewClassifier(domain string, rules ScopeRules) (*Classifier, error) {
	c := &Classifier{domain: domain}

	for _, pattern := range rules.IncludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		c.includeRegexps = append(c.includeRegexps, re)
	}

	for _, pattern := range rules.Excludes() {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		c.excludeRegexps = append(c.excludeRegexps, re)
	}

	return c, nil
}

// Domain returns the configured target host.
func (c *Classifier) Domain() string {
	return c.domain
}

// IsTargetDomain reports whether rawURL's hostname is exactly the target
// domain. Subdomains do not match. Malformed URLs never match.
func (c *Classifier) IsTargetDomain(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Hostname() == c.domain
}

// ShouldQueue reports whether a same-domain page URL passes the
// include/exclude rules. Exclude patterns win.
func (c *Classifier) ShouldQueue(canonicalURL string) bool {
	if !c.IsTargetDomain(canonicalURL) {
		return false
	}

	for _, re := range c.excludeRegexps {
		if re.MatchString(canonicalURL) {
			return false
		}
	}

	if len(c.includeRegexps) == 0 {
		return true
	}
	for _, re := range c.includeRegexps {
		if re.MatchString(canonicalURL) {
			return true
		}
	}
	return false
}

// Normalize returns the canonical form of rawURL: fragment removed and the
// trailing slash dropped unless the path is exactly "/". Unparseable input is
// returned unchanged.
func Normalize(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	// http://host and http://host/ are the same resource.
	if parsed.Path == "" && parsed.Host != "" && parsed.Opaque == "" {
		parsed.Path = "/"
	}

	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
		if parsed.RawPath != "" {
			parsed.RawPath = strings.TrimSuffix(parsed.RawPath, "/")
		}
	}

	return parsed.String()
}

// Resolved is an absolute http(s) URL produced by Resolve.
type Resolved struct {
	Absolute string
	URL      *url.URL
}

// Resolve resolves a possibly relative rawURL against base. It reports false
// when either fails to parse or the result is not http/https, which filters
// mailto:, javascript:, data: and similar references.
func Resolve(rawURL, base string) (*Resolved, bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, false
	}

	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}

	return &Resolved{Absolute: resolved.String(), URL: resolved}, true
}

// HostOf returns the hostname of rawURL, or "" when it cannot be parsed.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
