// Package rewrite points the references in an archived page at their local
// copies.
package rewrite

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/PentesterFlow/OpenMirror/internal/parser"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// attrPattern matches name="value" or name='value'. The attribute name must
// follow whitespace so data-src or xlink:href do not match.
func attrPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\s` + name + `\s*=\s*(?:"([^"]*)"|'([^']*)')`)
}

var (
	hrefRe   = attrPattern("href")
	srcRe    = attrPattern("src")
	srcsetRe = attrPattern("srcset")

	// baseTagRe matches a whole <base> element.
	baseTagRe = regexp.MustCompile(`(?i)<base\b[^>]*>`)
)

// Rewriter rewrites href, src and srcset attribute values. It works on the
// serialized markup textually and never reparses the document, so
// everything outside the replaced values and removed <base> elements is
// preserved byte for byte.
type Rewriter struct {
	classifier *scope.Classifier
	mapper     *pathmap.Mapper
}

// New creates a Rewriter.
func New(classifier *scope.Classifier, mapper *pathmap.Mapper) *Rewriter {
	return &Rewriter{classifier: classifier, mapper: mapper}
}

// pageContext is the page being rewritten. Values resolve against base;
// results are relative to localPath.
type pageContext struct {
	base      string
	localPath string
}

// Rewrite returns markup with references rewritten relative to the local
// path of pageURL. Values are resolved against baseURL, the URL the page
// was actually served from, or against the document's <base href> when it
// has one. An empty baseURL means pageURL. Each pass handles one attribute.
// A value that cannot be resolved or mapped is left as it was.
//
// <base> elements are removed: every rewritten path is relative to the
// page's own file.
func (r *Rewriter) Rewrite(markup, pageURL, baseURL string) string {
	local, ok := r.mapper.LocalPath(pageURL)
	if !ok {
		local = ""
	}
	if baseURL == "" {
		baseURL = pageURL
	}
	ctx := pageContext{base: documentBase(markup, baseURL), localPath: local}
	markup = baseTagRe.ReplaceAllString(markup, "")

	markup = replaceValues(markup, hrefRe, func(v string) (string, bool) { return r.rewriteHref(ctx, v) })
	markup = replaceValues(markup, srcRe, func(v string) (string, bool) { return r.rewriteSrc(ctx, v) })
	markup = replaceValues(markup, srcsetRe, func(v string) (string, bool) { return r.rewriteSrcset(ctx, v) })
	return markup
}

// documentBase returns the first <base href> of markup resolved against
// baseURL, or baseURL when there is none.
func documentBase(markup, baseURL string) string {
	tag := baseTagRe.FindString(markup)
	if tag == "" {
		return baseURL
	}
	m := hrefRe.FindStringSubmatch(tag)
	if m == nil {
		return baseURL
	}
	href := m[1]
	if href == "" {
		href = m[2]
	}
	return parser.ResolveBase(baseURL, html.UnescapeString(href))
}

// replaceValues applies fn to the quoted value of every match of re and
// splices the results back in. Values for which fn reports false are kept.
func replaceValues(markup string, re *regexp.Regexp, fn func(string) (string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(markup, -1)
	if len(matches) == 0 {
		return markup
	}

	var b strings.Builder
	b.Grow(len(markup))
	last := 0

	for _, m := range matches {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}

		replacement, ok := fn(markup[start:end])
		if !ok {
			continue
		}

		b.WriteString(markup[last:start])
		b.WriteString(replacement)
		last = end
	}

	b.WriteString(markup[last:])
	return b.String()
}

func (r *Rewriter) rewriteHref(ctx pageContext, raw string) (string, bool) {
	value := strings.TrimSpace(html.UnescapeString(raw))
	if value == "" || strings.HasPrefix(value, "#") {
		return "", false
	}

	resolved, ok := scope.Resolve(value, ctx.base)
	if !ok {
		return "", false
	}

	canonical := scope.Normalize(resolved.Absolute)
	if r.classifier.IsTargetDomain(canonical) {
		local, ok := r.mapper.LocalPath(canonical)
		if !ok {
			return "", false
		}
		rel := pathmap.RelativePath(ctx.localPath, local)
		if i := strings.Index(raw, "#"); i >= 0 {
			rel += raw[i:]
		}
		return rel, true
	}

	if pathmap.HasAssetExtension(resolved.URL.Path) {
		return r.assetPath(ctx, resolved.Absolute)
	}

	return "", false
}

func (r *Rewriter) rewriteSrc(ctx pageContext, raw string) (string, bool) {
	value := strings.TrimSpace(html.UnescapeString(raw))
	if value == "" {
		return "", false
	}

	resolved, ok := scope.Resolve(value, ctx.base)
	if !ok {
		return "", false
	}
	return r.assetPath(ctx, resolved.Absolute)
}

func (r *Rewriter) rewriteSrcset(ctx pageContext, raw string) (string, bool) {
	candidates := parser.ParseSrcset(raw)
	if len(candidates) == 0 {
		return "", false
	}

	for i, c := range candidates {
		if rel, ok := r.rewriteSrc(ctx, c.URL); ok {
			candidates[i].URL = rel
		}
	}
	return parser.JoinSrcset(candidates), true
}

func (r *Rewriter) assetPath(ctx pageContext, absURL string) (string, bool) {
	local, ok := r.mapper.AssetLocalPath(absURL)
	if !ok {
		return "", false
	}
	return pathmap.RelativePath(ctx.localPath, local), true
}
