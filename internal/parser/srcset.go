package parser

import "strings"

// SrcsetCandidate is one entry of a srcset attribute.
type SrcsetCandidate struct {
	URL        string
	Descriptor string
}

// ParseSrcset splits a srcset value on commas into candidates. Empty
// entries are dropped. Everything after the first whitespace run is kept as
// the descriptor.
func ParseSrcset(srcset string) []SrcsetCandidate {
	entries := strings.Split(srcset, ",")
	candidates := make([]SrcsetCandidate, 0, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Fields(entry)
		candidate := SrcsetCandidate{URL: parts[0]}
		if len(parts) > 1 {
			candidate.Descriptor = strings.Join(parts[1:], " ")
		}
		candidates = append(candidates, candidate)
	}

	return candidates
}

// String renders the candidate back into srcset syntax.
func (c SrcsetCandidate) String() string {
	if c.Descriptor == "" {
		return c.URL
	}
	return c.URL + " " + c.Descriptor
}

// JoinSrcset renders candidates as a srcset value.
func JoinSrcset(candidates []SrcsetCandidate) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
