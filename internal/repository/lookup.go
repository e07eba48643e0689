package repository

import "strings"

// Resolution says how a requested developer name was matched
type Resolution string

const (
	ResolutionExact Resolution = "exact"
	ResolutionFuzzy Resolution = "fuzzy"
)

// maxCandidates caps the names returned by the partial-match stage
const maxCandidates = 10

// nameVariants returns the lowercased name and, when it differs, the same
// name with hyphens read as spaces (URL slugs)
func nameVariants(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	variants := []string{q}
	if spaced := strings.ReplaceAll(q, "-", " "); spaced != q {
		variants = append(variants, spaced)
	}
	return variants
}

// resolveName applies the two-stage lookup. exact holds canonical names
// matching a variant case-insensitively, partial holds names containing the
// query. partial is only consulted when exact is empty.
func resolveName(query string, exact, partial []string) (string, Resolution, error) {
	if len(exact) > 0 {
		// prefer the literal spelling over the hyphen-as-space reading
		q := strings.ToLower(strings.TrimSpace(query))
		for _, name := range exact {
			if strings.ToLower(name) == q {
				return name, ResolutionExact, nil
			}
		}
		return exact[0], ResolutionExact, nil
	}

	switch len(partial) {
	case 0:
		return "", "", &NotFoundError{Resource: "developer", ID: query}
	case 1:
		return partial[0], ResolutionFuzzy, nil
	default:
		return "", "", &AmbiguousError{Query: query, Candidates: partial}
	}
}
