package models

import (
	"fmt"
	"strings"
)

// LanguageSet is an ordered, non-empty set of OCR language identifiers that is
// recognized in a single combined pass.
type LanguageSet struct {
	ids []string
}

// ParseLanguages flattens identifiers such as ["eng", "chi_sim+chi_tra"] into
// one set, keeping first-seen order and dropping duplicates.
func ParseLanguages(specs []string) (LanguageSet, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, spec := range specs {
		for _, id := range strings.Split(spec, "+") {
			id = strings.TrimSpace(id)
			if id == "" {
				return LanguageSet{}, fmt.Errorf("%w: empty language identifier in %q", ErrInvalidConfiguration, spec)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return LanguageSet{}, fmt.Errorf("%w: language set is empty", ErrInvalidConfiguration)
	}
	return LanguageSet{ids: ids}, nil
}

// IDs returns a copy of the identifiers in order.
func (l LanguageSet) IDs() []string {
	return append([]string(nil), l.ids...)
}

// Empty reports whether the set has no identifiers.
func (l LanguageSet) Empty() bool {
	return len(l.ids) == 0
}

// String returns the combined identifier passed to the engine, e.g. "eng+chi_sim".
func (l LanguageSet) String() string {
	return strings.Join(l.ids, "+")
}
