package provider

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// LanguageSet is a normalized set of language identifiers kept in the
// order they were first given.
type LanguageSet []string

// Languages builds a LanguageSet, dropping empty and repeated ids.
func Languages(ids ...string) LanguageSet {
	set := make(LanguageSet, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(set, id) {
			continue
		}
		set = append(set, id)
	}
	return set
}

// Contains reports whether id is in the set.
func (s LanguageSet) Contains(id string) bool {
	return slices.Contains(s, id)
}

// UnmarshalYAML accepts a single scalar or a sequence.
func (s *LanguageSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		*s = Languages(id)
		return nil
	case yaml.SequenceNode:
		var ids []string
		if err := node.Decode(&ids); err != nil {
			return err
		}
		*s = Languages(ids...)
		return nil
	default:
		return fmt.Errorf("line %d: languages must be a string or a list of strings", node.Line)
	}
}
