package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LegacyContainerName names the container built from a bare transformations map.
const LegacyContainerName = "transformations_00_default"

// UnmarshalYAML decodes the plain fields and collects transformation
// containers from the "transformations" key and any transformations_* keys.
// Keyed containers run after list entries, sorted by key.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	if err := value.Decode((*plain)(c)); err != nil {
		return err
	}

	type keyedContainer struct {
		key string
		ct  Container
	}
	var keyed []keyedContainer
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		switch {
		case key == "transformations":
			switch val.Kind {
			case yaml.SequenceNode:
				for j, n := range val.Content {
					var ct Container
					if err := n.Decode(&ct); err != nil {
						return fmt.Errorf("transformations[%d]: %w", j, err)
					}
					if ct.Name == "" {
						ct.Name = fmt.Sprintf("transformations_%02d", j)
					}
					c.Transformations = append(c.Transformations, ct)
				}
			case yaml.MappingNode:
				var ct Container
				if err := val.Decode(&ct); err != nil {
					return fmt.Errorf("transformations: %w", err)
				}
				ct.Name = LegacyContainerName
				keyed = append(keyed, keyedContainer{LegacyContainerName, ct})
			case yaml.ScalarNode:
				if val.Tag != "!!null" {
					return fmt.Errorf("line %d: transformations must be a list or a map", val.Line)
				}
			default:
				return fmt.Errorf("line %d: transformations must be a list or a map", val.Line)
			}
		case strings.HasPrefix(key, "transformations_"):
			var ct Container
			if err := val.Decode(&ct); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			ct.Name = key
			keyed = append(keyed, keyedContainer{key, ct})
		}
	}

	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].key < keyed[j].key })
	for _, k := range keyed {
		c.Transformations = append(c.Transformations, k.ct)
	}
	return nil
}

// UnmarshalYAML reads a container keeping rename and remove rules in the
// order they appear in the file.
func (ct *Container) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: transformation container must be a map", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		var err error
		switch key {
		case "name":
			err = val.Decode(&ct.Name)
		case "file_selection":
			ct.FileSelection, err = decodeSelection(val)
		case "rename":
			ct.Rename, err = decodeRules(val, true)
		case "remove":
			ct.Remove, err = decodeRules(val, false)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// decodeSelection accepts a pattern list, a single pattern, or the older
// {selected_files: [...]} map.
func decodeSelection(n *yaml.Node) ([]string, error) {
	var out []string
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value != "" {
			out = []string{n.Value}
		}
		return out, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "selected_files" {
				return decodeSelection(n.Content[i+1])
			}
		}
		return nil, nil
	}
	err := n.Decode(&out)
	return out, err
}

func decodeRules(n *yaml.Node, rename bool) (map[string][]Rule, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a map of categories", n.Line)
	}
	out := make(map[string][]Rule)
	for i := 0; i+1 < len(n.Content); i += 2 {
		cat, val := n.Content[i].Value, n.Content[i+1]
		var rules []Rule
		switch {
		case val.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(val.Content); j += 2 {
				r := Rule{Pattern: val.Content[j].Value}
				if rename {
					r.Replacement = val.Content[j+1].Value
				}
				rules = append(rules, r)
			}
		case val.Kind == yaml.SequenceNode && !rename:
			var pats []string
			if err := val.Decode(&pats); err != nil {
				return nil, fmt.Errorf("%s: %w", cat, err)
			}
			for _, p := range pats {
				rules = append(rules, Rule{Pattern: p})
			}
		case val.Kind == yaml.ScalarNode && val.Value == "":
			// empty category
		default:
			return nil, fmt.Errorf("line %d: unexpected value for %s", val.Line, cat)
		}
		out[cat] = append(out[cat], rules...)
	}
	return out, nil
}
