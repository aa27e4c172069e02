package payload

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML mapping into a tree, keeping key order.
// Every string scalar becomes a Template; other scalars keep their YAML type.
func (m *Mapping) UnmarshalYAML(value *yaml.Node) error {
	n, err := FromYAML(value)
	if err != nil {
		return err
	}
	mm, ok := n.(*Mapping)
	if !ok {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}
	*m = *mm
	return nil
}

// FromYAML converts a decoded yaml.Node into a tree.
func FromYAML(value *yaml.Node) (Node, error) {
	switch value.Kind {
	case yaml.DocumentNode:
		if len(value.Content) == 0 {
			return Literal{}, nil
		}
		return FromYAML(value.Content[0])
	case yaml.AliasNode:
		return FromYAML(value.Alias)
	case yaml.SequenceNode:
		seq := make(Sequence, 0, len(value.Content))
		for _, item := range value.Content {
			n, err := FromYAML(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, n)
		}
		return seq, nil
	case yaml.MappingNode:
		m := NewMapping()
		for i := 0; i+1 < len(value.Content); i += 2 {
			k, v := value.Content[i], value.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			n, err := FromYAML(v)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, n)
		}
		return m, nil
	case yaml.ScalarNode:
		if value.ShortTag() == "!!str" {
			return Template{Source: value.Value}, nil
		}
		var v any
		if err := value.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", value.Line, err)
		}
		return Literal{Value: normalizeScalar(v)}, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", value.Line, value.Kind)
	}
}
