package manifest

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// nodeToValue converts a decoded *yaml.Node subtree into a Value, preserving
// mapping key order. Document nodes are unwrapped to their single child.
func nodeToValue(n *yaml.Node) (*Value, error) {
	if n == nil {
		return NewNull(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewNull(), nil
		}
		return nodeToValue(n.Content[0])
	case yaml.MappingNode:
		m := NewOrderedMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			v := n.Content[i+1]
			val, err := nodeToValue(v)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, val)
		}
		return &Value{Kind: KindMap, Map: m}, nil
	case yaml.SequenceNode:
		seq := make([]*Value, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := nodeToValue(c)
			if err != nil {
				return nil, err
			}
			seq = append(seq, val)
		}
		return &Value{Kind: KindSeq, Seq: seq}, nil
	case yaml.ScalarNode:
		return scalarNodeToValue(n), nil
	case yaml.AliasNode:
		return nodeToValue(n.Alias)
	default:
		return NewNull(), nil
	}
}

func scalarNodeToValue(n *yaml.Node) *Value {
	switch n.Tag {
	case "!!null":
		return NewNull()
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err == nil {
			return NewBool(b)
		}
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err == nil {
			return NewInt(i)
		}
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err == nil {
			return &Value{Kind: KindScalar, Scalar: f}
		}
	}
	return NewString(n.Value)
}

// valueToNode converts a Value back into a *yaml.Node tree suitable for
// marshaling, preserving OrderedMap key order.
func valueToNode(v *Value) (*yaml.Node, error) {
	if v == nil || v.Kind == KindNull {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	switch v.Kind {
	case KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.Map.Keys() {
			child, _ := v.Map.Get(k)
			cn, err := valueToNode(child)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, cn)
		}
		return n, nil
	case KindSeq:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.Seq {
			cn, err := valueToNode(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, cn)
		}
		return n, nil
	case KindScalar:
		return scalarToNode(v.Scalar)
	default:
		return nil, fmt.Errorf("unsupported value kind %d", v.Kind)
	}
}

func scalarToNode(scalar any) (*yaml.Node, error) {
	switch s := scalar.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case bool:
		n := &yaml.Node{}
		if err := n.Encode(s); err != nil {
			return nil, err
		}
		return n, nil
	case string:
		n := &yaml.Node{}
		if err := n.Encode(s); err != nil {
			return nil, err
		}
		return n, nil
	case int64:
		n := &yaml.Node{}
		if err := n.Encode(s); err != nil {
			return nil, err
		}
		return n, nil
	case int:
		n := &yaml.Node{}
		if err := n.Encode(s); err != nil {
			return nil, err
		}
		return n, nil
	case float64:
		n := &yaml.Node{}
		if err := n.Encode(s); err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", scalar)
	}
}

// parseDocument decodes a YAML document's bytes into a Value tree.
func parseDocument(data []byte) (*Value, error) {
	var root yaml.Node
	if len(data) == 0 {
		return NewMap(), nil
	}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		// Empty document.
		return NewMap(), nil
	}
	return nodeToValue(&root)
}

// dumpDocument encodes a Value tree back into YAML bytes.
func dumpDocument(v *Value) ([]byte, error) {
	n, err := valueToNode(v)
	if err != nil {
		return nil, err
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{n}}
	return yaml.Marshal(doc)
}
