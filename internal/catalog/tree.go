package catalog

import (
	"encoding/json"
	"fmt"
)

// RawNode mirrors one element of the category endpoint's "data" array.
// Containers set ChildrenOnly and carry Nodes; leaves carry the category fields.
type RawNode struct {
	ChildrenOnly bool       `json:"childrenOnly"`
	Nodes        *[]RawNode `json:"nodes,omitempty"`
	ID           *ID        `json:"id,omitempty"`
	Name         string     `json:"name,omitempty"`
	URL          string     `json:"url,omitempty"`
	ShardKey     string     `json:"shardKey,omitempty"`
	Query        string     `json:"query,omitempty"`
	RawQuery     string     `json:"rawQuery,omitempty"`
}

// Node is either a Container or a Leaf.
type Node interface {
	isNode()
}

// Container groups child nodes and is never ingested itself.
type Container struct {
	Children []Node
}

// Leaf wraps an ingestible category.
type Leaf struct {
	Category Category
}

func (Container) isNode() {}
func (Leaf) isNode()      {}

// ParseResult is the flattened output of the category parser.
type ParseResult struct {
	Categories []Category
	// Skipped lists malformed nodes dropped in lenient mode.
	Skipped []*MalformedCategoryError
}

type categoryEnvelope struct {
	Data *[]RawNode `json:"data"`
}

// ParseCategories decodes a category endpoint body and flattens it.
func ParseCategories(body []byte, strict bool) (ParseResult, error) {
	var env categoryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ParseResult{}, &MalformedCategoryError{Path: "$", Reason: err.Error()}
	}
	if env.Data == nil {
		return ParseResult{}, &MalformedCategoryError{Path: "$", Reason: "missing data array"}
	}
	return ParseNodes(*env.Data, strict)
}

// ParseNodes converts raw nodes into a typed tree and flattens it. In strict
// mode the first malformed node aborts the parse; otherwise malformed nodes
// are skipped and reported in the result.
func ParseNodes(raw []RawNode, strict bool) (ParseResult, error) {
	var skipped []*MalformedCategoryError
	nodes, err := buildNodes(raw, "data", strict, &skipped)
	if err != nil {
		return ParseResult{}, err
	}
	return ParseResult{Categories: Flatten(nodes), Skipped: skipped}, nil
}

func buildNodes(
	raw []RawNode,
	path string,
	strict bool,
	skipped *[]*MalformedCategoryError,
) ([]Node, *MalformedCategoryError) {
	nodes := make([]Node, 0, len(raw))
	for i, rn := range raw {
		nodePath := fmt.Sprintf("%s[%d]", path, i)
		node, err := buildNode(rn, nodePath, strict, skipped)
		if err != nil {
			if strict {
				return nil, err
			}
			*skipped = append(*skipped, err)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func buildNode(
	rn RawNode,
	path string,
	strict bool,
	skipped *[]*MalformedCategoryError,
) (Node, *MalformedCategoryError) {
	if rn.ChildrenOnly {
		if rn.Nodes == nil {
			return nil, &MalformedCategoryError{Path: path, Reason: "container without nodes"}
		}
		children, err := buildNodes(*rn.Nodes, path+".nodes", strict, skipped)
		if err != nil {
			return nil, err
		}
		return Container{Children: children}, nil
	}
	if rn.ID == nil || *rn.ID == "" {
		return nil, &MalformedCategoryError{Path: path, Reason: "leaf without id"}
	}
	if rn.ShardKey == "" {
		return nil, &MalformedCategoryError{Path: path, Reason: "leaf without shardKey"}
	}
	return Leaf{Category: Category{
		ID:       *rn.ID,
		Name:     rn.Name,
		URL:      rn.URL,
		ShardKey: rn.ShardKey,
		Query:    rn.Query,
		RawQuery: rn.RawQuery,
	}}, nil
}

// Flatten walks the tree depth-first and returns the leaves in document order.
func Flatten(nodes []Node) []Category {
	out := make([]Category, 0, len(nodes))
	stack := make([]Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := n.(type) {
		case Leaf:
			out = append(out, v.Category)
		case Container:
			for i := len(v.Children) - 1; i >= 0; i-- {
				stack = append(stack, v.Children[i])
			}
		}
	}
	return out
}
