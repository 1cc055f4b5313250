package tree

import (
	"errors"
	"fmt"
)

const (
	// MaximumDepth bounds recursion so a cyclic node graph fails instead of running forever.
	MaximumDepth = 512

	treeTooDeepMessageConstant          = "project tree exceeds maximum depth"
	treeTooDeepTemplateConstant         = "%w (%d)"
	unsupportedNodeTypeTemplateConstant = "unsupported tree node type %T"
)

// ErrTreeTooDeep indicates the tree nests deeper than MaximumDepth.
var ErrTreeTooDeep = errors.New(treeTooDeepMessageConstant)

// Flatten walks the tree depth-first in pre-order and returns every node that
// carries both a reference identifier and a title, in document order.
func Flatten(root Node) ([]LeafItem, error) {
	var items []LeafItem
	if flattenError := flattenInto(root, 0, &items); flattenError != nil {
		return nil, flattenError
	}
	return items, nil
}

func flattenInto(node Node, depth int, items *[]LeafItem) error {
	if depth > MaximumDepth {
		return fmt.Errorf(treeTooDeepTemplateConstant, ErrTreeTooDeep, MaximumDepth)
	}

	switch typedNode := node.(type) {
	case nil:
		return nil
	case Leaf:
		appendLeaf(typedNode, items)
		return nil
	case *Leaf:
		if typedNode != nil {
			appendLeaf(*typedNode, items)
		}
		return nil
	case Folder:
		return flattenFolder(typedNode, depth, items)
	case *Folder:
		if typedNode == nil {
			return nil
		}
		return flattenFolder(*typedNode, depth, items)
	case List:
		return flattenList(typedNode, depth, items)
	case *List:
		if typedNode == nil {
			return nil
		}
		return flattenList(*typedNode, depth, items)
	default:
		return fmt.Errorf(unsupportedNodeTypeTemplateConstant, node)
	}
}

func appendLeaf(leaf Leaf, items *[]LeafItem) {
	if leaf.identified() {
		*items = append(*items, leaf.item())
	}
}

func flattenFolder(folder Folder, depth int, items *[]LeafItem) error {
	if folder.Entry != nil {
		appendLeaf(*folder.Entry, items)
	}
	return flattenInto(folder.Child, depth+1, items)
}

func flattenList(list List, depth int, items *[]LeafItem) error {
	for _, child := range list.Children {
		if childError := flattenInto(child, depth+1, items); childError != nil {
			return childError
		}
	}
	return nil
}
