package tree

// Node is a project tree node. The implementations are Leaf, Folder, and List.
type Node interface {
	isNode()
}

// Leaf terminates recursion and carries the identity of one tree entry.
type Leaf struct {
	ReferenceID string
	Title       string
	IsContainer bool
}

// Folder wraps a single child node. Entry describes the folder itself when the
// repository reports an identifier and title for it.
type Folder struct {
	Entry *Leaf
	Child Node
}

// List wraps an ordered sequence of child nodes.
type List struct {
	Children []Node
}

func (Leaf) isNode()   {}
func (Folder) isNode() {}
func (List) isNode()   {}

// LeafItem is the flattened projection of a leaf node.
type LeafItem struct {
	ReferenceID string `json:"referenceId" yaml:"reference_id"`
	Title       string `json:"title" yaml:"title"`
	IsContainer bool   `json:"isContainer" yaml:"is_container"`
}

func (leaf Leaf) identified() bool {
	return len(leaf.ReferenceID) > 0 && len(leaf.Title) > 0
}

func (leaf Leaf) item() LeafItem {
	return LeafItem{
		ReferenceID: leaf.ReferenceID,
		Title:       leaf.Title,
		IsContainer: leaf.IsContainer,
	}
}
