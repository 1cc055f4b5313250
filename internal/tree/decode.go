package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	folderReferencePrefixConstant      = "F-"
	folderTypeValueConstant            = "folder"
	emptyTreePayloadMessageConstant    = "project tree payload is empty"
	treeDecodeErrorTemplateConstant    = "unable to decode project tree: %w"
	nodeDecodeErrorTemplateConstant    = "unable to decode tree node at depth %d: %w"
	unexpectedTokenTemplateConstant    = "unexpected tree node payload starting with %q"
	jsonArrayOpeningCharacterConstant  = '['
	jsonObjectOpeningCharacterConstant = '{'
)

// ErrEmptyTree indicates the repository returned no tree payload at all.
var ErrEmptyTree = errors.New(emptyTreePayloadMessageConstant)

type wireNode struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Type     string            `json:"type"`
	IsFolder FlexibleFlag      `json:"isFolder"`
	Children []json.RawMessage `json:"children"`
	Folder   json.RawMessage   `json:"folder"`
	List     []json.RawMessage `json:"list"`
}

// FlexibleFlag is a JSON boolean that also accepts the numeric and string
// spellings the repository uses ("1", "yes", "true").
type FlexibleFlag bool

// UnmarshalJSON implements json.Unmarshaler.
func (flag *FlexibleFlag) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(trimmed) {
	case "true", "1", "yes":
		*flag = true
	default:
		*flag = false
	}
	return nil
}

// Decode converts the repository's tree payload into a Node. A JSON array is a
// List; an object carrying an identifier and title becomes a Leaf, wrapped in a
// Folder when it owns children.
func Decode(payload []byte) (Node, error) {
	trimmedPayload := bytes.TrimSpace(payload)
	if len(trimmedPayload) == 0 || bytes.Equal(trimmedPayload, []byte("null")) {
		return nil, ErrEmptyTree
	}

	node, decodeError := decodeNode(trimmedPayload, 0)
	if decodeError != nil {
		return nil, fmt.Errorf(treeDecodeErrorTemplateConstant, decodeError)
	}
	return node, nil
}

func decodeNode(payload []byte, depth int) (Node, error) {
	if depth > MaximumDepth {
		return nil, fmt.Errorf(treeTooDeepTemplateConstant, ErrTreeTooDeep, MaximumDepth)
	}

	trimmedPayload := bytes.TrimSpace(payload)
	if len(trimmedPayload) == 0 || bytes.Equal(trimmedPayload, []byte("null")) {
		return nil, nil
	}

	switch trimmedPayload[0] {
	case jsonArrayOpeningCharacterConstant:
		var elements []json.RawMessage
		if unmarshalError := json.Unmarshal(trimmedPayload, &elements); unmarshalError != nil {
			return nil, fmt.Errorf(nodeDecodeErrorTemplateConstant, depth, unmarshalError)
		}
		return decodeList(elements, depth)
	case jsonObjectOpeningCharacterConstant:
		var decoded wireNode
		if unmarshalError := json.Unmarshal(trimmedPayload, &decoded); unmarshalError != nil {
			return nil, fmt.Errorf(nodeDecodeErrorTemplateConstant, depth, unmarshalError)
		}
		return decodeObject(decoded, depth)
	default:
		return nil, fmt.Errorf(unexpectedTokenTemplateConstant, trimmedPayload[:1])
	}
}

func decodeList(elements []json.RawMessage, depth int) (Node, error) {
	children := make([]Node, 0, len(elements))
	for _, element := range elements {
		child, childError := decodeNode(element, depth+1)
		if childError != nil {
			return nil, childError
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return List{Children: children}, nil
}

func decodeObject(decoded wireNode, depth int) (Node, error) {
	leaf := Leaf{
		ReferenceID: strings.TrimSpace(decoded.ID),
		Title:       strings.TrimSpace(decoded.Title),
		IsContainer: bool(decoded.IsFolder) ||
			len(decoded.Children) > 0 ||
			strings.EqualFold(decoded.Type, folderTypeValueConstant) ||
			strings.HasPrefix(strings.TrimSpace(decoded.ID), folderReferencePrefixConstant),
	}

	childElements := append(append([]json.RawMessage{}, decoded.Children...), decoded.List...)

	var folderChild Node
	if len(decoded.Folder) > 0 {
		decodedChild, childError := decodeNode(decoded.Folder, depth+1)
		if childError != nil {
			return nil, childError
		}
		folderChild = decodedChild
	}

	var listChild Node
	if len(childElements) > 0 {
		decodedList, listError := decodeList(childElements, depth+1)
		if listError != nil {
			return nil, listError
		}
		listChild = decodedList
	}

	if folderChild == nil && listChild == nil {
		if !leaf.identified() {
			return nil, nil
		}
		return leaf, nil
	}

	var entry *Leaf
	if leaf.identified() {
		leaf.IsContainer = true
		entry = &leaf
	}

	switch {
	case folderChild != nil && listChild != nil:
		return Folder{Entry: entry, Child: List{Children: []Node{folderChild, listChild}}}, nil
	case folderChild != nil:
		return Folder{Entry: entry, Child: folderChild}, nil
	case entry == nil:
		return listChild, nil
	default:
		return Folder{Entry: entry, Child: listChild}, nil
	}
}
