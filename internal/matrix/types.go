package matrix

import (
	"encoding/json"
	"strings"

	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

// Project carries the project metadata used by the linter.
type Project struct {
	Label      string
	ShortLabel string
	Categories []string
}

// Field is one entry of an item's field list.
type Field struct {
	Name  string
	Type  string
	Value string
	ID    int64
}

// Item is the detail record of a single tree item.
type Item struct {
	ReferenceID string
	Title       string
	IsFolder    bool
	Fields      []Field
}

// UploadedFile describes a file stored by the repository.
type UploadedFile struct {
	FileID       int64  `json:"fileId"`
	FileFullPath string `json:"fileFullPath"`
	Key          string `json:"key"`
}

// FileFieldEntry is the value written into a file field for one uploaded file.
type FileFieldEntry struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}

type projectResponse struct {
	Label        string `json:"label"`
	ShortLabel   string `json:"shortLabel"`
	CategoryList struct {
		CategoryExtended []struct {
			Category struct {
				ShortLabel string `json:"shortLabel"`
				Label      string `json:"label"`
			} `json:"category"`
		} `json:"categoryExtended"`
	} `json:"categoryList"`
}

func (response projectResponse) project() Project {
	categories := make([]string, 0, len(response.CategoryList.CategoryExtended))
	for _, extended := range response.CategoryList.CategoryExtended {
		shortLabel := strings.TrimSpace(extended.Category.ShortLabel)
		if len(shortLabel) == 0 {
			continue
		}
		categories = append(categories, shortLabel)
	}
	return Project{
		Label:      response.Label,
		ShortLabel: response.ShortLabel,
		Categories: categories,
	}
}

type itemResponse struct {
	ItemRef      string            `json:"itemRef"`
	Title        string            `json:"title"`
	IsFolder     tree.FlexibleFlag `json:"isFolder"`
	FieldValList struct {
		FieldVal []fieldResponse `json:"fieldVal"`
	} `json:"fieldValList"`
}

type fieldResponse struct {
	FieldName string         `json:"fieldName"`
	FieldType string         `json:"fieldType"`
	Value     flexibleString `json:"value"`
	ID        int64          `json:"id"`
}

func (response itemResponse) item(referenceID string) Item {
	fields := make([]Field, 0, len(response.FieldValList.FieldVal))
	for _, field := range response.FieldValList.FieldVal {
		fields = append(fields, Field{
			Name:  field.FieldName,
			Type:  field.FieldType,
			Value: string(field.Value),
			ID:    field.ID,
		})
	}

	resolvedReference := strings.TrimSpace(response.ItemRef)
	if len(resolvedReference) == 0 {
		resolvedReference = referenceID
	}

	return Item{
		ReferenceID: resolvedReference,
		Title:       response.Title,
		IsFolder:    bool(response.IsFolder),
		Fields:      fields,
	}
}

// flexibleString keeps non-string field values as their raw JSON text.
type flexibleString string

func (value *flexibleString) UnmarshalJSON(data []byte) error {
	var decoded string
	if unmarshalError := json.Unmarshal(data, &decoded); unmarshalError == nil {
		*value = flexibleString(decoded)
		return nil
	}
	if strings.TrimSpace(string(data)) == "null" {
		*value = ""
		return nil
	}
	*value = flexibleString(data)
	return nil
}
