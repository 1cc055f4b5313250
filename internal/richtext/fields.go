package richtext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	fieldTypeRichTextConstant              = "richtext"
	fieldTypeDHFConstant                   = "dhf"
	malformedEnvelopeMessageConstant       = "malformed dhf envelope"
	malformedEnvelopeErrorTemplateConstant = "%w: %w"
)

// FieldType identifies how a field stores its value.
type FieldType string

// Field types that can carry rich text. Every other type is ignored.
const (
	FieldTypeRichText FieldType = FieldType(fieldTypeRichTextConstant)
	FieldTypeDHF      FieldType = FieldType(fieldTypeDHFConstant)
)

// ErrMalformedEnvelope reports a dhf field whose value is not valid JSON.
var ErrMalformedEnvelope = errors.New(malformedEnvelopeMessageConstant)

type dhfEnvelope struct {
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	FieldValue json.RawMessage `json:"fieldValue"`
}

// Unwrap returns the HTML fragment stored in a field. The boolean is false when
// the field carries no rich text. A dhf field with unparsable JSON yields no
// fragment and an error wrapping ErrMalformedEnvelope; callers skip the field.
func Unwrap(fieldType FieldType, rawValue string) (string, bool, error) {
	if len(strings.TrimSpace(rawValue)) == 0 {
		return "", false, nil
	}

	switch FieldType(strings.ToLower(strings.TrimSpace(string(fieldType)))) {
	case FieldTypeRichText:
		return rawValue, true, nil
	case FieldTypeDHF:
		return unwrapEnvelope(rawValue)
	default:
		return "", false, nil
	}
}

func unwrapEnvelope(rawValue string) (string, bool, error) {
	var envelope dhfEnvelope
	if unmarshalError := json.Unmarshal([]byte(rawValue), &envelope); unmarshalError != nil {
		return "", false, fmt.Errorf(malformedEnvelopeErrorTemplateConstant, ErrMalformedEnvelope, unmarshalError)
	}

	if envelope.Type != fieldTypeRichTextConstant || len(envelope.FieldValue) == 0 {
		return "", false, nil
	}

	var fragment string
	if unmarshalError := json.Unmarshal(envelope.FieldValue, &fragment); unmarshalError != nil {
		// fieldValue holds a non-string payload
		return "", false, nil
	}

	if len(fragment) == 0 {
		return "", false, nil
	}
	return fragment, true, nil
}
