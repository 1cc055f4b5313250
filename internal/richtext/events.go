package richtext

import (
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// EventKind enumerates the tokenizer callbacks.
type EventKind int

// Event kinds emitted by Events.
const (
	EventOpenTag EventKind = iota
	EventText
	EventCloseTag
)

// Event is one step of the forward pass over a fragment.
type Event struct {
	Kind       EventKind
	Name       string
	Attributes map[string]string
	Text       string
}

// Attribute returns the named attribute of an open-tag event.
func (event Event) Attribute(name string) (string, bool) {
	value, present := event.Attributes[name]
	return value, present
}

// Events lazily tokenizes fragment. Self-closing tags emit an open and a close
// event. Tokenization stops at the first tokenizer error, so a fragment with an
// unparsable tail still yields every event before it.
func Events(fragment string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		tokenizer := html.NewTokenizer(strings.NewReader(fragment))
		for {
			switch tokenizer.Next() {
			case html.ErrorToken:
				return
			case html.StartTagToken:
				if !yield(openTagEvent(tokenizer)) {
					return
				}
			case html.SelfClosingTagToken:
				openEvent := openTagEvent(tokenizer)
				if !yield(openEvent) {
					return
				}
				if !yield(Event{Kind: EventCloseTag, Name: openEvent.Name}) {
					return
				}
			case html.EndTagToken:
				tagName, _ := tokenizer.TagName()
				if !yield(Event{Kind: EventCloseTag, Name: string(tagName)}) {
					return
				}
			case html.TextToken:
				if !yield(Event{Kind: EventText, Text: string(tokenizer.Text())}) {
					return
				}
			}
		}
	}
}

func openTagEvent(tokenizer *html.Tokenizer) Event {
	tagName, hasAttributes := tokenizer.TagName()
	event := Event{Kind: EventOpenTag, Name: string(tagName)}
	for hasAttributes {
		var key, value []byte
		key, value, hasAttributes = tokenizer.TagAttr()
		if event.Attributes == nil {
			event.Attributes = make(map[string]string)
		}
		attributeName := string(key)
		if _, seen := event.Attributes[attributeName]; seen {
			continue
		}
		event.Attributes[attributeName] = string(value)
	}
	return event
}
