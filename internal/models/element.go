package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type ElementType string

const (
	ElementImage   ElementType = "image"
	ElementInput   ElementType = "input"
	ElementText    ElementType = "text"
	ElementButton  ElementType = "button"
	ElementUnknown ElementType = "unknown"
)

// ParseElementType maps a loose type name onto a known ElementType.
// Anything unrecognised, including the empty string, is ElementUnknown.
func ParseElementType(raw string) ElementType {
	switch ElementType(strings.ToLower(strings.TrimSpace(raw))) {
	case ElementImage:
		return ElementImage
	case ElementInput:
		return ElementInput
	case ElementText:
		return ElementText
	case ElementButton:
		return ElementButton
	}
	return ElementUnknown
}

type ImageProps struct {
	Description string
}

type InputProps struct {
	Description string
	Placeholder string
}

type TextProps struct {
	Content string
}

type ButtonProps struct {
	Content string
	Action  string
}

// UiElement is one widget of a Screen. Exactly one of the typed property
// blocks is set, selected by Type; ElementUnknown carries only Extra.
// Extra keeps property keys that the type does not define.
type UiElement struct {
	ID     string
	Type   ElementType
	Image  *ImageProps
	Input  *InputProps
	Text   *TextProps
	Button *ButtonProps
	Extra  map[string]string
}

// NewUiElement builds the typed variant for t from a flat property map.
func NewUiElement(id string, t ElementType, props map[string]string) UiElement {
	el := UiElement{ID: id, Type: t}
	rest := make(map[string]string, len(props))
	for k, v := range props {
		rest[k] = v
	}
	take := func(key string) string {
		v := rest[key]
		delete(rest, key)
		return v
	}
	switch t {
	case ElementImage:
		el.Image = &ImageProps{Description: take("description")}
	case ElementInput:
		el.Input = &InputProps{Description: take("description"), Placeholder: take("placeholder")}
	case ElementText:
		el.Text = &TextProps{Content: take("content")}
	case ElementButton:
		el.Button = &ButtonProps{Content: take("content"), Action: take("action")}
	default:
		el.Type = ElementUnknown
	}
	if len(rest) > 0 {
		el.Extra = rest
	}
	return el
}

// Properties flattens the element back into its wire-level string map.
// Empty typed fields are omitted.
func (e UiElement) Properties() map[string]string {
	out := make(map[string]string, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = v
	}
	set := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}
	switch {
	case e.Image != nil:
		set("description", e.Image.Description)
	case e.Input != nil:
		set("description", e.Input.Description)
		set("placeholder", e.Input.Placeholder)
	case e.Text != nil:
		set("content", e.Text.Content)
	case e.Button != nil:
		set("content", e.Button.Content)
		set("action", e.Button.Action)
	}
	return out
}

// Label is the most human-readable property of the element.
func (e UiElement) Label() string {
	switch {
	case e.Text != nil:
		return e.Text.Content
	case e.Button != nil:
		return e.Button.Content
	case e.Input != nil:
		return e.Input.Description
	case e.Image != nil:
		return e.Image.Description
	}
	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		return e.Extra[keys[0]]
	}
	return ""
}

type elementJSON struct {
	ID         string                    `json:"id"`
	Type       string                    `json:"type"`
	Properties map[string]PropertyValue `json:"properties"`
}

func (e UiElement) MarshalJSON() ([]byte, error) {
	props := e.Properties()
	wire := elementJSON{ID: e.ID, Type: string(e.Type), Properties: make(map[string]PropertyValue, len(props))}
	if wire.Type == "" {
		wire.Type = string(ElementUnknown)
	}
	for k, v := range props {
		wire.Properties[k] = PropertyValue(v)
	}
	return json.Marshal(wire)
}

func (e *UiElement) UnmarshalJSON(data []byte) error {
	var wire elementJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("ui element: %w", err)
	}
	*e = NewUiElement(wire.ID, ParseElementType(wire.Type), flatten(wire.Properties))
	return nil
}

func flatten(in map[string]PropertyValue) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v.String()
	}
	return out
}
