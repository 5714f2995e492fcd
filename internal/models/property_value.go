package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PropertyValue is an element property coerced to a string. Completion
// output is loosely typed, so numbers and booleans are accepted verbatim.
type PropertyValue string

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return fmt.Errorf("property value: empty input")
	}
	switch raw[0] {
	case 'n':
		if string(raw) == "null" {
			return nil
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*v = PropertyValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			*v = PropertyValue(raw)
			return nil
		}
	case '{', '[':
		return fmt.Errorf("property value: objects and arrays are not allowed, got %s", raw)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			*v = PropertyValue(n.String())
			return nil
		}
	}
	return fmt.Errorf("property value: unsupported JSON %s", raw)
}

func (v PropertyValue) String() string {
	return string(v)
}
