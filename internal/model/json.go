package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Int is a numeric field the engine may encode as a number, a numeric string or null.
type Int int64

// UnmarshalJSON accepts 42, "42", "42.0", "" and null.
func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isEmptyJSON(b) {
		*i = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*i = Int(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("model: invalid integer %s", b)
	}
	*i = Int(f)
	return nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int64) *Int {
	i := Int(v)
	return &i
}

// Text is a string field the engine may encode as a string, a number or a boolean
// (ports and hosts that can also hold ${variables}).
type Text string

// UnmarshalJSON keeps the literal text of scalar values.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if len(b) > 0 && (b[0] == '{' || b[0] == '[') {
		return fmt.Errorf("model: expected scalar, got %s", b)
	}
	*t = Text(b)
	return nil
}

// String returns a pointer to s, for nullable string fields.
func String(s string) *string {
	return &s
}

// List is a collection the engine encodes as a single object when it has one
// element, an array otherwise, and null or "" when empty. It always marshals as an array.
type List[T any] []T

// UnmarshalJSON accepts an object, an array, null or "".
func (l *List[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isEmptyJSON(b) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = List[T]{one}
	return nil
}

// Strings is the engine's {"string": [...]} list wrapper.
type Strings struct {
	String List[string] `json:"string"`
}

// StringEntry is one entry of a linked-hash-map whose keys and values are both
// strings: {"string": [key, value]}.
type StringEntry struct {
	String []string `json:"string"`
}

// Key returns the entry key or "".
func (e StringEntry) Key() string {
	if len(e.String) > 0 {
		return e.String[0]
	}
	return ""
}

// Value returns the entry value or "".
func (e StringEntry) Value() string {
	if len(e.String) > 1 {
		return e.String[1]
	}
	return ""
}

// ListEntry is one entry of a linked-hash-map of string to list of strings:
// {"string": key, "list": {"string": value-or-values}}.
type ListEntry struct {
	String string   `json:"string"`
	List   *Strings `json:"list"`
}

// Map is the engine's linked-hash-map encoding.
type Map[E any] struct {
	Class string  `json:"@class,omitempty"`
	Entry List[E] `json:"entry,omitempty"`
}

// NewMap returns an empty linked-hash-map.
func NewMap[E any](entries ...E) *Map[E] {
	return &Map[E]{Class: "linked-hash-map", Entry: entries}
}

// DefaultResourceIDs returns the resource id map every connector starts with.
func DefaultResourceIDs() *Map[StringEntry] {
	return NewMap(StringEntry{String: []string{"Default Resource", "[Default Resource]"}})
}

func isEmptyJSON(b []byte) bool {
	return len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`))
}

// Extra holds object keys the console does not model so they survive a round trip.
type Extra = map[string]json.RawMessage

// decodeObject unmarshals data into v (a pointer to a method-less alias type)
// and collects keys that v's fields do not claim into extra.
func decodeObject(data []byte, v any, extra *Extra) error {
	data = bytes.TrimSpace(data)
	if isEmptyJSON(data) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	known := knownKeys(reflect.TypeOf(v))
	for k := range all {
		if known[k] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		*extra = nil
		return nil
	}
	*extra = all
	return nil
}

// encodeObject marshals v (a method-less alias value) and merges extra keys
// that v does not already write.
func encodeObject(v any, extra Extra) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := out[k]; !ok {
			out[k] = raw
		}
	}
	return json.Marshal(out)
}

var knownKeyCache sync.Map // reflect.Type -> map[string]bool

func knownKeys(t reflect.Type) map[string]bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := knownKeyCache.Load(t); ok {
		return cached.(map[string]bool)
	}
	keys := make(map[string]bool)
	collectKeys(t, keys)
	knownKeyCache.Store(t, keys)
	return keys
}

func collectKeys(t reflect.Type, keys map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectKeys(ft, keys)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		keys[name] = true
	}
}
