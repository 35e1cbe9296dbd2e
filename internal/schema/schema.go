package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/boardstore/internal/storeerr"
)

// Kind is the input kind of a field. It fixes the Go type of the value.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindHidden   Kind = "hidden"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindNumber   Kind = "number"
	KindRange    Kind = "range"
	KindColor    Kind = "color"
)

// IsString reports whether values of this kind are strings.
func (k Kind) IsString() bool {
	switch k {
	case KindText, KindTextarea, KindHidden, KindSelect, KindColor:
		return true
	}
	return false
}

// IsInt reports whether values of this kind are int64.
func (k Kind) IsInt() bool {
	return k == KindNumber || k == KindRange
}

// Field describes one declared field of a record type.
type Field struct {
	Name     string
	Kind     Kind
	Label    string // explicit label; Label() falls back to a generated one
	Required bool
	Default  any // string, bool or int64; nil if the field has no default
	MaxLen   int // max length in runes for text kinds, 0 = unlimited
	Min      *int64
	Max      *int64
	Options  []string
}

// DisplayLabel returns the field's label, generated from its name if none
// was declared.
func (f *Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return Label(f.Name)
}

// Normalize converts v into the Go type of the field's kind.
// nil stays nil. Strings are put in NFC, the form they are stored in.
// Integral floats and json.Number are accepted for numbers since decoded
// JSON and BSON payloads produce them.
func (f *Field) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case f.Kind.IsString():
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string, got %T", v)
		}
		return norm.NFC.String(s), nil
	case f.Kind == KindCheckbox:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean, got %T", v)
		}
		return b, nil
	case f.Kind.IsInt():
		return toInt64(v)
	default:
		return nil, fmt.Errorf("unsupported field kind %q", f.Kind)
	}
}

// Parse converts a command-line string into a value of the field's kind.
func (f *Field) Parse(s string) (any, error) {
	switch {
	case f.Kind.IsString():
		return s, nil
	case f.Kind == KindCheckbox:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean", f.Name, s)
		}
		return b, nil
	case f.Kind.IsInt():
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", f.Name, s)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%s: unsupported field kind %q", f.Name, f.Kind)
	}
}

// check validates a non-empty, normalized value against the field's
// constraints. Returns "" if the value is acceptable.
func (f *Field) check(v any) string {
	switch val := v.(type) {
	case string:
		if f.MaxLen > 0 && utf8.RuneCountInString(val) > f.MaxLen {
			return fmt.Sprintf("Field %q must not exceed %d characters.", f.DisplayLabel(), f.MaxLen)
		}
		if f.Kind == KindSelect && len(f.Options) > 0 && !slices.Contains(f.Options, val) {
			return fmt.Sprintf("Field %q must be one of %v.", f.DisplayLabel(), f.Options)
		}
	case int64:
		if f.Min != nil && val < *f.Min {
			return fmt.Sprintf("Field %q must be at least %d.", f.DisplayLabel(), *f.Min)
		}
		if f.Max != nil && val > *f.Max {
			return fmt.Sprintf("Field %q must be at most %d.", f.DisplayLabel(), *f.Max)
		}
	}
	return ""
}

func toInt64(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, fmt.Errorf("must be an integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("must be an integer, got %s", n)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("must be a number, got %T", v)
	}
}

// RelField is the field holding a child record's parent id.
const RelField = "rel"

// IDField is the key under which exported and stored payloads carry the
// record id.
const IDField = "id"

// Type is the schema of one record type. Immutable after the catalog is
// loaded.
type Type struct {
	Name      string
	Parent    string // parent type name; "" for root types
	Child     string // child type name; "" for leaf types
	Singleton bool   // configuration record with at most one stored instance
	Fields    []Field

	byName map[string]int
}

// NewType builds a Type and indexes its fields.
func NewType(name, parent, child string, fields ...Field) *Type {
	t := &Type{Name: name, Parent: parent, Child: child, Fields: fields}
	t.reindex()
	return t
}

func (t *Type) reindex() {
	t.byName = make(map[string]int, len(t.Fields))
	for i, f := range t.Fields {
		t.byName[f.Name] = i
	}
}

// Field returns the declared field with the given name.
func (t *Type) Field(name string) (*Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.Fields[i], true
}

// HasField reports whether name is declared.
func (t *Type) HasField(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// FieldNames returns declared field names in declaration order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// IsRoot reports whether the type has no parent type.
func (t *Type) IsRoot() bool { return t.Parent == "" }

// Defaults returns the default value of every declared field that has one.
func (t *Type) Defaults() map[string]any {
	out := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// Validate checks data against the schema and returns every problem found
// (does not fail-fast). Only declared fields are inspected.
func (t *Type) Validate(data map[string]any) []storeerr.FieldError {
	var errs []storeerr.FieldError
	for i := range t.Fields {
		f := &t.Fields[i]
		v := data[f.Name]
		if IsEmpty(v) {
			if f.Required {
				errs = append(errs, storeerr.FieldError{
					Field:   f.Name,
					Message: fmt.Sprintf("Field %q is required.", f.DisplayLabel()),
				})
			}
			continue
		}
		n, err := f.Normalize(v)
		if err != nil {
			errs = append(errs, storeerr.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("Field %q %s.", f.DisplayLabel(), err),
			})
			continue
		}
		if msg := f.check(n); msg != "" {
			errs = append(errs, storeerr.FieldError{Field: f.Name, Message: msg})
		}
	}
	return errs
}

// IsEmpty reports whether v counts as "no value": nil, the empty string, or
// an empty slice or map. false and 0 are values.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
