package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed catalog.cue
var catalogCUE string

// CatalogError reports a problem in a type catalog.
type CatalogError struct {
	Type    string
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	where := e.Type
	if e.Field != "" {
		where += "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("catalog %s (%s): %s", where, e.Pos, e.Message)
	}
	if where == "" {
		return "catalog: " + e.Message
	}
	return fmt.Sprintf("catalog %s: %s", where, e.Message)
}

// LoadCatalog compiles the embedded catalog.cue into record type schemas,
// in declaration order.
func LoadCatalog() ([]*Type, error) {
	return ParseCatalog(catalogCUE)
}

// MustLoadCatalog is LoadCatalog for package initialization; it panics on a
// broken embedded catalog.
func MustLoadCatalog() []*Type {
	types, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return types
}

// ParseCatalog compiles CUE source declaring a `types` struct into record
// type schemas. Parent/child links are checked for consistency.
func ParseCatalog(src string) ([]*Type, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("catalog.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CatalogError{Message: "types is required"}
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var types []*Type
	for iter.Next() {
		t, err := parseType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	if err := checkLinks(types); err != nil {
		return nil, err
	}
	return types, nil
}

func parseType(name string, v cue.Value) (*Type, error) {
	t := &Type{Name: name}

	var err error
	if t.Parent, err = optionalString(v, "parent"); err != nil {
		return nil, &CatalogError{Type: name, Message: err.Error(), Pos: v.Pos()}
	}
	if t.Child, err = optionalString(v, "child"); err != nil {
		return nil, &CatalogError{Type: name, Message: err.Error(), Pos: v.Pos()}
	}
	if sv := concrete(v.LookupPath(cue.ParsePath("singleton"))); sv.Exists() {
		if t.Singleton, err = sv.Bool(); err != nil {
			return nil, &CatalogError{Type: name, Message: err.Error(), Pos: sv.Pos()}
		}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CatalogError{Type: name, Message: "fields is required", Pos: v.Pos()}
	}
	fi, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for fi.Next() {
		f, err := parseField(fi.Label(), fi.Value())
		if err != nil {
			return nil, &CatalogError{Type: name, Field: fi.Label(), Message: err.Error(), Pos: fi.Value().Pos()}
		}
		t.Fields = append(t.Fields, f)
	}
	if len(t.Fields) == 0 {
		return nil, &CatalogError{Type: name, Message: "at least one field is required", Pos: v.Pos()}
	}
	t.reindex()
	if !t.IsRoot() && !t.HasField(RelField) {
		return nil, &CatalogError{Type: name, Message: "child types must declare a rel field", Pos: v.Pos()}
	}
	return t, nil
}

func parseField(name string, v cue.Value) (Field, error) {
	f := Field{Name: name}

	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return f, fmt.Errorf("kind: %w", err)
	}
	f.Kind = Kind(kind)

	if f.Label, err = optionalString(v, "label"); err != nil {
		return f, err
	}
	if rv := concrete(v.LookupPath(cue.ParsePath("required"))); rv.Exists() {
		if f.Required, err = rv.Bool(); err != nil {
			return f, fmt.Errorf("required: %w", err)
		}
	}
	if mv := concrete(v.LookupPath(cue.ParsePath("max_len"))); mv.Exists() {
		n, err := mv.Int64()
		if err != nil {
			return f, fmt.Errorf("max_len: %w", err)
		}
		f.MaxLen = int(n)
	}
	if f.Min, err = optionalInt(v, "min"); err != nil {
		return f, err
	}
	if f.Max, err = optionalInt(v, "max"); err != nil {
		return f, err
	}
	if ov := concrete(v.LookupPath(cue.ParsePath("options"))); ov.Exists() {
		list, err := ov.List()
		if err != nil {
			return f, fmt.Errorf("options: %w", err)
		}
		for list.Next() {
			opt, err := list.Value().String()
			if err != nil {
				return f, fmt.Errorf("options: %w", err)
			}
			f.Options = append(f.Options, opt)
		}
	}

	if dv := concrete(v.LookupPath(cue.ParsePath("value"))); dv.Exists() {
		def, err := defaultValue(dv)
		if err != nil {
			return f, fmt.Errorf("value: %w", err)
		}
		if f.Default, err = f.Normalize(def); err != nil {
			return f, fmt.Errorf("value: %w", err)
		}
	}
	return f, nil
}

// concrete resolves defaults and returns a zero (non-existent) value if v is
// absent or not concrete, so optional attributes can be probed with Exists.
func concrete(v cue.Value) cue.Value {
	if !v.Exists() {
		return v
	}
	if d, ok := v.Default(); ok {
		v = d
	}
	if !v.IsConcrete() {
		return cue.Value{}
	}
	return v
}

func optionalString(v cue.Value, path string) (string, error) {
	sv := concrete(v.LookupPath(cue.ParsePath(path)))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func optionalInt(v cue.Value, path string) (*int64, error) {
	iv := concrete(v.LookupPath(cue.ParsePath(path)))
	if !iv.Exists() {
		return nil, nil
	}
	n, err := iv.Int64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &n, nil
}

func defaultValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.BoolKind:
		return v.Bool()
	default:
		return nil, fmt.Errorf("unsupported default of kind %s", v.Kind())
	}
}

// checkLinks verifies that every parent/child reference names a declared type
// and that both ends agree.
func checkLinks(types []*Type) error {
	byName := make(map[string]*Type, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}
	for _, t := range types {
		if t.Child != "" {
			child, ok := byName[t.Child]
			if !ok {
				return &CatalogError{Type: t.Name, Message: fmt.Sprintf("unknown child type %q", t.Child)}
			}
			if child.Parent != t.Name {
				return &CatalogError{Type: t.Name, Message: fmt.Sprintf("child type %q declares parent %q", t.Child, child.Parent)}
			}
		}
		if t.Parent != "" {
			parent, ok := byName[t.Parent]
			if !ok {
				return &CatalogError{Type: t.Name, Message: fmt.Sprintf("unknown parent type %q", t.Parent)}
			}
			if parent.Child != t.Name {
				return &CatalogError{Type: t.Name, Message: fmt.Sprintf("parent type %q declares child %q", t.Parent, parent.Child)}
			}
		}
		if t.Singleton && (t.Parent != "" || t.Child != "") {
			return &CatalogError{Type: t.Name, Message: "singleton types cannot have a parent or child"}
		}
	}
	return nil
}

// formatCUEError flattens a CUE error list into a CatalogError carrying the
// first position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CatalogError{Message: err.Error()}
	}
	first := errs[0]
	var pos token.Pos
	if positions := errors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &CatalogError{Message: errors.Details(err, nil), Pos: pos}
}
