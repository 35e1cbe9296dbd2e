// Package codec encodes the export payload for transport.
//
// A Payload maps a record type name to its exported entries. Each entry is
// the record's field map plus its "id". Three encodings are provided:
//   - json: indented canonical JSON (sorted keys, NFC strings)
//   - bson: a single BSON document, one array per type
//   - yaml: block-style YAML with sorted keys
//
// Decoding checks only the envelope shape (an object whose values are arrays
// of objects); field values are left as decoded for the schema layer to
// normalize.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"

	"github.com/roach88/boardstore/internal/storeerr"
)

// Entry is one exported record: its fields plus "id".
type Entry = map[string]any

// Payload maps type names to exported entries.
type Payload map[string][]Entry

// Codec is a transport encoding of a Payload.
type Codec interface {
	Name() string
	Encode(p Payload) ([]byte, error)
	Decode(data []byte) (Payload, error)
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var codecs = map[string]Codec{
	"json": JSON{},
	"bson": BSON{},
	"yaml": YAML{},
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q: must be one of %v", name, Names())
	}
	return c, nil
}

// JSON is the default export encoding.
type JSON struct{}

// Name implements Codec.
func (JSON) Name() string { return "json" }

// Encode implements Codec.
func (JSON) Encode(p Payload) ([]byte, error) {
	compact, err := MarshalCanonical(p)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Decode implements Codec. Numbers are kept as json.Number.
func (JSON) Decode(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, invalidPayload("payload is not valid JSON", err)
	}
	return FromValue(raw)
}

// BSON is the binary export encoding.
type BSON struct{}

// Name implements Codec.
func (BSON) Name() string { return "bson" }

// Encode implements Codec.
func (BSON) Encode(p Payload) ([]byte, error) {
	doc := make(map[string]any, len(p))
	for typ, entries := range p {
		doc[typ] = entries
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode bson: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (BSON) Decode(data []byte) (Payload, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, invalidPayload("payload is not a BSON document", err)
	}
	return FromValue(doc)
}

// YAML is the human-editable export encoding.
type YAML struct{}

// Name implements Codec.
func (YAML) Name() string { return "yaml" }

// Encode implements Codec.
func (YAML) Encode(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]Entry(p)); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (YAML) Decode(data []byte) (Payload, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalidPayload("payload is not valid YAML", err)
	}
	return FromValue(raw)
}

// FromValue converts a generically decoded document into a Payload. The
// document must be an object whose values are arrays of objects.
func FromValue(v any) (Payload, error) {
	top, ok := asObject(v)
	if !ok {
		return nil, invalidPayload(fmt.Sprintf("payload must be an object, got %T", v), nil)
	}
	p := make(Payload, len(top))
	for typ, rawList := range top {
		list, ok := asArray(rawList)
		if !ok {
			return nil, invalidPayload(fmt.Sprintf("%q must be an array, got %T", typ, rawList), nil)
		}
		entries := make([]Entry, 0, len(list))
		for i, rawEntry := range list {
			e, ok := asObject(rawEntry)
			if !ok {
				return nil, invalidPayload(fmt.Sprintf("%s[%d] must be an object, got %T", typ, i, rawEntry), nil)
			}
			entries = append(entries, e)
		}
		p[typ] = entries
	}
	return p, nil
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case primitive.M:
		return map[string]any(m), true
	case primitive.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case primitive.A:
		return []any(a), true
	}
	return nil, false
}

func invalidPayload(msg string, err error) error {
	return storeerr.Wrap(storeerr.KindValidation, storeerr.CodeInvalidPayload, "codec.decode", msg, err)
}
