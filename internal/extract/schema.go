package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// FieldKind enumerates the value shapes records use. Anything beyond these
// three has no business in an inter-agent contract.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldTextList
)

// Field describes one schema entry. Number fields carry clamp bounds; text
// fields may carry a closed enum (matched case-insensitively).
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	Enum     []string
	Min, Max float64
}

// Schema is the parametric target a stage decodes model output against. The
// structural pass (object-ness, required keys) runs through a compiled JSON
// Schema; field typing, enums and clamping run through a gjson walk so the
// violating field can be named.
type Schema struct {
	Name     string
	Fields   []Field
	compiled *jsonschema.Schema
}

// MustSchema builds and compiles a schema; panics on a bad definition, which
// is a programming error since all schemas are package constants.
func MustSchema(name string, fields ...Field) Schema {
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{"type": "object"}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return Schema{
		Name:     name,
		Fields:   fields,
		compiled: jsonschema.MustCompileString(name+".json", string(raw)),
	}
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Parse runs the full extraction ladder on raw model text: locate an object
// span, strict-parse, repair if needed, then validate against the schema.
func Parse(raw string, s Schema) (*Decoded, error) {
	span, ok := ExtractObject(raw)
	if !ok {
		return nil, errNoJSON()
	}
	if !gjson.Valid(span) {
		span, ok = RepairObject(span)
		if !ok {
			return nil, errMalformed("unparseable after repair heuristics")
		}
	}
	return s.Decode(span)
}

// Decode validates an already-parseable span and wraps it for typed access.
func (s Schema) Decode(span string) (*Decoded, error) {
	var v any
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return nil, errMalformed(err.Error())
	}
	root := gjson.Parse(span)
	if err := s.compiled.Validate(v); err != nil {
		// Name the first absent required field; fall back to the compiled
		// schema's message for anything else (e.g. root not an object).
		for _, f := range s.Fields {
			if f.Required && !root.Get(f.Name).Exists() {
				return nil, errSchema(f.Name, "missing required field")
			}
		}
		return nil, errSchema("", err.Error())
	}
	for _, f := range s.Fields {
		val := root.Get(f.Name)
		if !val.Exists() {
			continue // optional and absent: getters default it
		}
		if err := checkField(f, val); err != nil {
			return nil, err
		}
	}
	return &Decoded{schema: s, root: root}, nil
}

func checkField(f Field, val gjson.Result) error {
	switch f.Kind {
	case FieldText:
		// Explicit null exists in gjson terms but is not a typeable text value.
		if val.Type == gjson.Null || val.IsObject() || val.IsArray() {
			if f.Required {
				return errSchema(f.Name, "expected text value")
			}
			return nil
		}
		if len(f.Enum) > 0 {
			got := normalizeEnum(val.String())
			for _, allowed := range f.Enum {
				if got == allowed {
					return nil
				}
			}
			return errSchema(f.Name, fmt.Sprintf("value %q not in %v", val.String(), f.Enum))
		}
	case FieldNumber:
		switch val.Type {
		case gjson.Number:
		case gjson.String:
			if _, err := strconv.ParseFloat(strings.TrimSpace(val.Str), 64); err != nil {
				return errSchema(f.Name, fmt.Sprintf("value %q is not numeric", val.Str))
			}
		default:
			if f.Required {
				return errSchema(f.Name, "expected numeric value")
			}
		}
	case FieldTextList:
		if !val.IsArray() && val.Type != gjson.String {
			if f.Required {
				return errSchema(f.Name, "expected list of text values")
			}
		}
	}
	return nil
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Decoded provides typed, coerced access to a validated span. Getters never
// fail: absent optional fields yield zero values, numbers clamp to their
// declared range, lists default to empty.
type Decoded struct {
	schema Schema
	root   gjson.Result
}

// Raw returns the validated JSON span.
func (d *Decoded) Raw() string {
	return d.root.Raw
}

func (d *Decoded) Text(name string) string {
	val := d.root.Get(name)
	if !val.Exists() || val.IsObject() || val.IsArray() {
		return ""
	}
	if f, ok := d.schema.field(name); ok && len(f.Enum) > 0 {
		return normalizeEnum(val.String())
	}
	return strings.TrimSpace(val.String())
}

func (d *Decoded) Number(name string) float64 {
	f, _ := d.schema.field(name)
	val := d.root.Get(name)
	var n float64
	switch val.Type {
	case gjson.Number:
		n = val.Num
	case gjson.String:
		n, _ = strconv.ParseFloat(strings.TrimSpace(val.Str), 64)
	}
	return clamp(n, f.Min, f.Max)
}

func (d *Decoded) TextList(name string) []string {
	val := d.root.Get(name)
	out := []string{}
	switch {
	case val.IsArray():
		val.ForEach(func(_, item gjson.Result) bool {
			s := strings.TrimSpace(item.String())
			if s != "" && !item.IsObject() && !item.IsArray() {
				out = append(out, s)
			}
			return true
		})
	case val.Type == gjson.String:
		if s := strings.TrimSpace(val.Str); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(n, min, max float64) float64 {
	if min >= max {
		return n
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
