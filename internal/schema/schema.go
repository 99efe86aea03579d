// Package schema describes the typed fields of a named index and persists
// that description next to the corpus.
package schema

import (
	"fmt"
	"strings"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

// Type is the semantic type of a field.
type Type int

const (
	// String fields are indexed as a single exact-match term.
	String Type = iota + 1
	// Text fields are analyzed (tokenized) before indexing.
	Text
	// Int32 fields hold 32-bit signed integers.
	Int32
	// Double fields hold 64-bit floating point numbers.
	Double
	// Single fields hold 32-bit floating point numbers.
	Single
)

var typeNames = map[Type]string{
	String: "string",
	Text:   "text",
	Int32:  "int32",
	Double: "double",
	Single: "single",
}

// String returns the lower-case name used in persisted mappings.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Valid reports whether t is one of the known field types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Numeric reports whether values of t are indexed as numbers.
func (t Type) Numeric() bool {
	return t == Int32 || t == Double || t == Single
}

// ParseType parses a type name case-insensitively.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q (valid: string, text, int32, double, single)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown field type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Field describes one field of an index.
type Field struct {
	Name    string `yaml:"name" json:"name"`
	Type    Type   `yaml:"type" json:"type"`
	Indexed bool   `yaml:"indexed" json:"indexed"`
	Stored  bool   `yaml:"stored" json:"stored"`
	Primary bool   `yaml:"primary,omitempty" json:"primary,omitempty"`
}

// Schema is the ordered field list of an index. A loaded Schema is never
// modified; a remap replaces it wholesale.
type Schema struct {
	Fields []Field `yaml:"fields" json:"fields"`
}

// New returns a schema over a copy of fields.
func New(fields ...Field) *Schema {
	return &Schema{Fields: append([]Field(nil), fields...)}
}

// Clone returns a deep copy of s.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	return New(s.Fields...)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Primary returns the field designated as the default query target.
// The second result is false when no field is primary.
func (s *Schema) Primary() (Field, bool) {
	for _, f := range s.Fields {
		if f.Primary {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports whether s and other describe the same fields in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// Validate checks the schema invariants: at least one field, non-empty unique
// names, known types, every field indexed or stored, and exactly one primary
// field which must be indexed.
func Validate(s *Schema) error {
	if s == nil || len(s.Fields) == 0 {
		return txerrors.SchemaError("schema must declare at least one field")
	}

	seen := make(map[string]struct{}, len(s.Fields))
	primaries := 0
	for i, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return txerrors.SchemaError(fmt.Sprintf("field %d has an empty name", i)).
				WithDetail("position", fmt.Sprint(i))
		}
		if _, dup := seen[f.Name]; dup {
			return fieldError(f, "duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if !f.Type.Valid() {
			return fieldError(f, "field %q has unknown type %d", f.Name, int(f.Type))
		}
		if !f.Indexed && !f.Stored {
			return fieldError(f, "field %q is neither indexed nor stored", f.Name)
		}
		if f.Primary {
			primaries++
			if !f.Indexed {
				return fieldError(f, "primary field %q must be indexed", f.Name)
			}
		}
	}

	switch {
	case primaries == 0:
		return txerrors.SchemaError("schema must designate exactly one primary field, found none")
	case primaries > 1:
		return txerrors.SchemaError(fmt.Sprintf("schema must designate exactly one primary field, found %d", primaries))
	}
	return nil
}

func fieldError(f Field, format string, args ...any) error {
	return txerrors.SchemaError(fmt.Sprintf(format, args...)).WithDetail("field", f.Name)
}
