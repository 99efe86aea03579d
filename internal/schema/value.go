package schema

// Value is a typed field value produced by the document mapper and consumed
// by the store writer. The variant set is closed: StringValue, TextValue,
// Int32Value, DoubleValue and SingleValue.
type Value interface {
	FieldName() string
	FieldType() Type
	IsIndexed() bool
	IsStored() bool

	sealed()
}

// Attrs carries the field name and flags shared by every Value variant.
type Attrs struct {
	Name    string
	Indexed bool
	Stored  bool
}

// AttrsOf copies the name and flags of f.
func AttrsOf(f Field) Attrs {
	return Attrs{Name: f.Name, Indexed: f.Indexed, Stored: f.Stored}
}

func (a Attrs) FieldName() string { return a.Name }
func (a Attrs) IsIndexed() bool   { return a.Indexed }
func (a Attrs) IsStored() bool    { return a.Stored }
func (Attrs) sealed()             {}

// StringValue is an exact-match string.
type StringValue struct {
	Attrs
	Value string
}

// TextValue is an analyzed string.
type TextValue struct {
	Attrs
	Value string
}

// Int32Value is a 32-bit signed integer.
type Int32Value struct {
	Attrs
	Value int32
}

// DoubleValue is a 64-bit float.
type DoubleValue struct {
	Attrs
	Value float64
}

// SingleValue is a 32-bit float.
type SingleValue struct {
	Attrs
	Value float32
}

func (StringValue) FieldType() Type { return String }
func (TextValue) FieldType() Type   { return Text }
func (Int32Value) FieldType() Type  { return Int32 }
func (DoubleValue) FieldType() Type { return Double }
func (SingleValue) FieldType() Type { return Single }
