package shape

// Package shape defines the closed, language-neutral shape model consumed by
// the deriver. Shape graphs are built once (directly, via shapedef, or by
// any other supplier), may be cyclic through pointer indirection, and are
// treated as immutable input for the lifetime of a derivation call.

// PrimitiveKind identifies a scalar kind of the mapping table.
type PrimitiveKind int

const (
	BoolKind PrimitiveKind = iota
	Int8Kind
	Int16Kind
	Int32Kind
	Int64Kind
	Uint8Kind
	Uint16Kind
	Uint32Kind
	Uint64Kind
	Float32Kind
	Float64Kind
	StringKind
	BinaryKind
	UUIDKind
)

var primitiveKindNames = [...]string{
	"bool", "int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"float32", "float64", "string", "binary", "uuid",
}

func (k PrimitiveKind) String() string {
	if k < 0 || int(k) >= len(primitiveKindNames) {
		return "unknown"
	}
	return primitiveKindNames[k]
}

// Numeric reports whether bound constraints are meaningful for the kind.
func (k PrimitiveKind) Numeric() bool {
	return k >= Int8Kind && k <= Float64Kind
}

// Unsigned reports whether the kind is an unsigned integer.
func (k PrimitiveKind) Unsigned() bool {
	return k >= Uint8Kind && k <= Uint64Kind
}

// Textual reports whether values of the kind are plainly displayable as
// text, which is what map keys require.
func (k PrimitiveKind) Textual() bool {
	return k == StringKind || k == UUIDKind
}

// Kind identifies a shape node type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindOptional
	KindArray
	KindSet
	KindMap
	KindFixedArray
	KindStruct
	KindNewtype
	KindTuple
	KindUnit
	KindEnum
	KindDoc
	KindObjectID
	KindGeneric
)

// Shape is the root node interface of the closed shape union.
type Shape interface {
	Kind() Kind
}

// Primitive is a scalar shape.
type Primitive struct {
	K PrimitiveKind
}

func (p *Primitive) Kind() Kind { return KindPrimitive }

// Optional marks the inner shape as nullable/absent-able. The surrounding
// object schema neither requires the field nor rejects an explicit null.
type Optional struct {
	Inner Shape
}

func (o *Optional) Kind() Kind { return KindOptional }

// Array is a homogeneous sequence.
type Array struct {
	Elem Shape
}

func (a *Array) Kind() Kind { return KindArray }

// Set is an array carrying a uniqueItems marker.
type Set struct {
	Elem Shape
}

func (s *Set) Kind() Kind { return KindSet }

// Map is an object with homogeneous values. Keys contribute no schema of
// their own (document keys are always strings) but their kind must be
// textual.
type Map struct {
	Key   PrimitiveKind
	Value Shape
}

func (m *Map) Kind() Kind { return KindMap }

// FixedArray is an array of exactly Len elements.
type FixedArray struct {
	Elem Shape
	Len  int
}

func (f *FixedArray) Kind() Kind { return KindFixedArray }

// Field is one named member of a Struct.
type Field struct {
	Name        string
	Shape       Shape
	Constraints Constraints
}

// Struct is an object shape with ordered named fields.
type Struct struct {
	Name   string
	Fields []Field
}

func (s *Struct) Kind() Kind { return KindStruct }

// Newtype is a transparent single-field wrapper; its schema is the schema of
// the inner shape.
type Newtype struct {
	Inner Shape
}

func (n *Newtype) Kind() Kind { return KindNewtype }

// Tuple is a heterogeneous fixed-length sequence.
type Tuple struct {
	Elems []Shape
}

func (t *Tuple) Kind() Kind { return KindTuple }

// Unit is the shape of a value carrying no data; it serializes as a
// zero-element array (or null).
type Unit struct{}

func (u *Unit) Kind() Kind { return KindUnit }

// Variant is one alternative of an Enum. A nil Payload is a unit variant, a
// *Struct payload a struct variant, a *Tuple payload a tuple variant, and
// any other payload a newtype variant. Rename overrides the variant name in
// the emitted schema.
type Variant struct {
	Name    string
	Payload Shape
	Rename  string
}

// Enum is a tagged union shape. The tagging strategy is fixed at
// construction and immutable thereafter.
type Enum struct {
	Name     string
	Tagging  Tagging
	Variants []Variant
}

func (e *Enum) Kind() Kind { return KindEnum }

// Doc is an opaque, schema-less document passthrough.
type Doc struct{}

func (d *Doc) Kind() Kind { return KindDoc }

// ObjectID is the database's native object-identifier shape.
type ObjectID struct{}

func (o *ObjectID) Kind() Kind { return KindObjectID }

// Generic is an unresolved type parameter placeholder. It must be
// substituted via Bind before derivation.
type Generic struct {
	Param string
}

func (g *Generic) Kind() Kind { return KindGeneric }

// Tagging is the closed set of enum representation conventions.
type Tagging interface {
	isTagging()
}

// External is the default convention: the map key is the variant name.
type External struct{}

func (External) isTagging() {}

// Internal places a tag field inside the variant's own object.
type Internal struct {
	Tag string
}

func (Internal) isTagging() {}

// Adjacent places the tag and the payload under two sibling keys.
type Adjacent struct {
	Tag     string
	Content string
}

func (Adjacent) isTagging() {}

// Untagged emits raw payload schemas with no discriminator.
type Untagged struct{}

func (Untagged) isTagging() {}

// Scalar constructors; composite shapes are built as literals.

func Bool() *Primitive { return &Primitive{K: BoolKind} }

func Int8() *Primitive { return &Primitive{K: Int8Kind} }

func Int16() *Primitive { return &Primitive{K: Int16Kind} }

func Int32() *Primitive { return &Primitive{K: Int32Kind} }

func Int64() *Primitive { return &Primitive{K: Int64Kind} }

func Uint8() *Primitive { return &Primitive{K: Uint8Kind} }

func Uint16() *Primitive { return &Primitive{K: Uint16Kind} }

func Uint32() *Primitive { return &Primitive{K: Uint32Kind} }

func Uint64() *Primitive { return &Primitive{K: Uint64Kind} }

func Float32() *Primitive { return &Primitive{K: Float32Kind} }

func Float64() *Primitive { return &Primitive{K: Float64Kind} }

func String() *Primitive { return &Primitive{K: StringKind} }

func Binary() *Primitive { return &Primitive{K: BinaryKind} }

func UUID() *Primitive { return &Primitive{K: UUIDKind} }
