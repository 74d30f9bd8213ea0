package mongoschema_test

import (
	"math"
	"testing"

	ms "github.com/reoring/mongoschema"
	"github.com/reoring/mongoschema/shape"
)

func assertDocEq(t *testing.T, got ms.Document, want ms.Document) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("document mismatch\n got=%v\nwant=%v", got, want)
	}
}

func mustDerive(t *testing.T, s shape.Shape) ms.Document {
	t.Helper()
	doc, err := ms.Derive(s)
	if err != nil {
		t.Fatalf("derive err: %v", err)
	}
	return doc
}

func assertIssueCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	iss, ok := ms.AsIssues(err)
	if !ok || len(iss) == 0 {
		t.Fatalf("expected Issues, got %v", err)
	}
	if iss[0].Code != code {
		t.Fatalf("expected code %s, got %v", code, iss)
	}
}

func uint8Doc() ms.Document {
	return ms.D(ms.E("bsonType", "int"), ms.E("minimum", int64(0)), ms.E("maximum", int64(255)))
}

func int16Doc() ms.Document {
	return ms.D(ms.E("bsonType", "int"), ms.E("minimum", int64(math.MinInt16)), ms.E("maximum", int64(math.MaxInt16)))
}

func TestDerivePrimitives(t *testing.T) {
	cases := []struct {
		name string
		in   shape.Shape
		want ms.Document
	}{
		{"bool", shape.Bool(), ms.D(ms.E("type", "boolean"))},
		{"int32", shape.Int32(), ms.D(ms.E("bsonType", "int"))},
		{"int64", shape.Int64(), ms.D(ms.E("bsonType", "long"))},
		{"uint8", shape.Uint8(), uint8Doc()},
		{"uint32", shape.Uint32(), ms.D(ms.E("bsonType", "int"), ms.E("minimum", int64(0)))},
		{"uint64", shape.Uint64(), ms.D(ms.E("bsonType", "long"), ms.E("minimum", int64(0)), ms.E("maximum", int64(math.MaxInt64)))},
		{"float64", shape.Float64(), ms.D(ms.E("type", "number"))},
		{"string", shape.String(), ms.D(ms.E("type", "string"))},
		{"binary", shape.Binary(), ms.D(ms.E("bsonType", "binData"))},
		{"objectId", &shape.ObjectID{}, ms.D(ms.E("bsonType", "objectId"))},
		{"doc", &shape.Doc{}, ms.D(ms.E("type", "object"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertDocEq(t, mustDerive(t, tc.in), tc.want)
		})
	}
}

func TestDeriveUUIDPattern(t *testing.T) {
	doc := mustDerive(t, shape.UUID())
	if v, _ := doc.Get("type"); v != "string" {
		t.Fatalf("uuid must be a string schema, got %v", doc)
	}
	if _, ok := doc.Get("pattern"); !ok {
		t.Fatalf("uuid schema must carry a pattern, got %v", doc)
	}
}

func TestDeriveUnitShapes(t *testing.T) {
	want := ms.D(ms.E("type", []any{"array", "null"}), ms.E("maxItems", int64(0)))
	assertDocEq(t, mustDerive(t, &shape.Unit{}), want)
	// A zero-element tuple struct is the same thing.
	assertDocEq(t, mustDerive(t, &shape.Tuple{}), want)
}

func TestDeriveNewtypeForwards(t *testing.T) {
	assertDocEq(t,
		mustDerive(t, &shape.Newtype{Inner: shape.Float64()}),
		ms.D(ms.E("type", "number")))
	// Single-element tuple structs forward too.
	assertDocEq(t,
		mustDerive(t, &shape.Tuple{Elems: []shape.Shape{shape.Float64()}}),
		ms.D(ms.E("type", "number")))
}

func TestDeriveNewtypeWithBounds(t *testing.T) {
	angle := &shape.Newtype{Inner: shape.Float32()}
	doc, err := ms.DeriveWith(angle, shape.Constraints{
		MinIncl: shape.Bound(-180),
		MaxExcl: shape.Bound(180),
	})
	if err != nil {
		t.Fatalf("derive err: %v", err)
	}
	assertDocEq(t, doc, ms.D(
		ms.E("type", "number"),
		ms.E("minimum", -180.0),
		ms.E("exclusiveMinimum", false),
		ms.E("maximum", 180.0),
		ms.E("exclusiveMaximum", true),
	))
}

func TestDeriveTupleStruct(t *testing.T) {
	complexShape := &shape.Tuple{Elems: []shape.Shape{shape.Float64(), shape.Float64()}}
	assertDocEq(t, mustDerive(t, complexShape), ms.D(
		ms.E("type", "array"),
		ms.E("additionalItems", false),
		ms.E("items", []any{
			ms.D(ms.E("type", "number")),
			ms.D(ms.E("type", "number")),
		}),
	))

	intRange := &shape.Tuple{Elems: []shape.Shape{
		&shape.Optional{Inner: shape.Uint32()},
		&shape.Optional{Inner: shape.Uint32()},
	}}
	optU32 := ms.D(ms.E("bsonType", []any{"int", "null"}), ms.E("minimum", int64(0)))
	assertDocEq(t, mustDerive(t, intRange), ms.D(
		ms.E("type", "array"),
		ms.E("additionalItems", false),
		ms.E("items", []any{optU32, optU32}),
	))
}

func TestDeriveStructWithNamedFields(t *testing.T) {
	email := &shape.Struct{Name: "Email", Fields: []shape.Field{
		{Name: "address", Shape: shape.String(), Constraints: shape.Constraints{Rename: "aDdReSs"}},
		{Name: "provider_name", Shape: shape.String(), Constraints: shape.Constraints{Rename: "PROVIDER-NAME"}},
	}}
	contact := &shape.Struct{Name: "Contact", Fields: []shape.Field{
		{Name: "names", Shape: &shape.Array{Elem: shape.String()}},
		{Name: "address_lines", Shape: &shape.FixedArray{Elem: shape.String(), Len: 3}},
		{Name: "phone_no", Shape: &shape.Optional{Inner: shape.Uint64()}},
		{Name: "email", Shape: &shape.Optional{Inner: email}},
		{Name: "misc_info", Shape: &shape.Optional{Inner: &shape.Map{Key: shape.StringKind, Value: shape.String()}}},
	}}

	assertDocEq(t, mustDerive(t, contact), ms.D(
		ms.E("type", "object"),
		ms.E("additionalProperties", false),
		ms.E("required", []any{"names", "address_lines"}),
		ms.E("properties", ms.D(
			ms.E("names", ms.D(
				ms.E("type", "array"),
				ms.E("items", ms.D(ms.E("type", "string"))),
			)),
			ms.E("address_lines", ms.D(
				ms.E("type", "array"),
				ms.E("minItems", int64(3)),
				ms.E("maxItems", int64(3)),
				ms.E("items", ms.D(ms.E("type", "string"))),
			)),
			ms.E("phone_no", ms.D(
				ms.E("bsonType", []any{"long", "null"}),
				ms.E("minimum", int64(0)),
				ms.E("maximum", int64(math.MaxInt64)),
			)),
			ms.E("email", ms.D(
				ms.E("type", []any{"object", "null"}),
				ms.E("additionalProperties", false),
				ms.E("required", []any{"aDdReSs", "PROVIDER-NAME"}),
				ms.E("properties", ms.D(
					ms.E("aDdReSs", ms.D(ms.E("type", "string"))),
					ms.E("PROVIDER-NAME", ms.D(ms.E("type", "string"))),
				)),
			)),
			ms.E("misc_info", ms.D(
				ms.E("type", []any{"object", "null"}),
				ms.E("additionalProperties", ms.D(ms.E("type", "string"))),
			)),
		)),
	))
}

func TestDeriveRequiredExcludesOptionalFields(t *testing.T) {
	for _, order := range [][]shape.Field{
		{
			{Name: "f1", Shape: shape.String()},
			{Name: "f2", Shape: &shape.Optional{Inner: shape.String()}},
		},
		{
			{Name: "f2", Shape: &shape.Optional{Inner: shape.String()}},
			{Name: "f1", Shape: shape.String()},
		},
	} {
		doc := mustDerive(t, &shape.Struct{Name: "S", Fields: order})
		req, ok := doc.Get("required")
		if !ok {
			t.Fatalf("missing required list: %v", doc)
		}
		list, _ := req.([]any)
		if len(list) != 1 || list[0] != "f1" {
			t.Fatalf("required must contain only f1, got %v", req)
		}
	}
}

func TestDeriveStructAllOptionalOmitsRequired(t *testing.T) {
	doc := mustDerive(t, &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "a", Shape: &shape.Optional{Inner: shape.Bool()}},
	}})
	if _, ok := doc.Get("required"); ok {
		t.Fatalf("empty required list must be omitted, got %v", doc)
	}
}

func TestDeriveSetAndFixedArrayCardinality(t *testing.T) {
	set := mustDerive(t, &shape.Set{Elem: shape.String()})
	assertDocEq(t, set, ms.D(
		ms.E("type", "array"),
		ms.E("uniqueItems", true),
		ms.E("items", ms.D(ms.E("type", "string"))),
	))

	fixed := mustDerive(t, &shape.FixedArray{Elem: shape.Bool(), Len: 4})
	if v, _ := fixed.Get("minItems"); v != int64(4) {
		t.Fatalf("minItems: got %v", v)
	}
	if v, _ := fixed.Get("maxItems"); v != int64(4) {
		t.Fatalf("maxItems: got %v", v)
	}
}

func TestDeriveOptionalWidening(t *testing.T) {
	// "type" widening
	assertDocEq(t,
		mustDerive(t, &shape.Optional{Inner: shape.String()}),
		ms.D(ms.E("type", []any{"string", "null"})))
	// "bsonType" widening
	assertDocEq(t,
		mustDerive(t, &shape.Optional{Inner: shape.Int64()}),
		ms.D(ms.E("bsonType", []any{"long", "null"})))
	// already-null type lists do not grow a duplicate
	assertDocEq(t,
		mustDerive(t, &shape.Optional{Inner: &shape.Unit{}}),
		ms.D(ms.E("type", []any{"array", "null"}), ms.E("maxItems", int64(0))))
	// nesting is idempotent
	assertDocEq(t,
		mustDerive(t, &shape.Optional{Inner: &shape.Optional{Inner: shape.String()}}),
		ms.D(ms.E("type", []any{"string", "null"})))
}

func TestDeriveMapRejectsNonTextualKeys(t *testing.T) {
	_, err := ms.Derive(&shape.Map{Key: shape.Int32Kind, Value: shape.String()})
	assertIssueCode(t, err, ms.CodeUnsupportedShape)

	if _, err := ms.Derive(&shape.Map{Key: shape.UUIDKind, Value: shape.String()}); err != nil {
		t.Fatalf("uuid keys are textual, got err: %v", err)
	}
}

func TestDeriveUntaggedEnum(t *testing.T) {
	e := &shape.Enum{Name: "Untagged", Tagging: shape.Untagged{}, Variants: []shape.Variant{
		{Name: "Unit"},
		{Name: "NewType", Payload: &shape.Optional{Inner: shape.String()}},
		{Name: "TwoTuple", Payload: &shape.Tuple{Elems: []shape.Shape{shape.Uint8(), shape.Int16()}}},
		{Name: "Struct", Payload: &shape.Struct{Fields: []shape.Field{{Name: "field", Shape: shape.Int32()}}}},
	}}
	assertDocEq(t, mustDerive(t, e), ms.D(ms.E("anyOf", []any{
		ms.D(ms.E("type", []any{"array", "null"}), ms.E("maxItems", int64(0))),
		ms.D(ms.E("type", []any{"string", "null"})),
		ms.D(
			ms.E("type", "array"),
			ms.E("additionalItems", false),
			ms.E("items", []any{uint8Doc(), int16Doc()}),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"field"}),
			ms.E("properties", ms.D(ms.E("field", ms.D(ms.E("bsonType", "int"))))),
		),
	})))
}

func TestDeriveExternallyTaggedEnum(t *testing.T) {
	e := &shape.Enum{Name: "ExternallyTagged", Tagging: shape.External{}, Variants: []shape.Variant{
		{Name: "Unit", Rename: "unit"},
		{Name: "NewType", Rename: "new_type", Payload: &shape.Optional{Inner: shape.String()}},
		{Name: "TwoTuple", Rename: "two_tuple", Payload: &shape.Tuple{Elems: []shape.Shape{shape.Uint8(), shape.Int16()}}},
		{Name: "Struct", Rename: "struct", Payload: &shape.Struct{Fields: []shape.Field{{Name: "field", Shape: shape.Int32()}}}},
	}}
	assertDocEq(t, mustDerive(t, e), ms.D(ms.E("anyOf", []any{
		ms.D(ms.E("enum", []any{"unit"})),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"new_type"}),
			ms.E("properties", ms.D(ms.E("new_type", ms.D(ms.E("type", []any{"string", "null"}))))),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"two_tuple"}),
			ms.E("properties", ms.D(ms.E("two_tuple", ms.D(
				ms.E("type", "array"),
				ms.E("additionalItems", false),
				ms.E("items", []any{uint8Doc(), int16Doc()}),
			)))),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"struct"}),
			ms.E("properties", ms.D(ms.E("struct", ms.D(
				ms.E("type", "object"),
				ms.E("additionalProperties", false),
				ms.E("required", []any{"field"}),
				ms.E("properties", ms.D(ms.E("field", ms.D(ms.E("bsonType", "int"))))),
			)))),
		),
	})))
}

func TestDeriveAdjacentlyTaggedEnum(t *testing.T) {
	e := &shape.Enum{Name: "AdjacentlyTagged", Tagging: shape.Adjacent{Tag: "variant", Content: "value"}, Variants: []shape.Variant{
		{Name: "unit"},
		{Name: "new_type", Payload: &shape.Optional{Inner: shape.String()}},
		{Name: "struct", Payload: &shape.Struct{Fields: []shape.Field{{Name: "field", Shape: shape.Int32()}}}},
	}}
	assertDocEq(t, mustDerive(t, e), ms.D(ms.E("anyOf", []any{
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"variant"}),
			ms.E("properties", ms.D(ms.E("variant", ms.D(ms.E("enum", []any{"unit"}))))),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"variant", "value"}),
			ms.E("properties", ms.D(
				ms.E("variant", ms.D(ms.E("enum", []any{"new_type"}))),
				ms.E("value", ms.D(ms.E("type", []any{"string", "null"}))),
			)),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"variant", "value"}),
			ms.E("properties", ms.D(
				ms.E("variant", ms.D(ms.E("enum", []any{"struct"}))),
				ms.E("value", ms.D(
					ms.E("type", "object"),
					ms.E("additionalProperties", false),
					ms.E("required", []any{"field"}),
					ms.E("properties", ms.D(ms.E("field", ms.D(ms.E("bsonType", "int"))))),
				)),
			)),
		),
	})))
}

func TestDeriveInternallyTaggedEnum(t *testing.T) {
	newType := &shape.Struct{Name: "NewType", Fields: []shape.Field{
		{Name: "name", Shape: shape.String()},
	}}
	e := &shape.Enum{Name: "InternallyTagged", Tagging: shape.Internal{Tag: "variant"}, Variants: []shape.Variant{
		{Name: "unit"},
		{Name: "new_type_one", Payload: &shape.Newtype{Inner: newType}},
		{Name: "new_type_two", Payload: &shape.Newtype{Inner: &shape.Map{Key: shape.StringKind, Value: shape.Bool()}}},
		{Name: "struct", Payload: &shape.Struct{Fields: []shape.Field{{Name: "field", Shape: shape.Int32()}}}},
	}}
	assertDocEq(t, mustDerive(t, e), ms.D(ms.E("anyOf", []any{
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"variant"}),
			ms.E("properties", ms.D(ms.E("variant", ms.D(ms.E("enum", []any{"unit"}))))),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"variant", "name"}),
			ms.E("properties", ms.D(
				ms.E("variant", ms.D(ms.E("enum", []any{"new_type_one"}))),
				ms.E("name", ms.D(ms.E("type", "string"))),
			)),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("required", []any{"variant"}),
			ms.E("properties", ms.D(ms.E("variant", ms.D(ms.E("enum", []any{"new_type_two"}))))),
			ms.E("additionalProperties", ms.D(ms.E("type", "boolean"))),
		),
		ms.D(
			ms.E("type", "object"),
			ms.E("additionalProperties", false),
			ms.E("required", []any{"variant", "field"}),
			ms.E("properties", ms.D(
				ms.E("variant", ms.D(ms.E("enum", []any{"struct"}))),
				ms.E("field", ms.D(ms.E("bsonType", "int"))),
			)),
		),
	})))
}

func TestDeriveInternalTagRejectsUnsupportedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload shape.Shape
	}{
		{"newtype of unit struct", &shape.Newtype{Inner: &shape.Unit{}}},
		{"scalar", shape.Uint32()},
		{"optional struct", &shape.Optional{Inner: &shape.Struct{Fields: []shape.Field{{Name: "f", Shape: shape.Bool()}}}}},
		{"inner enum", &shape.Enum{Tagging: shape.External{}, Variants: []shape.Variant{{Name: "Qux"}, {Name: "Moo"}}}},
		{"tuple", &shape.Tuple{Elems: []shape.Shape{shape.Bool(), shape.Bool()}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &shape.Enum{Name: "Foo", Tagging: shape.Internal{Tag: "variant"}, Variants: []shape.Variant{
				{Name: "Bar", Payload: tc.payload},
			}}
			_, err := ms.Derive(e)
			assertIssueCode(t, err, ms.CodeUnsupportedShape)
		})
	}
}

func TestDeriveVariantRename(t *testing.T) {
	e := &shape.Enum{Name: "E", Tagging: shape.External{}, Variants: []shape.Variant{
		{Name: "FirstVariant", Rename: "first"},
	}}
	assertDocEq(t, mustDerive(t, e), ms.D(ms.E("anyOf", []any{
		ms.D(ms.E("enum", []any{"first"})),
	})))
}

func TestDeriveMalformedBoundPair(t *testing.T) {
	s := &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "n", Shape: shape.Int32(), Constraints: shape.Constraints{
			MinIncl: shape.Bound(0),
			MinExcl: shape.Bound(1),
		}},
	}}
	doc, err := ms.Derive(s)
	assertIssueCode(t, err, ms.CodeMalformedBound)
	if doc != nil {
		t.Fatalf("no document must be produced on error, got %v", doc)
	}
}

func TestDeriveBoundOnNonNumericShape(t *testing.T) {
	s := &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "name", Shape: shape.String(), Constraints: shape.Constraints{MinIncl: shape.Bound(1)}},
	}}
	_, err := ms.Derive(s)
	assertIssueCode(t, err, ms.CodeNonNumericBound)
}

func TestDeriveExplicitBoundOverridesImplicit(t *testing.T) {
	s := &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "n", Shape: shape.Uint32(), Constraints: shape.Constraints{MinIncl: shape.Bound(10)}},
	}}
	doc := mustDerive(t, s)
	props, _ := doc.Get("properties")
	n, _ := props.(ms.Document).Get("n")
	assertDocEq(t, n.(ms.Document), ms.D(
		ms.E("bsonType", "int"),
		ms.E("minimum", 10.0),
		ms.E("exclusiveMinimum", false),
	))
}

func TestDeriveUnresolvedGeneric(t *testing.T) {
	list := &shape.Struct{Name: "List", Fields: []shape.Field{
		{Name: "items", Shape: &shape.Array{Elem: &shape.Generic{Param: "T"}}},
	}}
	_, err := ms.Derive(list)
	assertIssueCode(t, err, ms.CodeUnresolvedGeneric)

	bound := shape.Bind(list, map[string]shape.Shape{"T": shape.String()})
	assertDocEq(t, mustDerive(t, bound), ms.D(
		ms.E("type", "object"),
		ms.E("additionalProperties", false),
		ms.E("required", []any{"items"}),
		ms.E("properties", ms.D(ms.E("items", ms.D(
			ms.E("type", "array"),
			ms.E("items", ms.D(ms.E("type", "string"))),
		)))),
	))
}

func TestDeriveCycleTermination(t *testing.T) {
	node := &shape.Struct{Name: "Node"}
	node.Fields = []shape.Field{
		{Name: "value", Shape: shape.String()},
		{Name: "next", Shape: &shape.Optional{Inner: node}},
	}
	doc := mustDerive(t, node)
	assertDocEq(t, doc, ms.D(
		ms.E("type", "object"),
		ms.E("additionalProperties", false),
		ms.E("required", []any{"value"}),
		ms.E("properties", ms.D(
			ms.E("value", ms.D(ms.E("type", "string"))),
			ms.E("next", ms.D()),
		)),
	))
}

func TestDeriveDeterminism(t *testing.T) {
	s := &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "a", Shape: &shape.Set{Elem: shape.UUID()}},
		{Name: "b", Shape: &shape.Optional{Inner: &shape.Map{Key: shape.StringKind, Value: shape.Int64()}}},
	}}
	first := mustDerive(t, s)
	second := mustDerive(t, s)
	assertDocEq(t, first, second)
	if first.String() != second.String() {
		t.Fatalf("serialized output must be byte-identical\n a=%s\n b=%s", first, second)
	}
}

func TestDeriverCacheMatchesFreshDerivation(t *testing.T) {
	email := &shape.Struct{Name: "Email", Fields: []shape.Field{
		{Name: "address", Shape: shape.String()},
	}}
	s := &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "home", Shape: email},
		{Name: "work", Shape: &shape.Optional{Inner: email}},
	}}
	d := ms.NewDeriver()
	fresh := mustDerive(t, s)
	for i := 0; i < 3; i++ {
		got, err := d.Derive(s)
		if err != nil {
			t.Fatalf("cached derive err: %v", err)
		}
		assertDocEq(t, got, fresh)
	}
}

func TestDeriverCacheWithCyclicShape(t *testing.T) {
	node := &shape.Struct{Name: "Node"}
	node.Fields = []shape.Field{
		{Name: "next", Shape: &shape.Optional{Inner: node}},
	}
	d := ms.NewDeriver()
	fresh := mustDerive(t, node)
	for i := 0; i < 3; i++ {
		got, err := d.Derive(node)
		if err != nil {
			t.Fatalf("cached derive err: %v", err)
		}
		assertDocEq(t, got, fresh)
	}
}

func TestDeriverCacheHitIsIndependentCopy(t *testing.T) {
	s := &shape.Struct{Name: "S", Fields: []shape.Field{
		{Name: "a", Shape: shape.String()},
	}}
	d := ms.NewDeriver()
	first, err := d.Derive(s)
	if err != nil {
		t.Fatalf("derive err: %v", err)
	}
	first.Set("type", "tampered")
	second, err := d.Derive(s)
	if err != nil {
		t.Fatalf("derive err: %v", err)
	}
	if v, _ := second.Get("type"); v != "object" {
		t.Fatalf("cache hit must not share state with earlier results, got %v", second)
	}
}
