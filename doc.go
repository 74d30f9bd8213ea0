package mongoschema

// Package mongoschema derives MongoDB-flavored JSON Schema documents from
// abstract shape descriptions:
//
// - A closed shape model (shape package): primitives, containers, structs,
//   enums with the four tagging conventions, generics.
// - A recursive deriver producing an ordered Document that mirrors the
//   shape's serialized representation (bsonType where JSON has no native
//   type: objectId, long, binData).
// - A stable error model via Issues (shape path, code, message).
// - Order-insensitive Document equality for idempotent-schema checks.
//
// Design policy:
// - Keep the public derivation API in the root package; place the shape
//   model under shape/, declarative definitions under shapedef/, and the
//   CLI under cmd/mongoschema.
// - Derivation is pure: no I/O, no shared mutable state across calls. The
//   optional memo cache on Deriver never changes output.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	s := &shape.Struct{Name: "Contact", Fields: []shape.Field{
//		{Name: "name", Shape: shape.String()},
//		{Name: "age", Shape: shape.Uint32()},
//	}}
//	doc, err := mongoschema.Derive(s)
//	cmd := mongoschema.CreateCollection("contacts", doc)
