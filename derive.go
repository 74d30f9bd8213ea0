package mongoschema

import (
	"fmt"
	"math"
	"sync"

	"github.com/reoring/mongoschema/shape"
)

// uuidPattern matches the canonical hyphenated textual form of a UUID.
const uuidPattern = "^[[:xdigit:]]{8}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{12}$"

// Derive derives the schema document for s without any memoization.
func Derive(s shape.Shape) (Document, error) {
	return DeriveWith(s, shape.Constraints{})
}

// DeriveWith derives the schema document for s with root-level constraints
// applied (a root-level rename has no parent key and is ignored). Either a
// complete document or a nil document with a configuration error is
// returned; there is no partial output.
func DeriveWith(s shape.Shape, c shape.Constraints) (Document, error) {
	st := &deriveState{stack: map[shape.Shape]bool{}}
	return st.root(s, c)
}

// Deriver derives schema documents through a memo cache keyed by shape
// identity. The cache is an optimization only: hits are cloned and are
// structurally equal to what a fresh derivation would produce. A Deriver is
// safe for concurrent use.
type Deriver struct {
	mu    sync.RWMutex
	cache map[shape.Shape]Document
}

// NewDeriver returns a Deriver with an empty cache.
func NewDeriver() *Deriver {
	return &Deriver{cache: map[shape.Shape]Document{}}
}

// Derive derives the schema document for s.
func (d *Deriver) Derive(s shape.Shape) (Document, error) {
	return d.DeriveWith(s, shape.Constraints{})
}

// DeriveWith derives the schema document for s with root-level constraints.
func (d *Deriver) DeriveWith(s shape.Shape, c shape.Constraints) (Document, error) {
	st := &deriveState{d: d, stack: map[shape.Shape]bool{}}
	return st.root(s, c)
}

// deriveState is the per-call recursion state: the identity set of shapes on
// the active expansion stack, plus the optional shared cache.
type deriveState struct {
	d     *Deriver
	stack map[shape.Shape]bool
}

func (st *deriveState) root(s shape.Shape, c shape.Constraints) (Document, error) {
	if err := checkBoundPairs(c, ""); err != nil {
		return nil, err
	}
	doc, _, err := st.node(s, "")
	if err != nil {
		return nil, err
	}
	return applyBounds(doc, c, s, "")
}

// node derives the schema for one shape. The boolean result reports whether
// the subtree derived completely: a subtree truncated by cycle detection
// produces a stack-dependent document and must never enter the cache.
func (st *deriveState) node(s shape.Shape, path string) (Document, bool, error) {
	if s == nil {
		return nil, false, Issues{{Path: orRoot(path), Code: CodeUnsupportedShape, Message: "nil shape"}}
	}
	if st.stack[s] {
		// Self-reference is a structural ceiling only; terminate the branch
		// with the any-type schema.
		return Document{}, false, nil
	}
	if st.d != nil {
		st.d.mu.RLock()
		cached, ok := st.d.cache[s]
		st.d.mu.RUnlock()
		if ok {
			return cached.Clone(), true, nil
		}
	}
	st.stack[s] = true
	doc, complete, err := st.expand(s, path)
	delete(st.stack, s)
	if err != nil {
		return nil, false, err
	}
	if complete && st.d != nil {
		st.d.mu.Lock()
		st.d.cache[s] = doc.Clone()
		st.d.mu.Unlock()
	}
	return doc, complete, nil
}

func (st *deriveState) expand(s shape.Shape, path string) (Document, bool, error) {
	switch n := s.(type) {
	case *shape.Primitive:
		return primitiveDoc(n.K), true, nil
	case *shape.Optional:
		inner, complete, err := st.node(n.Inner, path)
		if err != nil {
			return nil, false, err
		}
		return widenNull(inner), complete, nil
	case *shape.Array:
		elem, complete, err := st.node(n.Elem, path+"/items")
		if err != nil {
			return nil, false, err
		}
		return Document{{"type", "array"}, {"items", elem}}, complete, nil
	case *shape.Set:
		elem, complete, err := st.node(n.Elem, path+"/items")
		if err != nil {
			return nil, false, err
		}
		return Document{{"type", "array"}, {"uniqueItems", true}, {"items", elem}}, complete, nil
	case *shape.FixedArray:
		elem, complete, err := st.node(n.Elem, path+"/items")
		if err != nil {
			return nil, false, err
		}
		return Document{
			{"type", "array"},
			{"minItems", int64(n.Len)},
			{"maxItems", int64(n.Len)},
			{"items", elem},
		}, complete, nil
	case *shape.Map:
		if !n.Key.Textual() {
			return nil, false, Issues{{
				Path:    orRoot(path),
				Code:    CodeUnsupportedShape,
				Message: fmt.Sprintf("map key kind %s is not representable as text", n.Key),
				Hint:    "document keys are always strings; use a string or uuid key",
			}}
		}
		value, complete, err := st.node(n.Value, path+"/additionalProperties")
		if err != nil {
			return nil, false, err
		}
		return Document{{"type", "object"}, {"additionalProperties", value}}, complete, nil
	case *shape.Struct:
		return st.structDoc(n, path)
	case *shape.Newtype:
		return st.node(n.Inner, path)
	case *shape.Tuple:
		// Zero elements is the unit representation; one element is a
		// newtype in disguise.
		if len(n.Elems) == 0 {
			return unitDoc(), true, nil
		}
		if len(n.Elems) == 1 {
			return st.node(n.Elems[0], path)
		}
		items := make([]any, len(n.Elems))
		complete := true
		for i, el := range n.Elems {
			doc, c, err := st.node(el, fmt.Sprintf("%s/items/%d", path, i))
			if err != nil {
				return nil, false, err
			}
			items[i] = doc
			complete = complete && c
		}
		return Document{{"type", "array"}, {"additionalItems", false}, {"items", items}}, complete, nil
	case *shape.Unit:
		return unitDoc(), true, nil
	case *shape.Enum:
		return st.enumDoc(n, path)
	case *shape.Doc:
		return Document{{"type", "object"}}, true, nil
	case *shape.ObjectID:
		return Document{{"bsonType", "objectId"}}, true, nil
	case *shape.Generic:
		return nil, false, Issues{{
			Path:    orRoot(path),
			Code:    CodeUnresolvedGeneric,
			Message: fmt.Sprintf("unresolved type parameter %q", n.Param),
			Hint:    "substitute placeholders with shape.Bind before deriving",
		}}
	}
	return nil, false, Issues{{Path: orRoot(path), Code: CodeUnsupportedShape, Message: fmt.Sprintf("unknown shape %T", s)}}
}

func (st *deriveState) structDoc(n *shape.Struct, path string) (Document, bool, error) {
	props := Document{}
	var required []any
	complete := true
	for _, f := range n.Fields {
		fpath := path + "/fields/" + f.Name
		if err := checkBoundPairs(f.Constraints, fpath); err != nil {
			return nil, false, err
		}
		doc, c, err := st.node(f.Shape, fpath)
		if err != nil {
			return nil, false, err
		}
		doc, err = applyBounds(doc, f.Constraints, f.Shape, fpath)
		if err != nil {
			return nil, false, err
		}
		key := f.Name
		if f.Constraints.Rename != "" {
			key = f.Constraints.Rename
		}
		props = props.Set(key, doc)
		if f.Shape != nil && f.Shape.Kind() != shape.KindOptional {
			required = append(required, key)
		}
		complete = complete && c
	}
	out := Document{{"type", "object"}, {"additionalProperties", false}}
	if len(required) > 0 {
		out = out.Set("required", required)
	}
	out = out.Set("properties", props)
	return out, complete, nil
}

func (st *deriveState) enumDoc(n *shape.Enum, path string) (Document, bool, error) {
	alts := make([]any, 0, len(n.Variants))
	complete := true
	for _, v := range n.Variants {
		vpath := path + "/variants/" + v.Name
		name := v.Name
		if v.Rename != "" {
			name = v.Rename
		}
		alt, c, err := st.variantDoc(n.Tagging, v, name, vpath)
		if err != nil {
			return nil, false, err
		}
		alts = append(alts, alt)
		complete = complete && c
	}
	return Document{{"anyOf", alts}}, complete, nil
}

func (st *deriveState) variantDoc(tagging shape.Tagging, v shape.Variant, name, vpath string) (Document, bool, error) {
	switch t := tagging.(type) {
	case shape.External:
		// A unit variant serializes as the bare variant name.
		if v.Payload == nil {
			return Document{{"enum", []any{name}}}, true, nil
		}
		payload, complete, err := st.node(v.Payload, vpath)
		if err != nil {
			return nil, false, err
		}
		return objectDoc(Document{{name, payload}}, []any{name}), complete, nil
	case shape.Internal:
		return st.internalVariantDoc(t.Tag, v, name, vpath)
	case shape.Adjacent:
		tagProp := Document{{"enum", []any{name}}}
		if v.Payload == nil {
			return objectDoc(Document{{t.Tag, tagProp}}, []any{t.Tag}), true, nil
		}
		payload, complete, err := st.node(v.Payload, vpath)
		if err != nil {
			return nil, false, err
		}
		props := Document{{t.Tag, tagProp}, {t.Content, payload}}
		return objectDoc(props, []any{t.Tag, t.Content}), complete, nil
	case shape.Untagged:
		if v.Payload == nil {
			return unitDoc(), true, nil
		}
		return st.node(v.Payload, vpath)
	}
	return nil, false, Issues{{Path: orRoot(vpath), Code: CodeUnsupportedShape, Message: fmt.Sprintf("unknown tagging strategy %T", tagging)}}
}

// internalVariantDoc merges the variant payload into the object that also
// carries the tag property. Only struct payloads (directly or through
// newtype wrappers) and newtype-wrapped maps have an object representation
// to merge into; everything else has no place for the tag and is rejected.
func (st *deriveState) internalVariantDoc(tag string, v shape.Variant, name, vpath string) (Document, bool, error) {
	tagProp := Document{{"enum", []any{name}}}
	if v.Payload == nil {
		return objectDoc(Document{{tag, tagProp}}, []any{tag}), true, nil
	}
	payload := v.Payload
	for {
		nt, ok := payload.(*shape.Newtype)
		if !ok {
			break
		}
		payload = nt.Inner
	}
	switch p := payload.(type) {
	case *shape.Struct:
		props := Document{{tag, tagProp}}
		required := []any{tag}
		complete := true
		for _, f := range p.Fields {
			fpath := vpath + "/fields/" + f.Name
			if err := checkBoundPairs(f.Constraints, fpath); err != nil {
				return nil, false, err
			}
			doc, c, err := st.node(f.Shape, fpath)
			if err != nil {
				return nil, false, err
			}
			doc, err = applyBounds(doc, f.Constraints, f.Shape, fpath)
			if err != nil {
				return nil, false, err
			}
			key := f.Name
			if f.Constraints.Rename != "" {
				key = f.Constraints.Rename
			}
			props = props.Set(key, doc)
			if f.Shape != nil && f.Shape.Kind() != shape.KindOptional {
				required = append(required, key)
			}
			complete = complete && c
		}
		return objectDoc(props, required), complete, nil
	case *shape.Map:
		if !p.Key.Textual() {
			return nil, false, Issues{{
				Path:    orRoot(vpath),
				Code:    CodeUnsupportedShape,
				Message: fmt.Sprintf("map key kind %s is not representable as text", p.Key),
			}}
		}
		value, complete, err := st.node(p.Value, vpath+"/additionalProperties")
		if err != nil {
			return nil, false, err
		}
		return Document{
			{"type", "object"},
			{"required", []any{tag}},
			{"properties", Document{{tag, tagProp}}},
			{"additionalProperties", value},
		}, complete, nil
	}
	return nil, false, Issues{{
		Path:    orRoot(vpath),
		Code:    CodeUnsupportedShape,
		Message: "internally tagged variant payload must be a struct or a map",
		Hint:    "use adjacent or external tagging for tuple, unit-like and scalar payloads",
	}}
}

func objectDoc(props Document, required []any) Document {
	return Document{
		{"type", "object"},
		{"additionalProperties", false},
		{"required", required},
		{"properties", props},
	}
}

func unitDoc() Document {
	return Document{{"type", []any{"array", "null"}}, {"maxItems", int64(0)}}
}

func primitiveDoc(k shape.PrimitiveKind) Document {
	switch k {
	case shape.BoolKind:
		return Document{{"type", "boolean"}}
	case shape.Int8Kind:
		return Document{{"bsonType", "int"}, {"minimum", int64(math.MinInt8)}, {"maximum", int64(math.MaxInt8)}}
	case shape.Int16Kind:
		return Document{{"bsonType", "int"}, {"minimum", int64(math.MinInt16)}, {"maximum", int64(math.MaxInt16)}}
	case shape.Int32Kind:
		return Document{{"bsonType", "int"}}
	case shape.Int64Kind:
		return Document{{"bsonType", "long"}}
	case shape.Uint8Kind:
		return Document{{"bsonType", "int"}, {"minimum", int64(0)}, {"maximum", int64(math.MaxUint8)}}
	case shape.Uint16Kind:
		return Document{{"bsonType", "int"}, {"minimum", int64(0)}, {"maximum", int64(math.MaxUint16)}}
	case shape.Uint32Kind:
		return Document{{"bsonType", "int"}, {"minimum", int64(0)}}
	case shape.Uint64Kind:
		// Stored as a signed 64-bit value, hence the cap.
		return Document{{"bsonType", "long"}, {"minimum", int64(0)}, {"maximum", int64(math.MaxInt64)}}
	case shape.Float32Kind, shape.Float64Kind:
		return Document{{"type", "number"}}
	case shape.StringKind:
		return Document{{"type", "string"}}
	case shape.BinaryKind:
		return Document{{"bsonType", "binData"}}
	case shape.UUIDKind:
		return Document{{"type", "string"}, {"pattern", uuidPattern}}
	}
	return Document{}
}

// widenNull widens the declared type set of doc to also accept null. The
// widening edits the type list in place instead of wrapping in anyOf so the
// common case stays compact. Documents with no declared type (opaque
// documents, anyOf enums, cycle placeholders) already accept null.
func widenNull(doc Document) Document {
	for _, key := range []string{"bsonType", "type"} {
		v, ok := doc.Get(key)
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case string:
			if tv != "null" {
				doc = doc.Set(key, []any{tv, "null"})
			}
		case []any:
			for _, item := range tv {
				if item == "null" {
					return doc
				}
			}
			doc = doc.Set(key, append(tv, "null"))
		}
		return doc
	}
	return doc
}

func checkBoundPairs(c shape.Constraints, path string) error {
	var iss Issues
	if c.MinIncl != nil && c.MinExcl != nil {
		iss = AppendIssues(iss, Issue{
			Path:    orRoot(path),
			Code:    CodeMalformedBound,
			Message: "both inclusive and exclusive minimum supplied",
		})
	}
	if c.MaxIncl != nil && c.MaxExcl != nil {
		iss = AppendIssues(iss, Issue{
			Path:    orRoot(path),
			Code:    CodeMalformedBound,
			Message: "both inclusive and exclusive maximum supplied",
		})
	}
	if len(iss) > 0 {
		return iss
	}
	return nil
}

// applyBounds merges numeric bound constraints into doc as keywords,
// overriding any implicit bounds from the mapping table.
func applyBounds(doc Document, c shape.Constraints, s shape.Shape, path string) (Document, error) {
	if !c.HasBounds() {
		return doc, nil
	}
	if !numericShape(s) {
		return nil, Issues{{
			Path:    orRoot(path),
			Code:    CodeNonNumericBound,
			Message: "numeric bound applied to a non-numeric shape",
		}}
	}
	if c.MinIncl != nil {
		doc = doc.Set("minimum", *c.MinIncl).Set("exclusiveMinimum", false)
	}
	if c.MinExcl != nil {
		doc = doc.Set("minimum", *c.MinExcl).Set("exclusiveMinimum", true)
	}
	if c.MaxIncl != nil {
		doc = doc.Set("maximum", *c.MaxIncl).Set("exclusiveMaximum", false)
	}
	if c.MaxExcl != nil {
		doc = doc.Set("maximum", *c.MaxExcl).Set("exclusiveMaximum", true)
	}
	return doc, nil
}

// numericShape reports whether s is a numeric primitive, looking through
// transparent newtype wrappers.
func numericShape(s shape.Shape) bool {
	for {
		nt, ok := s.(*shape.Newtype)
		if !ok {
			break
		}
		s = nt.Inner
	}
	p, ok := s.(*shape.Primitive)
	return ok && p.K.Numeric()
}

func orRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
