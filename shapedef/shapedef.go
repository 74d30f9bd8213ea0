// Package shapedef imports declarative shape definitions from YAML or JSON
// documents and resolves them into shape graphs, including self- and
// forward-references between named types.
//
// A definition document has an optional "types" mapping of named shapes and
// an optional "root" (a type name or an inline shape node). A shape node is
// either a builtin name ("bool", "int32", "string", "uuid", "unit", "doc",
// "objectId", ...) or a single-key mapping such as {optional: ...},
// {array: ...}, {set: ...}, {fixedArray: {of: ..., len: N}},
// {map: {key: string, value: ...}}, {newtype: ...}, {tuple: [...]},
// {struct: [fields...]}, {enum: {tagging: ..., variants: [...]}},
// {ref: TypeName} or {generic: Param}.
package shapedef

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/mongoschema/shape"
)

// File is a resolved definition document.
type File struct {
	Types map[string]shape.Shape
	Root  shape.Shape
}

// Parse resolves a YAML definition document.
func Parse(data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("shapedef: %w", err)
	}
	return build(normalize(raw))
}

// ParseJSON resolves a JSON definition document.
func ParseJSON(data []byte) (*File, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("shapedef: %w", err)
	}
	return build(raw)
}

// normalize rewrites yaml.v3's occasional map[any]any mappings into
// map[string]any so the converter sees one representation.
func normalize(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			out[ks] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func build(raw any) (*File, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("shapedef: top level must be a mapping")
	}
	r := &resolver{
		raw:        map[string]any{},
		built:      map[string]shape.Shape{},
		pending:    map[string][]*shape.Newtype{},
		inProgress: map[string]bool{},
	}
	if t, ok := m["types"]; ok {
		tm, ok := t.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("shapedef: /types: must be a mapping")
		}
		r.raw = tm
	}
	names := make([]string, 0, len(r.raw))
	for name := range r.raw {
		names = append(names, name)
	}
	sort.Strings(names)
	f := &File{Types: map[string]shape.Shape{}}
	for _, name := range names {
		s, err := r.typeShape(name)
		if err != nil {
			return nil, err
		}
		f.Types[name] = s
	}
	if root, ok := m["root"]; ok {
		switch rv := root.(type) {
		case string:
			// A bare string names a defined type first, then a builtin.
			if s, ok := f.Types[rv]; ok {
				f.Root = s
				break
			}
			s, err := r.node(root, "/root")
			if err != nil {
				return nil, err
			}
			f.Root = s
		default:
			s, err := r.node(root, "/root")
			if err != nil {
				return nil, err
			}
			f.Root = s
		}
	}
	return f, nil
}

type resolver struct {
	raw        map[string]any
	built      map[string]shape.Shape
	pending    map[string][]*shape.Newtype // refs waiting on an in-progress type
	inProgress map[string]bool
}

func (r *resolver) typeShape(name string) (shape.Shape, error) {
	if s, ok := r.built[name]; ok {
		return s, nil
	}
	r.inProgress[name] = true
	s, err := r.node(r.raw[name], "/types/"+name)
	delete(r.inProgress, name)
	if err != nil {
		return nil, err
	}
	switch named := s.(type) {
	case *shape.Struct:
		if named.Name == "" {
			named.Name = name
		}
	case *shape.Enum:
		if named.Name == "" {
			named.Name = name
		}
	}
	r.built[name] = s
	for _, ph := range r.pending[name] {
		ph.Inner = s
	}
	delete(r.pending, name)
	return s, nil
}

func (r *resolver) refShape(name, path string) (shape.Shape, error) {
	if s, ok := r.built[name]; ok {
		return s, nil
	}
	if r.inProgress[name] {
		// The referenced type is somewhere up the build stack; hand out a
		// transparent placeholder and patch it once the type completes.
		ph := &shape.Newtype{}
		r.pending[name] = append(r.pending[name], ph)
		return ph, nil
	}
	if _, ok := r.raw[name]; !ok {
		return nil, fmt.Errorf("shapedef: %s: unknown type %q", path, name)
	}
	return r.typeShape(name)
}

var primitiveNames = map[string]shape.PrimitiveKind{
	"bool":    shape.BoolKind,
	"int8":    shape.Int8Kind,
	"int16":   shape.Int16Kind,
	"int32":   shape.Int32Kind,
	"int64":   shape.Int64Kind,
	"uint8":   shape.Uint8Kind,
	"uint16":  shape.Uint16Kind,
	"uint32":  shape.Uint32Kind,
	"uint64":  shape.Uint64Kind,
	"float32": shape.Float32Kind,
	"float64": shape.Float64Kind,
	"string":  shape.StringKind,
	"binary":  shape.BinaryKind,
	"uuid":    shape.UUIDKind,
}

func (r *resolver) node(v any, path string) (shape.Shape, error) {
	switch tv := v.(type) {
	case string:
		if k, ok := primitiveNames[tv]; ok {
			return &shape.Primitive{K: k}, nil
		}
		switch tv {
		case "unit":
			return &shape.Unit{}, nil
		case "doc", "document":
			return &shape.Doc{}, nil
		case "objectId":
			return &shape.ObjectID{}, nil
		}
		return nil, fmt.Errorf("shapedef: %s: unknown shape name %q", path, tv)
	case map[string]any:
		if len(tv) != 1 {
			return nil, fmt.Errorf("shapedef: %s: shape node must have exactly one key", path)
		}
		for k, val := range tv {
			return r.composite(k, val, path+"/"+k)
		}
	}
	return nil, fmt.Errorf("shapedef: %s: unsupported shape node %T", path, v)
}

func (r *resolver) composite(form string, v any, path string) (shape.Shape, error) {
	switch form {
	case "optional":
		inner, err := r.node(v, path)
		if err != nil {
			return nil, err
		}
		return &shape.Optional{Inner: inner}, nil
	case "array":
		elem, err := r.node(v, path)
		if err != nil {
			return nil, err
		}
		return &shape.Array{Elem: elem}, nil
	case "set":
		elem, err := r.node(v, path)
		if err != nil {
			return nil, err
		}
		return &shape.Set{Elem: elem}, nil
	case "newtype":
		inner, err := r.node(v, path)
		if err != nil {
			return nil, err
		}
		return &shape.Newtype{Inner: inner}, nil
	case "fixedArray":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected {of: ..., len: N}", path)
		}
		elem, err := r.node(m["of"], path+"/of")
		if err != nil {
			return nil, err
		}
		n, ok := asInt(m["len"])
		if !ok || n < 0 {
			return nil, fmt.Errorf("shapedef: %s/len: expected a non-negative integer", path)
		}
		return &shape.FixedArray{Elem: elem, Len: n}, nil
	case "map":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected {key: ..., value: ...}", path)
		}
		key := shape.StringKind
		if kv, ok := m["key"]; ok {
			ks, _ := kv.(string)
			k, ok := primitiveNames[ks]
			if !ok {
				return nil, fmt.Errorf("shapedef: %s/key: unknown key kind %q", path, kv)
			}
			key = k
		}
		value, err := r.node(m["value"], path+"/value")
		if err != nil {
			return nil, err
		}
		return &shape.Map{Key: key, Value: value}, nil
	case "tuple":
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected a sequence of shape nodes", path)
		}
		elems := make([]shape.Shape, len(items))
		for i, item := range items {
			el, err := r.node(item, fmt.Sprintf("%s/%d", path, i))
			if err != nil {
				return nil, err
			}
			elems[i] = el
		}
		return &shape.Tuple{Elems: elems}, nil
	case "struct":
		fields, err := r.fields(v, path)
		if err != nil {
			return nil, err
		}
		return &shape.Struct{Fields: fields}, nil
	case "enum":
		return r.enum(v, path)
	case "ref":
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected a type name", path)
		}
		return r.refShape(name, path)
	case "generic":
		param, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected a parameter name", path)
		}
		return &shape.Generic{Param: param}, nil
	}
	return nil, fmt.Errorf("shapedef: %s: unknown shape form %q", path, form)
}

func (r *resolver) fields(v any, path string) ([]shape.Field, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("shapedef: %s: expected a sequence of fields", path)
	}
	fields := make([]shape.Field, 0, len(items))
	for i, item := range items {
		fpath := fmt.Sprintf("%s/%d", path, i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected a field mapping", fpath)
		}
		name, _ := m["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("shapedef: %s: field name is required", fpath)
		}
		fs, err := r.node(m["shape"], fpath+"/shape")
		if err != nil {
			return nil, err
		}
		c := shape.Constraints{}
		if rn, ok := m["rename"].(string); ok {
			c.Rename = rn
		}
		for _, bound := range []struct {
			key string
			dst **float64
		}{
			{"minIncl", &c.MinIncl},
			{"minExcl", &c.MinExcl},
			{"maxIncl", &c.MaxIncl},
			{"maxExcl", &c.MaxExcl},
		} {
			bv, ok := m[bound.key]
			if !ok {
				continue
			}
			f, ok := asFloat(bv)
			if !ok {
				return nil, fmt.Errorf("shapedef: %s/%s: expected a number", fpath, bound.key)
			}
			*bound.dst = shape.Bound(f)
		}
		fields = append(fields, shape.Field{Name: name, Shape: fs, Constraints: c})
	}
	return fields, nil
}

func (r *resolver) enum(v any, path string) (shape.Shape, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("shapedef: %s: expected {tagging: ..., variants: [...]}", path)
	}
	tagging, err := parseTagging(m["tagging"], path+"/tagging")
	if err != nil {
		return nil, err
	}
	items, ok := m["variants"].([]any)
	if !ok {
		return nil, fmt.Errorf("shapedef: %s/variants: expected a sequence", path)
	}
	variants := make([]shape.Variant, 0, len(items))
	for i, item := range items {
		vpath := fmt.Sprintf("%s/variants/%d", path, i)
		vm, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("shapedef: %s: expected a variant mapping", vpath)
		}
		name, _ := vm["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("shapedef: %s: variant name is required", vpath)
		}
		variant := shape.Variant{Name: name}
		if rn, ok := vm["rename"].(string); ok {
			variant.Rename = rn
		}
		if pv, ok := vm["payload"]; ok && pv != nil {
			payload, err := r.node(pv, vpath+"/payload")
			if err != nil {
				return nil, err
			}
			variant.Payload = payload
		}
		variants = append(variants, variant)
	}
	return &shape.Enum{Tagging: tagging, Variants: variants}, nil
}

func parseTagging(v any, path string) (shape.Tagging, error) {
	switch tv := v.(type) {
	case nil:
		return shape.External{}, nil
	case string:
		switch tv {
		case "external":
			return shape.External{}, nil
		case "untagged":
			return shape.Untagged{}, nil
		}
		return nil, fmt.Errorf("shapedef: %s: unknown tagging %q", path, tv)
	case map[string]any:
		if tag, ok := tv["internal"]; ok {
			ts, ok := tag.(string)
			if !ok || ts == "" {
				return nil, fmt.Errorf("shapedef: %s/internal: expected a tag field name", path)
			}
			return shape.Internal{Tag: ts}, nil
		}
		if adj, ok := tv["adjacent"]; ok {
			am, ok := adj.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("shapedef: %s/adjacent: expected {tag: ..., content: ...}", path)
			}
			tag, _ := am["tag"].(string)
			content, _ := am["content"].(string)
			if tag == "" || content == "" {
				return nil, fmt.Errorf("shapedef: %s/adjacent: tag and content are required", path)
			}
			return shape.Adjacent{Tag: tag, Content: content}, nil
		}
	}
	return nil, fmt.Errorf("shapedef: %s: unsupported tagging node", path)
}

func asInt(v any) (int, bool) {
	switch tv := v.(type) {
	case int:
		return tv, true
	case int64:
		return int(tv), true
	case uint64:
		return int(tv), true
	case float64:
		if tv == float64(int(tv)) {
			return int(tv), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case uint64:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}
