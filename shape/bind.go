package shape

// Bind returns a copy of s with every Generic placeholder replaced by its
// binding from args. Nodes are copied structurally so the input graph stays
// untouched; cycles in the input produce the corresponding cycles in the
// copy. Placeholders with no binding are left in place and will surface as
// an unresolved_generic error at derivation time.
func Bind(s Shape, args map[string]Shape) Shape {
	return bind(s, args, map[Shape]Shape{})
}

func bind(s Shape, args map[string]Shape, seen map[Shape]Shape) Shape {
	if s == nil {
		return nil
	}
	if c, ok := seen[s]; ok {
		return c
	}
	switch n := s.(type) {
	case *Generic:
		if r, ok := args[n.Param]; ok {
			return r
		}
		return n
	case *Primitive, *Unit, *Doc, *ObjectID:
		return s
	case *Optional:
		c := &Optional{}
		seen[s] = c
		c.Inner = bind(n.Inner, args, seen)
		return c
	case *Array:
		c := &Array{}
		seen[s] = c
		c.Elem = bind(n.Elem, args, seen)
		return c
	case *Set:
		c := &Set{}
		seen[s] = c
		c.Elem = bind(n.Elem, args, seen)
		return c
	case *Map:
		c := &Map{Key: n.Key}
		seen[s] = c
		c.Value = bind(n.Value, args, seen)
		return c
	case *FixedArray:
		c := &FixedArray{Len: n.Len}
		seen[s] = c
		c.Elem = bind(n.Elem, args, seen)
		return c
	case *Newtype:
		c := &Newtype{}
		seen[s] = c
		c.Inner = bind(n.Inner, args, seen)
		return c
	case *Tuple:
		c := &Tuple{Elems: make([]Shape, len(n.Elems))}
		seen[s] = c
		for i, el := range n.Elems {
			c.Elems[i] = bind(el, args, seen)
		}
		return c
	case *Struct:
		c := &Struct{Name: n.Name, Fields: make([]Field, len(n.Fields))}
		seen[s] = c
		for i, f := range n.Fields {
			c.Fields[i] = Field{Name: f.Name, Shape: bind(f.Shape, args, seen), Constraints: f.Constraints}
		}
		return c
	case *Enum:
		c := &Enum{Name: n.Name, Tagging: n.Tagging, Variants: make([]Variant, len(n.Variants))}
		seen[s] = c
		for i, v := range n.Variants {
			c.Variants[i] = Variant{Name: v.Name, Payload: bind(v.Payload, args, seen), Rename: v.Rename}
		}
		return c
	}
	return s
}
