package mongoschema

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Document is an ordered mapping of schema keywords to values. Values are
// scalars (string, bool, int64, float64, nil), nested Documents, or []any
// sequences. Key order is preserved for reproducible output but carries no
// meaning; use Equal for structural comparison.
type Document []Entry

// Entry is a single keyword/value pair of a Document.
type Entry struct {
	Key   string
	Value any
}

// D builds a Document from entries; together with E it lets call sites and
// fixtures mirror the shape of the emitted schema.
func D(entries ...Entry) Document { return Document(entries) }

// E builds a single Document entry.
func E(key string, v any) Entry { return Entry{Key: key, Value: v} }

// Get returns the value stored under key.
func (d Document) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key in place, or appends a new entry when the
// key is absent, and returns the resulting document.
func (d Document) Set(key string, v any) Document {
	for i, e := range d {
		if e.Key == key {
			d[i].Value = v
			return d
		}
	}
	return append(d, Entry{Key: key, Value: v})
}

// Delete removes the entry under key, preserving the order of the rest.
func (d Document) Delete(key string) Document {
	for i, e := range d {
		if e.Key == key {
			return append(d[:i:i], d[i+1:]...)
		}
	}
	return d
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for i, e := range d {
		out[i] = Entry{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case Document:
		return tv.Clone()
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two documents are structurally equivalent: mapping
// key order is irrelevant, sequence order is significant, and numeric values
// compare by value regardless of their Go type.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for _, e := range d {
		ov, ok := other.Get(e.Key)
		if !ok || !equalValue(e.Value, ov) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch av := a.(type) {
	case Document:
		bv, ok := b.(Document)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int8:
		return float64(tv), true
	case int16:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case uint:
		return float64(tv), true
	case uint8:
		return float64(tv), true
	case uint16:
		return float64(tv), true
	case uint32:
		return float64(tv), true
	case uint64:
		return float64(tv), true
	case float32:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}

// MarshalJSON renders the document as a JSON object preserving entry order.
func (d Document) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders the document as compact JSON; it is meant for diagnostics
// and test failure messages.
func (d Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return "<invalid document>"
	}
	return string(b)
}
