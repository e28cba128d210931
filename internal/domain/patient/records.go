package patient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Records is the whole patient store: patient ID to stored fields, in
// document order. New IDs are appended; replacing an existing ID keeps its
// position.
type Records struct {
	ids  []string
	byID map[string]Fields
}

func NewRecords() *Records {
	return &Records{byID: make(map[string]Fields)}
}

func (r *Records) Len() int { return len(r.ids) }

func (r *Records) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Records) Get(id string) (Fields, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// Put inserts or fully replaces the fields stored under id.
func (r *Records) Put(id string, f Fields) {
	if _, ok := r.byID[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.byID[id] = f
}

// Delete removes id and reports whether it was present.
func (r *Records) Delete(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns the IDs in document order.
func (r *Records) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Each calls fn for every entry in document order.
func (r *Records) Each(fn func(id string, f Fields)) {
	for _, id := range r.ids {
		fn(id, r.byID[id])
	}
}

// MarshalJSON writes a single object keyed by ID, preserving document order.
func (r *Records) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range r.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.byID[id])
		if err != nil {
			return nil, fmt.Errorf("encode patient %q: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces r with the entries of a JSON object, in the order
// they appear in data.
func (r *Records) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid JSON document")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("expected a JSON object of patients, got %s", doc.Type)
	}

	out := NewRecords()
	var decodeErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			decodeErr = fmt.Errorf("patient %q: expected an object, got %s", key.String(), value.Type)
			return false
		}
		var f Fields
		if err := json.Unmarshal([]byte(value.Raw), &f); err != nil {
			decodeErr = fmt.Errorf("patient %q: %w", key.String(), err)
			return false
		}
		out.Put(key.String(), f)
		return true
	})
	if decodeErr != nil {
		return decodeErr
	}

	*r = *out
	return nil
}
