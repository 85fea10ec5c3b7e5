package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Field is one key/value pair of a Snapshot.
type Field struct {
	Key   string
	Value any
}

// Snapshot is a flat record whose key order is preserved, so diffs come out
// in the order the record was written. The zero value is empty and usable.
type Snapshot struct {
	fields []Field
	index  map[string]int
}

// SnapshotOf builds a snapshot from fields in order. A repeated key keeps
// its first position and takes the last value.
func SnapshotOf(fields ...Field) Snapshot {
	var s Snapshot
	for _, f := range fields {
		s.Set(f.Key, f.Value)
	}
	return s
}

// Set adds or replaces key.
func (s *Snapshot) Set(key string, value any) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[key]; ok {
		s.fields[i].Value = value
		return
	}
	s.index[key] = len(s.fields)
	s.fields = append(s.fields, Field{Key: key, Value: value})
}

// Get returns the value for key.
func (s Snapshot) Get(key string) (any, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.fields[i].Value, true
}

// Fields returns the pairs in insertion order.
func (s Snapshot) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s Snapshot) Len() int { return len(s.fields) }

// MarshalJSON writes the fields as an object in insertion order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the document's key order.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("snapshot must be a JSON object")
	}

	*s = Snapshot{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("snapshot key must be a string")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		s.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Diff lists field-level changes from old to new: keys of new that were
// added or changed, in new's order, then keys removed from old, in old's
// order. Values are compared structurally.
func Diff(old, new Snapshot) []Change {
	changes := []Change{}
	for _, f := range new.fields {
		prev, ok := old.Get(f.Key)
		if !ok {
			changes = append(changes, Change{Field: f.Key, From: nil, To: f.Value})
			continue
		}
		if !equalValues(prev, f.Value) {
			changes = append(changes, Change{Field: f.Key, From: prev, To: f.Value})
		}
	}
	for _, f := range old.fields {
		if _, ok := new.Get(f.Key); !ok {
			changes = append(changes, Change{Field: f.Key, From: f.Value, To: nil})
		}
	}
	return changes
}

// equalValues is deep equality that also treats values with the same JSON
// encoding as equal, so 2, int64(2) and json.Number("2") compare equal.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
