package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Run("changed then added keys in new order", func(t *testing.T) {
		old := SnapshotOf(Field{"a", 1}, Field{"b", 2})
		next := SnapshotOf(Field{"a", 1}, Field{"b", 3}, Field{"c", 4})

		assert.Equal(t, []Change{
			{Field: "b", From: 2, To: 3},
			{Field: "c", From: nil, To: 4},
		}, Diff(old, next))
	})

	t.Run("removed keys", func(t *testing.T) {
		old := SnapshotOf(Field{"a", 1}, Field{"b", 2})
		next := SnapshotOf(Field{"a", 1})

		assert.Equal(t, []Change{{Field: "b", From: 2, To: nil}}, Diff(old, next))
	})

	t.Run("removed keys follow old order after additions", func(t *testing.T) {
		old := SnapshotOf(Field{"z", 1}, Field{"y", 2}, Field{"x", 3})
		next := SnapshotOf(Field{"w", 0}, Field{"y", 2})

		changes := Diff(old, next)
		require.Len(t, changes, 3)
		assert.Equal(t, "w", changes[0].Field)
		assert.Equal(t, "z", changes[1].Field)
		assert.Equal(t, "x", changes[2].Field)
	})

	t.Run("nested values compare structurally", func(t *testing.T) {
		old := SnapshotOf(Field{"parties", []any{"acme", map[string]any{"role": "buyer"}}})
		next := SnapshotOf(Field{"parties", []any{"acme", map[string]any{"role": "buyer"}}})

		assert.Empty(t, Diff(old, next))
	})

	t.Run("numbers compare by value across representations", func(t *testing.T) {
		old := SnapshotOf(Field{"value", 1000})
		next := SnapshotOf(Field{"value", json.Number("1000")})

		assert.Empty(t, Diff(old, next))
	})

	t.Run("identical snapshots yield empty non-nil slice", func(t *testing.T) {
		changes := Diff(Snapshot{}, Snapshot{})
		assert.NotNil(t, changes)
		assert.Empty(t, changes)
	})
}

func TestSnapshotJSONKeepsKeyOrder(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":1,"alpha":{"k":true},"mid":null}`), &s))

	keys := make([]string, 0, s.Len())
	for _, f := range s.Fields() {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zeta":1,"alpha":{"k":true},"mid":null}`, string(out))
	assert.Equal(t, `{"zeta":1,"alpha":{"k":true},"mid":null}`, string(out))
}

func TestSnapshotRejectsNonObject(t *testing.T) {
	var s Snapshot
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
}

func TestSnapshotSetReplacesInPlace(t *testing.T) {
	s := SnapshotOf(Field{"a", 1}, Field{"b", 2})
	s.Set("a", 10)

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, "a", s.Fields()[0].Key)
}
