package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_ReadAfterWrite(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Read())

	r.Write([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, r.Read())
	assert.Equal(t, 3, r.Len())

	r.Write([]string{"x"})
	assert.Equal(t, []string{"x"}, r.Read(), "write replaces the whole sequence")
}

func TestRegistry_WriteKeepsDuplicatesAndOrder(t *testing.T) {
	r := NewRegistry()
	r.Write([]string{"b", "a", "b"})
	assert.Equal(t, []string{"b", "a", "b"}, r.Read())
}

func TestRegistry_ClearAlwaysEmpties(t *testing.T) {
	r := NewRegistry()
	r.Write([]string{"a", "b"})
	r.Clear()
	assert.Empty(t, r.Read())
	assert.NotNil(t, r.Read())

	r.Clear()
	assert.Empty(t, r.Read())
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	input := []string{"a", "b"}
	r.Write(input)
	input[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.Read(), "caller slice must not alias the registry")

	snap := r.Read()
	r.Write([]string{"z"})
	assert.Equal(t, []string{"a", "b"}, snap, "a held snapshot survives later writes")

	snap[0] = "mutated"
	assert.Equal(t, []string{"z"}, r.Read())
}

func TestListSync_RenderAndTeardown(t *testing.T) {
	r := NewRegistry()
	ls := NewListSync(r)

	assert.True(t, ls.Render([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, r.Read())

	assert.True(t, ls.Render([]string{"b", "c", "d"}))
	assert.Equal(t, []string{"b", "c", "d"}, r.Read(), "every render pass overwrites")

	ls.Teardown()
	assert.Empty(t, r.Read())
	assert.False(t, ls.Mounted())
}

func TestListSync_TeardownClearsRegardlessOfPriorContent(t *testing.T) {
	for _, seq := range [][]string{nil, {}, {"a"}, {"a", "b", "c", "d"}} {
		r := NewRegistry()
		ls := NewListSync(r)
		ls.Render(seq)
		ls.Teardown()
		assert.Empty(t, r.Read())
	}
}

func TestListSync_DeadAdapterCannotRepublish(t *testing.T) {
	r := NewRegistry()
	old := NewListSync(r)
	old.Render([]string{"a", "b"})
	old.Teardown()

	next := NewListSync(r)
	next.Render([]string{"x", "y"})

	assert.False(t, old.Render([]string{"a", "b"}))
	assert.Equal(t, []string{"x", "y"}, r.Read())

	old.Teardown()
	assert.Equal(t, []string{"x", "y"}, r.Read(), "a second teardown of a dead adapter must not clear the new context")
}
