package overlay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIn_Neighbors(t *testing.T) {
	sequences := [][]string{
		{"a"},
		{"a", "b"},
		{"a", "b", "c"},
		{"p1", "p2", "p3", "p4", "p5", "p6"},
	}

	for _, seq := range sequences {
		for i, id := range seq {
			t.Run(fmt.Sprintf("%v/%s", seq, id), func(t *testing.T) {
				next, ok := ResolveIn(seq, id, Next)
				if i+1 < len(seq) {
					assert.True(t, ok)
					assert.Equal(t, seq[i+1], next)
				} else {
					assert.False(t, ok)
				}

				prev, ok := ResolveIn(seq, id, Prev)
				if i-1 >= 0 {
					assert.True(t, ok)
					assert.Equal(t, seq[i-1], prev)
				} else {
					assert.False(t, ok)
				}
			})
		}
	}
}

func TestResolveIn_MissingIdentifier(t *testing.T) {
	for _, seq := range [][]string{nil, {}, {"a", "b"}} {
		for _, dir := range []Direction{Next, Prev} {
			_, ok := ResolveIn(seq, "zz", dir)
			assert.False(t, ok, "seq=%v dir=%s", seq, dir)
		}
	}
}

func TestResolveIn_NoWraparound(t *testing.T) {
	seq := []string{"a", "b", "c"}
	_, ok := ResolveIn(seq, "c", Next)
	assert.False(t, ok)
	_, ok = ResolveIn(seq, "a", Prev)
	assert.False(t, ok)
}

func TestResolveIn_UnknownDirection(t *testing.T) {
	_, ok := ResolveIn([]string{"a", "b"}, "a", Direction(0))
	assert.False(t, ok)
}

func TestResolver_ReadsRegistryAtCallTime(t *testing.T) {
	r := NewRegistry()
	res := NewResolver(r)

	_, ok := res.Resolve("b", Next)
	assert.False(t, ok)

	r.Write([]string{"a", "b", "c"})
	got, ok := res.Resolve("b", Next)
	assert.True(t, ok)
	assert.Equal(t, "c", got)

	r.Clear()
	_, ok = res.Resolve("b", Next)
	assert.False(t, ok)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "next", Next.String())
	assert.Equal(t, "prev", Prev.String())
	assert.Equal(t, "unknown", Direction(9).String())
}
