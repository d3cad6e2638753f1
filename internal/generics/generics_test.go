package generics

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := SetWith(3, 1, 2)
	assert.True(t, s.Has(1))
	assert.False(t, s.Has(7))

	s.Insert(7)
	assert.True(t, s.Has(7))
	s.Delete(7, 100) // Deleting an absent key is fine.
	assert.False(t, s.Has(7))

	c := s.Clone()
	c.Insert(9)
	assert.False(t, s.Has(9))
	assert.True(t, c.Has(9))

	assert.Equal(t, []int{1, 2, 3}, Sorted(s))
	assert.Equal(t, []int{}, Sorted(MakeSet[int]()))

	sub := SetWith(1, 2, 3, 4).Sub(SetWith(2, 4))
	assert.Equal(t, []int{1, 3}, Sorted(sub))

	u := SetWith(1).Union(SetWith(2, 3))
	assert.Equal(t, []int{1, 2, 3}, Sorted(u))
}

func TestSliceMap(t *testing.T) {
	got := SliceMap([]int{1, 2, 3}, func(e int) int { return e * e })
	assert.Equal(t, []int{1, 4, 9}, got)
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	got := slices.Collect(SortedKeys(m))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
