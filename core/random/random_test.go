package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownSequence(t *testing.T) {
	s := New(1)
	assert.Equal(t, 0, s.Intn(0, 99))
	assert.Equal(t, int64(48271), s.seed)
	assert.Equal(t, 8, s.Intn(0, 99))
	assert.Equal(t, int64(182605794), s.seed)
}

func TestZeroSeedBehavesAsOne(t *testing.T) {
	a, b := New(0), New(1)
	for i := 0; i < 20; i++ {
		assert.Equal(t, b.Intn(-5, 5), a.Intn(-5, 5))
	}
}

func TestRangeAndSaveRestore(t *testing.T) {
	s := New(42)
	for i := 0; i < 1000; i++ {
		v := s.Intn(3, 7)
		assert.GreaterOrEqual(t, v, 3)
		assert.LessOrEqual(t, v, 7)
	}
	assert.Equal(t, 4, s.Intn(4, 1))

	s.Save()
	first := []int{s.Intn(0, 1000), s.Intn(0, 1000)}
	s.Restore()
	assert.Equal(t, first, []int{s.Intn(0, 1000), s.Intn(0, 1000)})
}
