package tabu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabuAndAspiration(t *testing.T) {
	l := New(4, 2)
	assert.False(t, l.Active(0))

	l.Update(0, 1, 10, -1, 0)
	assert.True(t, l.Active(0))
	assert.Equal(t, 1, l.LongTermMemory(0))

	tests := []struct {
		name string
		f    int
		diff int
		want bool
	}{
		{"improving descent is allowed", 9, -1, false},
		{"same objective is tabu", 10, -1, true},
		{"no descent is tabu", 9, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Tabu(0, tt.f, tt.diff))
		})
	}
}

func TestReverseMoveShrinksTenure(t *testing.T) {
	l := New(4, 2)
	l.Update(0, 1, 10, -1, 0)
	l.Update(2, 3, 5, 0, 0)
	l.Update(3, 2, 5, 0, 0)
	assert.Equal(t, 1, l.Tenure())
	assert.False(t, l.Active(0))
	assert.Equal(t, 2, l.MaxTenure())
}

func TestRepeatedAttributeGrowsTenure(t *testing.T) {
	l := New(3, 1)
	for i := 0; i < 3; i++ {
		l.Update(0, 1, 0, 0, 0)
	}
	assert.Equal(t, 2, l.Tenure())
	assert.Equal(t, 3, l.LongTermMemory(0))
}

func TestClearExpiresEverything(t *testing.T) {
	l := New(4, 3)
	l.Update(1, 2, 0, 0, 0)
	assert.True(t, l.Active(1))
	l.Clear(5)
	assert.False(t, l.Active(1))
	assert.Equal(t, 5, l.Tenure())
	l.Clear(0)
	assert.Equal(t, 5, l.Tenure())
}
