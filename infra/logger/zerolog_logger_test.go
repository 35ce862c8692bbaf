package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologLoggerFields(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	defer func() { _ = SetLevel("") }()

	var buf bytes.Buffer
	l := NewWithWriter("search", &buf)
	l.Debugw("move", map[string]any{"kind": "shift", "id1": 3})
	l.Infof("objective value = %d", 12)

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "search", got[0]["component"])
	assert.Equal(t, "debug", got[0]["level"])
	assert.Equal(t, "shift", got[0]["kind"])
	assert.EqualValues(t, 3, got[0]["id1"])
	assert.Equal(t, "objective value = 12", got[1]["message"])
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("") }()

	require.NoError(t, SetLevel("WARN"))
	var buf bytes.Buffer
	l := NewWithWriter("cli", &buf)
	l.Infof("hidden")
	l.Warnf("shown")
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["message"])

	assert.Error(t, SetLevel("loud"))
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debugf("x")
	l.Debugw("x", nil)
	l.Errorf("x")
}
