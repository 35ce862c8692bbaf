package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/rcpsched/core/events"
)

type recordSink struct {
	progress, rounds int
	err              error
}

func (r *recordSink) RecordProgress(events.Progress) error {
	r.progress++
	return r.err
}

func (r *recordSink) RecordRound(events.Round) error {
	r.rounds++
	return nil
}

type progressOnly struct{ n int }

func (p *progressOnly) RecordProgress(events.Progress) error {
	p.n++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	boom := errors.New("boom")
	s1, s2, s3 := &recordSink{err: boom}, &recordSink{}, &progressOnly{}
	m := NewMultiSink(s1, s2, s3)

	assert.ErrorIs(t, m.RecordProgress(events.Progress{}), boom)
	assert.NoError(t, m.RecordRound(events.Round{}))
	assert.NoError(t, m.RecordResult(events.Done{}))
	assert.NoError(t, m.Close())

	assert.Equal(t, 1, s1.progress)
	assert.Equal(t, 1, s2.progress)
	assert.Equal(t, 1, s3.n)
	assert.Equal(t, 1, s1.rounds)
	assert.Equal(t, 1, s2.rounds)
}
