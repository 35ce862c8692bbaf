package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/events"
	"github.com/kilianp07/rcpsched/core/factory"
)

type countSink struct{ n int }

func (c *countSink) RecordProgress(events.Progress) error { c.n++; return nil }

func init() {
	_ = RegisterMetricsSink("test-nop", func(map[string]any) (MetricsSink, error) {
		return NopSink{}, nil
	})
	_ = RegisterMetricsSink("test-count", func(map[string]any) (MetricsSink, error) {
		return &countSink{}, nil
	})
}

func TestNewMetricsSink(t *testing.T) {
	tests := []struct {
		name  string
		cfgs  []factory.ModuleConfig
		multi int
	}{
		{"none", nil, 0},
		{"nop only", []factory.ModuleConfig{{Type: "test-nop"}, {Type: "test-nop"}}, 0},
		{"single", []factory.ModuleConfig{{Type: "test-nop"}, {Type: "test-count"}}, 1},
		{"several", []factory.ModuleConfig{{Type: "test-count"}, {Type: "test-count"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMetricsSink(tt.cfgs)
			require.NoError(t, err)
			switch tt.multi {
			case 0:
				assert.IsType(t, NopSink{}, s)
			case 1:
				assert.IsType(t, &countSink{}, s)
			default:
				m, ok := s.(*MultiSink)
				require.True(t, ok)
				assert.Len(t, m.Sinks, tt.multi)
			}
		})
	}
}

func TestNewMetricsSinkUnknown(t *testing.T) {
	_, err := NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	require.ErrorIs(t, err, factory.ErrUnknownModule)
	assert.Contains(t, err.Error(), "test-count")
}
