package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/frame"
	"salesforecast/internal/model"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Len(t, handler.GetRecords(), 2)
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
		assert.True(t, handler.ContainsAttr("code", int64(500)))
	})

	t.Run("keeps logger attributes", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		logger.With(slog.String("component", "svc")).Info("hello")

		assert.True(t, handler.ContainsAttr("component", "svc"))
		assert.Equal(t, 1, handler.Count(), "derived loggers share records")
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
		AssertLogContains(t, handler, slog.LevelWarn, "warn")
	})

	t.Run("thread safety", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				logger.Info("concurrent log", slog.Int("goroutine", n))
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, handler.Count())
	})
}

func TestSampleLinearArtifact(t *testing.T) {
	path := WriteArtifact(t, SampleLinearArtifact())
	m, err := model.LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, SampleFeatures, m.FeatureNames())
}

func TestStubModel(t *testing.T) {
	f := frame.MustNew(frame.NewNumberColumn("Month", []float64{1, 2, 3}))
	x, err := model.NewFeatureMatrix(f, []string{"Month"})
	require.NoError(t, err)

	m := &StubModel{Features: []string{"Month"}, Value: 4}
	out, err := m.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 4}, out)
	assert.Equal(t, 1, m.Calls())
}
