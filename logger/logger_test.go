package logger

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"off", Off},
		{"OFF", Off},
		{"error", Error},
		{"Info", Info},
		{"", Info},
		{" debug ", Debug},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("trace")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestLevelEnabled(t *testing.T) {
	assert.True(t, Debug.Enabled(Info))
	assert.True(t, Info.Enabled(Error))
	assert.False(t, Error.Enabled(Info))
	assert.False(t, Off.Enabled(Error))
	assert.False(t, Debug.Enabled(Off))
}

func TestLevelText(t *testing.T) {
	var level Level
	require.NoError(t, level.UnmarshalText([]byte("debug")))
	assert.Equal(t, Debug, level)

	text, err := level.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", string(text))
}

func TestNewFiltersByLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
		skip  []string
	}{
		{Off, nil, []string{"debug_event", "info_event", "warn_event", "error_event"}},
		{Error, []string{"error_event"}, []string{"debug_event", "info_event", "warn_event"}},
		{Info, []string{"info_event", "warn_event", "error_event"}, []string{"debug_event"}},
		{Debug, []string{"debug_event", "info_event", "warn_event", "error_event"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := New(tt.level, buf, WithoutBridge())

			log.Debug("debug_event")
			log.Info("info_event")
			log.Warn("warn_event")
			log.Error("error_event", "error", "boom")

			for _, msg := range tt.want {
				assert.Contains(t, buf.String(), "msg="+msg)
			}
			for _, msg := range tt.skip {
				assert.NotContains(t, buf.String(), "msg="+msg)
			}
		})
	}
}

func TestNewKeepsAttrsAndGroups(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Info, buf, WithoutBridge()).With("conn_id", "abc").WithGroup("req")

	log.Info("request_received", "method", "GET")
	assert.Contains(t, buf.String(), "conn_id=abc")
	assert.Contains(t, buf.String(), "req.method=GET")
}

type memoryExporter struct {
	mu      sync.Mutex
	records []string
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, record := range records {
		e.records = append(e.records, record.Body().AsString())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func TestNewBridgesToLoggerProvider(t *testing.T) {
	exporter := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	buf := &bytes.Buffer{}
	log := New(Error, buf, WithLoggerProvider(provider))

	log.Info("below_level")
	log.Error("connection_rejected")

	assert.Equal(t, []string{"connection_rejected"}, exporter.records)
	assert.Contains(t, buf.String(), "msg=connection_rejected")
}

func TestNewOffSilencesBridge(t *testing.T) {
	exporter := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	log := New(Off, &bytes.Buffer{}, WithLoggerProvider(provider))
	log.Error("connection_rejected")

	assert.Empty(t, exporter.records)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), 12))
}
