package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"trace", TRACE, false},
		{"DEBUG", DEBUG, false},
		{"", INFO, false},
		{" warning ", WARN, false},
		{"critical", CRITICAL, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, INFO)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.Debug("hidden %d", 1)
	l.Info("cruise engaged: target=%.1f kph", 42.0)
	l.Warn("dropped %s", "ACC_BRAKE")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-01-02T03:04:05Z [INFO] cruise engaged: target=42.0 kph", lines[0])
	assert.Contains(t, lines[1], "[WARN] dropped ACC_BRAKE")

	l.SetMinLevel(TRACE)
	assert.True(t, l.Enabled(TRACE))
	l.Trace("tx")
	assert.Contains(t, buf.String(), "[TRACE] tx")
}

func TestLogger_Discard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(CRITICAL))
	l.Critical("nothing")
	assert.NoError(t, l.Close())
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := NewFileLogger(path, DEBUG, false)
	require.NoError(t, err)

	l.Debug("tick %d", 7)
	require.NoError(t, l.Close())
	l.Info("after close")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[DEBUG] tick 7")
	assert.NotContains(t, string(b), "after close")
}
