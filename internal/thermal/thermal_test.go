package thermal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, root, dev, value string) {
	t.Helper()
	dir := filepath.Join(root, dev)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp"), []byte(value), 0o644))
}

func TestParseMillidegrees(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"45500\n", 45.5, true},
		{"0", 0, true},
		{"-1250", -1.25, true},
		{"", 0, false},
		{"hot", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMillidegrees(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestReader_Sample(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "apex_1", "61000\n")
	writeTemp(t, root, "apex_0", "48250\n")
	writeTemp(t, root, "apex_2", "garbage")

	r := NewReader(WithPattern(filepath.Join(root, "apex_*", "temp")))
	readings, err := r.Sample()
	require.NoError(t, err)

	assert.Equal(t, []Reading{
		{Device: "apex_0", Celsius: 48.25},
		{Device: "apex_1", Celsius: 61},
	}, readings)

	best, ok := Max(readings)
	require.True(t, ok)
	assert.Equal(t, "apex_1", best.Device)
}

func TestReader_NoDevices(t *testing.T) {
	r := NewReader(WithPattern(filepath.Join(t.TempDir(), "apex_*", "temp")))
	readings, err := r.Sample()
	require.NoError(t, err)
	assert.Empty(t, readings)

	_, ok := Max(readings)
	assert.False(t, ok)
}

func TestReader_BadPattern(t *testing.T) {
	_, err := NewReader(WithPattern("[")).Sample()
	assert.Error(t, err)
}

func TestNewReader_Default(t *testing.T) {
	assert.Equal(t, "/sys/class/apex/apex_*/temp", NewReader().pattern)
}

func TestStatic(t *testing.T) {
	s := Static{Readings: []Reading{{Device: "apex_0", Celsius: 40}}}
	got, err := s.Sample()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
