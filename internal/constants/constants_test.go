package constants

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExitCode_Int(t *testing.T) {
	tests := []struct {
		name     string
		code     ExitCode
		expected int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitError", ExitError, 1},
		{"ExitTestsFailed", ExitTestsFailed, 2},
		{"ExitValidation", ExitValidation, 3},
		{"ExitPreflight", ExitPreflight, 4},
		{"ExitUserAbort", ExitUserAbort, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code.Int())
		})
	}
}

func TestAppMetadata(t *testing.T) {
	assert.Equal(t, "cts", AppName)
	assert.Equal(t, "Coral Compatibility Test Suite", AppDescription)
}

func TestTimeouts(t *testing.T) {
	assert.Equal(t, 30*time.Second, ProbeTimeout)
	assert.True(t, DiagnosticTimeout < ProbeTimeout)
	assert.True(t, KillGrace > 0)
}

func TestTestDataSourceIsPinned(t *testing.T) {
	assert.Len(t, TestDataRevision, 40)
	url := fmt.Sprintf(TestDataArchiveURL, TestDataRevision)
	assert.True(t, strings.HasSuffix(url, TestDataRevision+".zip"))
	assert.NotContains(t, url, "master")
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "cts.txt", DefaultReportFile)
	assert.Equal(t, "test_data", DefaultDataDir)
	assert.Equal(t, 64*1024, DefaultMaxOutputBytes)
}
