package testing

import (
	"os"
	"strings"
	"testing"

	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/logging"
)

// AssertErrorCode checks if an error has a specific error code.
func AssertErrorCode(t testing.TB, err error, expectedCode errors.Code) {
	t.Helper()

	if err == nil {
		t.Errorf("expected error with code %s, but got nil", expectedCode)
		return
	}

	if actualCode := errors.GetCode(err); actualCode != expectedCode {
		t.Errorf("expected error code %s, but got %s (error: %v)", expectedCode, actualCode, err)
	}
}

// AssertLogContains checks that some recorded message contains substring.
func AssertLogContains(t testing.TB, logger *MockLogger, substring string) {
	t.Helper()

	if !logger.ContainsMessage(substring) {
		t.Errorf("expected a log message containing %q, got %d message(s)", substring, logger.MessageCount())
	}
}

// AssertLogLevel checks that a message containing substring was logged at level.
func AssertLogLevel(t testing.TB, logger *MockLogger, level logging.Level, substring string) {
	t.Helper()

	for _, msg := range logger.MessagesAtLevel(level) {
		if strings.Contains(msg.Message, substring) {
			return
		}
	}
	t.Errorf("expected a %s message containing %q", level, substring)
}

// AssertLogField checks that every recorded message carries key.
func AssertLogField(t testing.TB, logger *MockLogger, key string) {
	t.Helper()

	for _, msg := range logger.Messages() {
		if msg.Field(key) == nil {
			t.Errorf("message %q has no %s field", msg.Message, key)
		}
	}
}

// AssertFileContains checks that the file at path contains substring.
func AssertFileContains(t testing.TB, path, substring string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("failed to read %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substring) {
		t.Errorf("expected %s to contain %q", path, substring)
	}
}
